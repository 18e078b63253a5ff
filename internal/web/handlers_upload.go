package web

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"patchplan/internal/ingest"
	"patchplan/internal/logging"
	"patchplan/internal/panel"
	"patchplan/internal/security"
)

// uploadResponse is the JSON body returned for a successful cable-link
// upload.
type uploadResponse struct {
	Links []panel.CableLink `json:"links"`
	Count int               `json:"count"`
}

// handleUploadLinks parses an uploaded cable-link spreadsheet and
// returns the extracted links. Gates run in order: rate limit, file
// size, file extension.
func (s *Server) handleUploadLinks(w http.ResponseWriter, r *http.Request) {
	if !s.allowUpload(w, r) {
		return
	}

	maxSize := s.cfg.Upload.MaxFileSizeBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, fmt.Errorf("file too large or invalid form: %w", err), http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !security.ValidateFileSize(header.Size, s.cfg.Upload.MaxFileSizeMB) {
		respondError(w, r, fmt.Errorf("file too large: %d bytes exceeds %dMB limit", header.Size, s.cfg.Upload.MaxFileSizeMB), http.StatusRequestEntityTooLarge)
		return
	}

	if !security.ValidateFileType(header.Filename, s.cfg.Upload.AllowedExtensions) {
		respondError(w, r, fmt.Errorf("unsupported file type: %s", header.Filename), http.StatusBadRequest)
		return
	}

	links, err := ingest.ParseUpload(header.Filename, file)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	logging.FromContext(r.Context()).Info("cable links uploaded",
		"file", header.Filename,
		"links", len(links),
	)

	writeJSON(w, r, uploadResponse{Links: links, Count: len(links)})
}

// importResponse is the JSON body returned for a configuration import.
// The configuration is not persisted; the client saves it explicitly.
type importResponse struct {
	Configuration panel.Configuration `json:"configuration"`
	SkippedLines  int                 `json:"skippedLines"`
}

// handleImportConfiguration decodes a configuration CSV from the
// request body or a multipart file. The import shares the upload rate
// limiter but has no size cap: configuration CSVs are tiny.
func (s *Server) handleImportConfiguration(w http.ResponseWriter, r *http.Request) {
	if !s.allowUpload(w, r) {
		return
	}

	content, name, err := readImportBody(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	name = security.ValidateTextInput(name, panel.MaxNameLength)
	if name == "" {
		name = "Imported Configuration"
	}

	res := panel.ImportCSV(content, name)
	if len(res.Configuration.Panels) == 0 {
		respondError(w, r, errors.New("no panels could be read from the CSV"), http.StatusBadRequest)
		return
	}

	logging.FromContext(r.Context()).Info("configuration imported",
		"name", name,
		"panels", len(res.Configuration.Panels),
		"skipped_lines", res.SkippedLines,
	)

	writeJSON(w, r, importResponse{
		Configuration: res.Configuration,
		SkippedLines:  res.SkippedLines,
	})
}

// readImportBody extracts CSV content and the configuration name from
// either a multipart form (field "file", optional "name") or a raw CSV
// body with the name in the query string.
func readImportBody(r *http.Request) (content, name string, err error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return "", "", fmt.Errorf("invalid form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", errors.New("no file provided")
		}
		defer file.Close()

		if !security.ValidateFileType(header.Filename, []string{"csv"}) {
			return "", "", fmt.Errorf("unsupported file type: %s", header.Filename)
		}

		data, err := io.ReadAll(file)
		if err != nil {
			return "", "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), r.FormValue("name"), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), r.URL.Query().Get("name"), nil
}

// allowUpload applies the shared sliding-window upload limiter. On
// rejection it writes a 429 with a Retry-After header and reports false.
func (s *Server) allowUpload(w http.ResponseWriter, r *http.Request) bool {
	if s.uploads.Allow() {
		return true
	}

	retry := int(math.Ceil(s.uploads.RemainingTime().Seconds()))
	if retry < 1 {
		retry = 1
	}

	logging.FromContext(r.Context()).Warn("upload rate limit hit", "retry_seconds", retry)

	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeErrorResponse(w, UserMessage{
		Message: fmt.Sprintf("Too many upload attempts. Please wait %d seconds.", retry),
		Action:  "Wait for the cooldown to pass before uploading again",
		Code:    "RATE001",
	}, http.StatusTooManyRequests)
	return false
}
