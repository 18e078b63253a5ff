package web

// errors.go provides unified error response handling for the web layer.
//
// All errors are logged with full technical detail server-side, then
// mapped to a user-friendly message with an error code before being
// sent to the client as JSON.

import (
	"encoding/json"
	"net/http"
	"strings"

	"patchplan/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses. Code is
// machine-readable; Message and Action are for people.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// UserMessage provides user-friendly error information with actionable
// guidance.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error substrings (case-insensitive) to
// user messages. The first matching pattern wins, so more specific
// patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "missing required columns",
		msg: UserMessage{
			Message: "The file is missing required columns",
			Action:  "Check that the spreadsheet has Start Rack, Start U, Start Port, End Rack, End U and End Port columns",
			Code:    "ING001",
		},
	},
	{
		pattern: "no valid cable links",
		msg: UserMessage{
			Message: "No cable links could be read from the file",
			Action:  "Ensure the file has at least one data row with rack names filled in",
			Code:    "ING002",
		},
	},
	{
		pattern: "no panels could be read",
		msg: UserMessage{
			Message: "No panels could be read from the CSV",
			Action:  "Check the file against an exported configuration CSV",
			Code:    "ING005",
		},
	},
	{
		pattern: "csv parse error",
		msg: UserMessage{
			Message: "The file is not a valid CSV",
			Action:  "Save the file as comma-separated values and try again",
			Code:    "ING003",
		},
	},
	{
		pattern: "workbook",
		msg: UserMessage{
			Message: "The spreadsheet could not be opened",
			Action:  "Save the file as .xlsx or .csv and try again",
			Code:    "ING004",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The file exceeds the upload size limit",
			Action:  "Upload a file smaller than the configured limit",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv, .xlsx or .xls file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a file to upload",
			Code:    "FILE003",
		},
	},
	{
		pattern: "default configuration not found",
		msg: UserMessage{
			Message: "The default configuration does not exist",
			Action:  "Refresh the configuration list and try again",
			Code:    "CFG001",
		},
	},
	{
		pattern: "configuration not found",
		msg: UserMessage{
			Message: "The configuration does not exist",
			Action:  "Refresh the configuration list and try again",
			Code:    "CFG002",
		},
	},
	{
		pattern: "cannot delete a default",
		msg: UserMessage{
			Message: "Default configurations cannot be deleted",
			Action:  "Copy the default first if you want an editable version",
			Code:    "CFG003",
		},
	},
	{
		pattern: "name is required",
		msg: UserMessage{
			Message: "The configuration needs a name",
			Action:  "Provide a non-empty name of up to 50 characters",
			Code:    "VAL001",
		},
	},
	{
		pattern: "panel unit",
		msg: UserMessage{
			Message: "The configuration layout is out of bounds",
			Action:  "Use at most 4 panel units with 12 trays each",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid configuration body",
		msg: UserMessage{
			Message: "The request body is not a valid configuration",
			Action:  "Send the configuration as JSON",
			Code:    "VAL003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many upload attempts",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The request exceeds the upload size limit",
			Action:  "Upload a file smaller than the configured limit",
			Code:    "FILE001",
		},
	},
}

// defaultUserMessage is the fallback when no pattern matches.
var defaultUserMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again",
	Code:    "ERR000",
}

// mapError converts a technical error into a user-facing message.
// Matching is case-insensitive substring containment; the original
// error text is preserved inside the message so parse errors from the
// CSV and workbook readers stay diagnosable.
func mapError(err error) UserMessage {
	if err == nil {
		return defaultUserMessage
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			msg := ep.msg
			if !strings.EqualFold(msg.Message, err.Error()) {
				msg.Message = msg.Message + ": " + err.Error()
			}
			return msg
		}
	}

	return defaultUserMessage
}

// respondError logs the technical error with request context and writes
// the mapped user message as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := mapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	writeErrorResponse(w, userMsg, statusCode)
}

// writeErrorResponse writes a UserMessage as a JSON error body.
func writeErrorResponse(w http.ResponseWriter, msg UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:  msg.Message,
		Action: msg.Action,
		Code:   msg.Code,
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
