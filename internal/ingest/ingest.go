// Package ingest turns uploaded cable-link files (CSV or Excel
// workbooks) into CableLink records. Header matching is deliberately
// tolerant: columns are resolved by case-insensitive substring
// containment against known phrasings, so "Start Rack", "StartRack"
// and "start_rack " all resolve to the same logical column. Keep that
// contract when touching this file: existing uploaded files depend
// on it.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"patchplan/internal/panel"
	"patchplan/internal/security"
)

// column is one logical spreadsheet column. Terms are scanned in
// priority order: the first term contained in any header wins.
type column struct {
	key   string
	terms []string
}

// requiredColumns are the logical columns every upload must carry.
// Each carries both the spaced and the collapsed phrasing of its
// canonical key.
var requiredColumns = []column{
	{key: "startrack", terms: []string{"start rack", "startrack"}},
	{key: "startuheight", terms: []string{"start u height", "startu", "startuheight"}},
	{key: "startport", terms: []string{"start port", "startport"}},
	{key: "endrack", terms: []string{"end rack", "endrack"}},
	{key: "enduheight", terms: []string{"end u height", "endu", "enduheight"}},
	{key: "endport", terms: []string{"end port", "endport"}},
}

// ParseUpload reads an uploaded file and converts it to cable links.
// The caller is responsible for the upstream gates (size, extension,
// rate limit); this function only dispatches on the extension.
func ParseUpload(filename string, r io.Reader) ([]panel.CableLink, error) {
	var (
		rows [][]string
		err  error
	)

	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		rows, err = ReadCSV(r)
	} else {
		rows, err = ReadWorkbook(r)
	}
	if err != nil {
		return nil, err
	}

	return ProcessRows(rows)
}

// ReadCSV parses CSV content into raw rows. Rows may have varying
// field counts; validation happens later in ProcessRows.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV parse error: %w", err)
	}
	return rows, nil
}

// ReadWorkbook loads an Excel workbook and returns the first
// worksheet's cells as raw rows.
func ReadWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet rows: %w", err)
	}
	return rows, nil
}

// ProcessRows converts raw rows (header first) into cable links.
//
// All missing required columns are reported in one aggregated error.
// Data rows whose sanitized start or end rack is empty are dropped
// silently; an empty final result is an error.
func ProcessRows(rows [][]string) ([]panel.CableLink, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("file must contain at least a header row and one data row")
	}

	headers := normalizeHeaders(rows[0])

	if missing := missingColumns(headers); len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	links := make([]panel.CableLink, 0, len(rows)-1)
	for i, row := range rows[1:] {
		get := func(terms []string) string {
			col := resolveColumn(headers, terms)
			if col < 0 || col >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[col])
		}

		link := panel.CableLink{
			ID:           "link-" + strconv.Itoa(i+1),
			StartRack:    security.SanitizeCellValue(get(requiredColumns[0].terms)),
			StartUHeight: parseUHeight(get(requiredColumns[1].terms)),
			StartPort:    security.SanitizeCellValue(get(requiredColumns[2].terms)),
			EndRack:      security.SanitizeCellValue(get(requiredColumns[3].terms)),
			EndUHeight:   parseUHeight(get(requiredColumns[4].terms)),
			EndPort:      security.SanitizeCellValue(get(requiredColumns[5].terms)),
		}

		if link.StartRack == "" || link.EndRack == "" {
			continue
		}
		links = append(links, link)
	}

	if len(links) == 0 {
		return nil, fmt.Errorf("no valid cable links found in the file")
	}
	return links, nil
}

// normalizeHeaders lower-cases and trims each header cell.
func normalizeHeaders(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

// resolveColumn returns the index of the first header containing any
// of the search terms, scanning terms in priority order. Returns -1
// when nothing matches.
func resolveColumn(headers []string, terms []string) int {
	for _, term := range terms {
		for i, h := range headers {
			if strings.Contains(h, term) {
				return i
			}
		}
	}
	return -1
}

// missingColumns returns the canonical keys of required columns with
// no matching header, in declaration order.
func missingColumns(headers []string) []string {
	var missing []string
	for _, col := range requiredColumns {
		if resolveColumn(headers, col.terms) < 0 {
			missing = append(missing, col.key)
		}
	}
	return missing
}

// parseUHeight parses a rack-unit height, defaulting to 0 when the
// cell is not a clean integer.
func parseUHeight(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
