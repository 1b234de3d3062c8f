package importing

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"
)

var (
	errorReportHeader   = []string{"row", "error_type", "error_message", "data"}
	successReportHeader = []string{"row", "project_code", "project_name"}
)

const duplicateErrorType = "file_duplicate"

// ErrorReport renders the failures of res as CSV. In-file duplicate groups come first, one
// line per affected row; skip entries that only repeat a duplicate are left out.
func ErrorReport(res *Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(errorReportHeader); err != nil {
		return nil, err
	}
	for _, d := range res.Duplicates {
		for _, row := range d.Rows {
			if err := w.Write([]string{
				strconv.Itoa(row), duplicateErrorType, d.Message, "project_code: " + d.Code,
			}); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range res.Errors {
		if e.Kind == InFileDuplicate {
			continue
		}
		if err := w.Write([]string{
			strconv.Itoa(e.Row), string(e.Category), e.Message, flattenRow(e.Data, res.Columns),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// SuccessReport renders the imported rows of res as CSV.
func SuccessReport(res *Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(successReportHeader); err != nil {
		return nil, err
	}
	for _, p := range res.SuccessfulProjects {
		if err := w.Write([]string{strconv.Itoa(p.Row), p.ProjectCode, p.ProjectName}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// flattenRow joins non-empty cells as "column: value" in file column order. Without a
// column list the keys are sorted.
func flattenRow(data map[string]string, columns []string) string {
	if len(data) == 0 {
		return ""
	}
	keys := columns
	if len(keys) == 0 {
		keys = make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := data[k]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, ", ")
}
