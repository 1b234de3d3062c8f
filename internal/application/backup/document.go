package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	FormatVersion = "1.0"
	Description   = "プロジェクト収支システム バックアップデータ"
)

var (
	ErrInvalidBackup = errors.New("invalid backup file")
	ErrNotJSON       = errors.New("backup file must be a .json file")
	ErrEncoding      = errors.New("backup file is not valid UTF-8")
	ErrMalformed     = errors.New("backup file is not valid JSON")
)

// Document is the JSON backup format.
type Document struct {
	BackupInfo Info       `json:"backup_info"`
	Data       Data       `json:"data"`
	Statistics Statistics `json:"statistics"`
}

type Info struct {
	CreatedAt   string `json:"created_at"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type Data struct {
	Projects    []ProjectRecord    `json:"projects"`
	Branches    []BranchRecord     `json:"branches"`
	FiscalYears []FiscalYearRecord `json:"fiscal_years"`
}

type Statistics struct {
	ProjectsCount    int `json:"projects_count"`
	BranchesCount    int `json:"branches_count"`
	FiscalYearsCount int `json:"fiscal_years_count"`
}

type ProjectRecord struct {
	ID               uint    `json:"id"`
	ProjectCode      string  `json:"project_code"`
	ProjectName      string  `json:"project_name"`
	BranchID         uint    `json:"branch_id"`
	FiscalYear       int     `json:"fiscal_year"`
	OrderProbability float64 `json:"order_probability"`
	Revenue          float64 `json:"revenue"`
	Expenses         float64 `json:"expenses"`
	CreatedAt        *string `json:"created_at"`
	UpdatedAt        *string `json:"updated_at"`
}

type BranchRecord struct {
	ID         uint    `json:"id"`
	BranchCode string  `json:"branch_code"`
	BranchName string  `json:"branch_name"`
	IsActive   bool    `json:"is_active"`
	CreatedAt  *string `json:"created_at"`
	UpdatedAt  *string `json:"updated_at"`
}

type FiscalYearRecord struct {
	ID        uint    `json:"id"`
	Year      int     `json:"year"`
	YearName  string  `json:"year_name"`
	IsActive  bool    `json:"is_active"`
	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}

var (
	requiredProjectFields = []string{"project_code", "project_name", "branch_id", "fiscal_year", "order_probability", "revenue", "expenses"}
	requiredBranchFields  = []string{"branch_code", "branch_name", "is_active"}
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidBackup, fmt.Sprintf(format, args...))
}

// Parse checks the structure of a backup file and decodes it. Only the first project
// and branch are checked for required fields.
func Parse(raw []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := top["backup_info"]; !ok {
		return nil, invalid("backup_info section is missing")
	}
	dataRaw, ok := top["data"]
	if !ok {
		return nil, invalid("data section is missing")
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(dataRaw, &data); err != nil {
		return nil, invalid("data section must be an object")
	}

	tables := map[string][]map[string]json.RawMessage{}
	for _, name := range []string{"projects", "branches", "fiscal_years"} {
		tableRaw, ok := data[name]
		if !ok {
			return nil, invalid("%s data is missing", name)
		}
		var rows []map[string]json.RawMessage
		if err := json.Unmarshal(tableRaw, &rows); err != nil || rows == nil {
			return nil, invalid("%s data must be a list", name)
		}
		tables[name] = rows
	}
	if err := requireFields(tables["projects"], requiredProjectFields, "project"); err != nil {
		return nil, err
	}
	if err := requireFields(tables["branches"], requiredBranchFields, "branch"); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, invalid("%v", err)
	}
	return &doc, nil
}

func requireFields(rows []map[string]json.RawMessage, fields []string, what string) error {
	if len(rows) == 0 {
		return nil
	}
	for _, f := range fields {
		if _, ok := rows[0][f]; !ok {
			return invalid("%s data is missing the %s field", what, f)
		}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts RFC 3339 and zone-less ISO 8601 timestamps. Missing or
// unreadable values fall back to now.
func parseTimestamp(v *string, now time.Time) time.Time {
	if v == nil || *v == "" {
		return now
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *v); err == nil {
			return t
		}
	}
	return now
}

func formatTimestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}
