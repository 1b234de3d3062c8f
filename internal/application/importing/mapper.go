package importing

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Field names a system field a file column can be mapped to.
type Field string

const (
	FieldProjectCode      Field = "project_code"
	FieldProjectName      Field = "project_name"
	FieldBranchName       Field = "branch_name"
	FieldBranchCode       Field = "branch_code"
	FieldFiscalYear       Field = "fiscal_year"
	FieldOrderProbability Field = "order_probability"
	FieldRevenue          Field = "revenue"
	FieldExpenses         Field = "expenses"
)

// SystemField documents a field for mapping UIs.
type SystemField struct {
	Name        Field  `json:"name"`
	Label       string `json:"label"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

var systemFields = []SystemField{
	{FieldProjectCode, "プロジェクトコード", true, "unique project identifier", "PRJ001, PROJECT-2024-001"},
	{FieldProjectName, "プロジェクト名", true, "project name", "新システム開発プロジェクト"},
	{FieldBranchName, "支社名", true, "branch that manages the project", "東京支社, 大阪支社"},
	{FieldBranchCode, "支社コード", false, "branch code (optional)", "TKY, OSK"},
	{FieldFiscalYear, "売上の年度", true, "fiscal year the revenue is booked in", "2024, 2025"},
	{FieldOrderProbability, "受注角度", true, "order probability (〇=100, △=50, ×=0)", "〇, △, ×, 100, 50, 0"},
	{FieldRevenue, "売上（契約金）", true, "contract amount", "1000000, 5000000"},
	{FieldExpenses, "経費（トータル）", true, "total expenses", "800000, 3000000"},
}

// SystemFields returns the field definitions in display order.
func SystemFields() []SystemField {
	out := make([]SystemField, len(systemFields))
	copy(out, systemFields)
	return out
}

// RequiredFields are the seven fields every row must carry.
func RequiredFields() []Field {
	var out []Field
	for _, f := range systemFields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

func fieldLabel(f Field) string {
	for _, sf := range systemFields {
		if sf.Name == f {
			return sf.Label
		}
	}
	return string(f)
}

func knownField(f Field) bool {
	for _, sf := range systemFields {
		if sf.Name == f {
			return true
		}
	}
	return false
}

type headerAlias struct {
	header string
	field  Field
}

// Known header spellings, matched in declaration order. branch_name precedes branch_code so
// a bare "支社" column resolves to the name. The short "年度" comes last so "年度売上"
// resolves to revenue.
var headerAliases = []headerAlias{
	{"プロジェクトコード", FieldProjectCode},
	{"案件コード", FieldProjectCode},
	{"project_code", FieldProjectCode},
	{"project code", FieldProjectCode},
	{"プロジェクト名", FieldProjectName},
	{"案件名", FieldProjectName},
	{"project_name", FieldProjectName},
	{"project name", FieldProjectName},
	{"支社名", FieldBranchName},
	{"branch_name", FieldBranchName},
	{"branch name", FieldBranchName},
	{"支社コード", FieldBranchCode},
	{"branch_code", FieldBranchCode},
	{"branch code", FieldBranchCode},
	{"売上の年度", FieldFiscalYear},
	{"fiscal_year", FieldFiscalYear},
	{"fiscal year", FieldFiscalYear},
	{"受注角度", FieldOrderProbability},
	{"受注確度", FieldOrderProbability},
	{"order_probability", FieldOrderProbability},
	{"order probability", FieldOrderProbability},
	{"売上", FieldRevenue},
	{"売上（契約金）", FieldRevenue},
	{"契約金", FieldRevenue},
	{"revenue", FieldRevenue},
	{"経費", FieldExpenses},
	{"経費（トータル）", FieldExpenses},
	{"expenses", FieldExpenses},
	{"年度", FieldFiscalYear},
}

// Mapping assigns system fields to file column names.
type Mapping map[Field]string

// normalizeHeader applies NFKC (full-width to narrow), trims and lower-cases, so
// "ＰＲＯＪＥＣＴ　ＣＯＤＥ" and "project code" compare equal.
func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// AutoMap proposes a mapping for columns. For each column in order an exact alias match is
// tried first, then containment in either direction. A field is assigned at most once and a
// column is used at most once; the result depends only on the column list.
func AutoMap(columns []string) Mapping {
	m := make(Mapping)
	for _, col := range columns {
		nc := normalizeHeader(col)
		if nc == "" {
			continue
		}
		if f, ok := matchAlias(m, nc, true); ok {
			m[f] = col
			continue
		}
		if f, ok := matchAlias(m, nc, false); ok {
			m[f] = col
		}
	}
	return m
}

func matchAlias(assigned Mapping, nc string, exact bool) (Field, bool) {
	for _, a := range headerAliases {
		if _, taken := assigned[a.field]; taken {
			continue
		}
		alias := normalizeHeader(a.header)
		if exact {
			if nc == alias {
				return a.field, true
			}
			continue
		}
		if strings.Contains(nc, alias) || strings.Contains(alias, nc) {
			return a.field, true
		}
	}
	return "", false
}

// ResolveMapping returns explicit when it has entries, otherwise the automatic mapping.
// Entries with an empty column name are dropped.
func ResolveMapping(explicit Mapping, columns []string) Mapping {
	if len(explicit) == 0 {
		return AutoMap(columns)
	}
	out := make(Mapping, len(explicit))
	for f, col := range explicit {
		if strings.TrimSpace(col) == "" {
			continue
		}
		out[f] = col
	}
	return out
}

// ErrInvalidMapping is matched by every *MappingError.
var ErrInvalidMapping = errors.New("invalid column mapping")

type MappingProblemKind string

const (
	MissingRequiredField MappingProblemKind = "MissingRequiredField"
	DuplicateColumnUsage MappingProblemKind = "DuplicateColumnUsage"
	UnknownColumn        MappingProblemKind = "UnknownColumn"
	UnknownField         MappingProblemKind = "UnknownField"
)

type MappingProblem struct {
	Kind    MappingProblemKind `json:"kind"`
	Field   Field              `json:"field,omitempty"`
	Column  string             `json:"column,omitempty"`
	Message string             `json:"message"`
}

// MappingError lists every problem found in a mapping.
type MappingError struct {
	Problems []MappingProblem
}

func (e *MappingError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return "invalid column mapping: " + strings.Join(msgs, "; ")
}

func (e *MappingError) Unwrap() error { return ErrInvalidMapping }

// Messages returns the problem messages in order.
func (e *MappingError) Messages() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.Message
	}
	return out
}

const warnBranchCodeUnmapped = "branch code column is not mapped; branches will be matched by name only"

// ValidateMapping checks mapping against the file's columns. Problems are returned together
// as a *MappingError; warnings never block the import.
func ValidateMapping(mapping Mapping, columns []string) ([]string, error) {
	var problems []MappingProblem
	for _, sf := range systemFields {
		if _, ok := mapping[sf.Name]; sf.Required && !ok {
			problems = append(problems, MappingProblem{
				Kind:    MissingRequiredField,
				Field:   sf.Name,
				Message: fmt.Sprintf("%s (%s) is required", sf.Label, sf.Name),
			})
		}
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	usedBy := make(map[string]Field)
	for _, f := range orderedFields(mapping) {
		col := mapping[f]
		if !knownField(f) {
			problems = append(problems, MappingProblem{
				Kind: UnknownField, Field: f, Column: col,
				Message: fmt.Sprintf("unknown field %q", f),
			})
			continue
		}
		if prev, dup := usedBy[col]; dup {
			problems = append(problems, MappingProblem{
				Kind: DuplicateColumnUsage, Field: f, Column: col,
				Message: fmt.Sprintf("column %q is assigned to both %s and %s", col, prev, f),
			})
		} else {
			usedBy[col] = f
		}
		if !present[col] {
			problems = append(problems, MappingProblem{
				Kind: UnknownColumn, Field: f, Column: col,
				Message: fmt.Sprintf("column %q does not exist in the file", col),
			})
		}
	}

	var warnings []string
	if _, hasName := mapping[FieldBranchName]; hasName {
		if _, hasCode := mapping[FieldBranchCode]; !hasCode {
			warnings = append(warnings, warnBranchCodeUnmapped)
		}
	}
	if len(problems) > 0 {
		return warnings, &MappingError{Problems: problems}
	}
	return warnings, nil
}

// orderedFields gives a stable iteration order: system fields first, then unknown keys.
func orderedFields(m Mapping) []Field {
	out := make([]Field, 0, len(m))
	for _, sf := range systemFields {
		if _, ok := m[sf.Name]; ok {
			out = append(out, sf.Name)
		}
	}
	var extra []Field
	for f := range m {
		if !knownField(f) {
			extra = append(extra, f)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

var (
	branchColumnKeywords = []string{"支社", "branch", "営業所", "office"}
	branchNameMarkers    = []string{"名", "name"}
	branchCodeMarkers    = []string{"コード", "code", "cd"}
)

// BranchColumns is the best guess for the branch name/code columns.
type BranchColumns struct {
	NameColumn string `json:"branch_name_column,omitempty"`
	CodeColumn string `json:"branch_code_column,omitempty"`
}

// SuggestBranchColumns looks for branch/office columns that also mention a name or code.
// The last matching column wins.
func SuggestBranchColumns(columns []string) BranchColumns {
	var out BranchColumns
	for _, col := range columns {
		nc := normalizeHeader(col)
		if !containsAny(nc, branchColumnKeywords) {
			continue
		}
		switch {
		case containsAny(nc, branchNameMarkers):
			out.NameColumn = col
		case containsAny(nc, branchCodeMarkers):
			out.CodeColumn = col
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Record is one file row after mapping. Unmapped fields are empty strings; Raw keeps the
// original cells by column name for error reports.
type Record struct {
	Row              int
	ProjectCode      string
	ProjectName      string
	BranchName       string
	BranchCode       string
	FiscalYear       string
	OrderProbability string
	Revenue          string
	Expenses         string
	Raw              map[string]string
}

// Value returns the mapped cell for f.
func (r *Record) Value(f Field) string {
	switch f {
	case FieldProjectCode:
		return r.ProjectCode
	case FieldProjectName:
		return r.ProjectName
	case FieldBranchName:
		return r.BranchName
	case FieldBranchCode:
		return r.BranchCode
	case FieldFiscalYear:
		return r.FiscalYear
	case FieldOrderProbability:
		return r.OrderProbability
	case FieldRevenue:
		return r.Revenue
	case FieldExpenses:
		return r.Expenses
	}
	return ""
}

func (r *Record) set(f Field, v string) {
	switch f {
	case FieldProjectCode:
		r.ProjectCode = v
	case FieldProjectName:
		r.ProjectName = v
	case FieldBranchName:
		r.BranchName = v
	case FieldBranchCode:
		r.BranchCode = v
	case FieldFiscalYear:
		r.FiscalYear = v
	case FieldOrderProbability:
		r.OrderProbability = v
	case FieldRevenue:
		r.Revenue = v
	case FieldExpenses:
		r.Expenses = v
	}
}

// ApplyMapping projects every table row onto a Record. Row numbers are 1-based data rows.
// Columns missing from the table leave their field empty.
func ApplyMapping(t *Table, mapping Mapping) []Record {
	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		index[c] = i
	}
	out := make([]Record, len(t.Rows))
	for i, row := range t.Rows {
		rec := Record{Row: i + 1, Raw: t.rowMap(row)}
		for f, col := range mapping {
			if idx, ok := index[col]; ok {
				rec.set(f, strings.TrimSpace(row[idx]))
			}
		}
		out[i] = rec
	}
	return out
}
