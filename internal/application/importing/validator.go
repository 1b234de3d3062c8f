package importing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"profitloss-backend/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

// RowErrorKind classifies a problem that blocks a single row.
type RowErrorKind string

const (
	EmptyRequiredField      RowErrorKind = "EmptyRequiredField"
	NotNumeric              RowErrorKind = "NotNumeric"
	InvalidOrderProbability RowErrorKind = "InvalidOrderProbability"
	BranchNameTooLong       RowErrorKind = "BranchNameTooLong"
	DuplicateOfExisting     RowErrorKind = "DuplicateOfExisting"
	InFileDuplicate         RowErrorKind = "InFileDuplicate"
)

type RowError struct {
	Kind    RowErrorKind `json:"kind"`
	Field   Field        `json:"field,omitempty"`
	Message string       `json:"message"`
}

// RowValues are the canonical values of a row that passed validation.
type RowValues struct {
	ProjectCode      string                  `json:"project_code"`
	ProjectName      string                  `json:"project_name"`
	BranchName       string                  `json:"branch_name"`
	BranchCode       string                  `json:"branch_code,omitempty"`
	FiscalYear       int                     `json:"fiscal_year"`
	OrderProbability domain.OrderProbability `json:"order_probability"`
	Revenue          decimal.Decimal         `json:"revenue"`
	Expenses         decimal.Decimal         `json:"expenses"`
}

// RowOutcome is the validation verdict for one row. Values is set only when Errors is empty.
type RowOutcome struct {
	Row         int               `json:"row"`
	ProjectCode string            `json:"project_code"`
	Data        map[string]string `json:"data"`
	Values      *RowValues        `json:"values,omitempty"`
	Errors      []RowError        `json:"errors"`
	Duplicate   bool              `json:"duplicate"`
}

func (o *RowOutcome) Valid() bool { return len(o.Errors) == 0 }

// Importable reports whether the importer may persist the row.
func (o *RowOutcome) Importable() bool { return o.Valid() && !o.Duplicate }

func (o *RowOutcome) add(kind RowErrorKind, field Field, msg string) {
	o.Errors = append(o.Errors, RowError{Kind: kind, Field: field, Message: msg})
}

// Duplicate is one project code that appears on several rows of the same file.
type Duplicate struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Rows    []int  `json:"rows"`
	Message string `json:"message"`
}

type Summary struct {
	TotalRows      int     `json:"total_rows"`
	ValidRows      int     `json:"valid_rows"`
	ErrorRows      int     `json:"error_rows"`
	DuplicateCount int     `json:"duplicate_count"`
	SuccessRate    float64 `json:"success_rate"`
}

type Validation struct {
	Rows       []RowOutcome `json:"rows"`
	Duplicates []Duplicate  `json:"duplicates"`
	Summary    Summary      `json:"summary"`
}

// Invalid returns the outcomes that carry errors, in file order.
func (v *Validation) Invalid() []RowOutcome {
	var out []RowOutcome
	for _, r := range v.Rows {
		if !r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// CodeLister reports which of the given project codes are already stored.
type CodeLister interface {
	ExistingCodes(ctx context.Context, codes []string) (map[string]bool, error)
}

// Validator checks mapped rows without writing anything.
type Validator struct {
	Codes CodeLister
}

// Validate runs the row checks in order: required fields, numeric fields, order
// probability, branch name length, existing codes, then in-file duplicates.
func (v *Validator) Validate(ctx context.Context, records []Record) (*Validation, error) {
	existing := map[string]bool{}
	if v.Codes != nil {
		codes := make([]string, 0, len(records))
		for _, r := range records {
			if r.ProjectCode != "" {
				codes = append(codes, r.ProjectCode)
			}
		}
		var err error
		if existing, err = v.Codes.ExistingCodes(ctx, codes); err != nil {
			return nil, fmt.Errorf("load existing project codes: %w", err)
		}
	}

	out := &Validation{Rows: make([]RowOutcome, len(records)), Duplicates: []Duplicate{}}
	byRow := make(map[int]int, len(records))
	for i := range records {
		out.Rows[i] = validateRecord(&records[i], existing)
		byRow[records[i].Row] = i
	}

	out.Duplicates = findDuplicates(records)
	for _, d := range out.Duplicates {
		for _, row := range d.Rows {
			out.Rows[byRow[row]].Duplicate = true
		}
	}

	s := Summary{TotalRows: len(records), DuplicateCount: len(out.Duplicates)}
	for _, r := range out.Rows {
		if !r.Valid() {
			s.ErrorRows++
		}
	}
	s.ValidRows = s.TotalRows - s.ErrorRows
	if s.TotalRows > 0 {
		s.SuccessRate = float64(s.ValidRows) / float64(s.TotalRows) * 100
	}
	out.Summary = s
	return out, nil
}

func validateRecord(rec *Record, existing map[string]bool) RowOutcome {
	o := RowOutcome{Row: rec.Row, ProjectCode: rec.ProjectCode, Data: rec.Raw, Errors: []RowError{}}

	for _, f := range RequiredFields() {
		if rec.Value(f) == "" {
			o.add(EmptyRequiredField, f, fmt.Sprintf("%s is empty", fieldLabel(f)))
		}
	}

	var (
		year              int
		revenue, expenses decimal.Decimal
		err               error
	)
	if s := rec.FiscalYear; s != "" {
		if year, err = parseYear(s); err != nil {
			o.add(NotNumeric, FieldFiscalYear, fmt.Sprintf("fiscal_year must be a whole number: %q", s))
		}
	}
	if s := rec.Revenue; s != "" {
		if revenue, err = parseAmount(s); err != nil {
			o.add(NotNumeric, FieldRevenue, fmt.Sprintf("revenue must be numeric: %q", s))
		}
	}
	if s := rec.Expenses; s != "" {
		if expenses, err = parseAmount(s); err != nil {
			o.add(NotNumeric, FieldExpenses, fmt.Sprintf("expenses must be numeric: %q", s))
		}
	}

	var prob domain.OrderProbability
	if s := rec.OrderProbability; s != "" {
		var ok bool
		if prob, ok = domain.ParseOrderProbability(s); !ok {
			o.add(InvalidOrderProbability, FieldOrderProbability, fmt.Sprintf("invalid order probability: %q", s))
		}
	}

	if len([]rune(rec.BranchName)) > domain.BranchNameMaxLength {
		o.add(BranchNameTooLong, FieldBranchName, "branch name must be at most 100 characters")
	}

	if rec.ProjectCode != "" && existing[rec.ProjectCode] {
		o.add(DuplicateOfExisting, FieldProjectCode, fmt.Sprintf("project code %q already exists", rec.ProjectCode))
	}

	if o.Valid() {
		o.Values = &RowValues{
			ProjectCode:      rec.ProjectCode,
			ProjectName:      rec.ProjectName,
			BranchName:       rec.BranchName,
			BranchCode:       rec.BranchCode,
			FiscalYear:       year,
			OrderProbability: prob,
			Revenue:          revenue,
			Expenses:         expenses,
		}
	}
	return o
}

// findDuplicates groups rows by non-empty project code, in order of first appearance.
func findDuplicates(records []Record) []Duplicate {
	rowsByCode := map[string][]int{}
	var order []string
	for _, r := range records {
		if r.ProjectCode == "" {
			continue
		}
		if _, seen := rowsByCode[r.ProjectCode]; !seen {
			order = append(order, r.ProjectCode)
		}
		rowsByCode[r.ProjectCode] = append(rowsByCode[r.ProjectCode], r.Row)
	}
	dups := []Duplicate{}
	for _, code := range order {
		rows := rowsByCode[code]
		if len(rows) < 2 {
			continue
		}
		dups = append(dups, Duplicate{
			Type:    "file_duplicate",
			Code:    code,
			Rows:    rows,
			Message: fmt.Sprintf("project code %q appears %d times in the file", code, len(rows)),
		})
	}
	return dups
}

// cleanNumber folds full-width digits and drops thousands separators and currency marks.
func cleanNumber(s string) string {
	s = strings.TrimSpace(width.Fold.String(s))
	s = strings.NewReplacer(",", "", "¥", "", "$", "", " ", "").Replace(s)
	return s
}

var maxYearMagnitude = decimal.NewFromInt(math.MaxInt32)

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(cleanNumber(s))
}

// parseYear accepts "2024" and spreadsheet renderings such as "2024.0".
func parseYear(s string) (int, error) {
	c := cleanNumber(s)
	if n, err := strconv.Atoi(c); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(c)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("not a whole number: %s", s)
	}
	if d.Abs().GreaterThan(maxYearMagnitude) {
		return 0, fmt.Errorf("out of range: %s", s)
	}
	return int(d.IntPart()), nil
}
