package importing

import (
	"context"
	"errors"
	"fmt"

	"profitloss-backend/internal/application/branches"
	"profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/domain"
	"profitloss-backend/internal/infrastructure/database"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrorCategory tags an entry of Result.Errors with the stage that rejected the row.
type ErrorCategory string

const (
	CategoryValidation      ErrorCategory = "validation_error"
	CategoryModelValidation ErrorCategory = "model_validation_error"
	CategoryProcessing      ErrorCategory = "processing_error"
	CategoryUnexpected      ErrorCategory = "unexpected_error"
)

// Status says how much of a batch reached the database.
type Status string

const (
	StatusCommitted          Status = "committed"
	StatusPartiallyCommitted Status = "partially_committed"
	StatusRejected           Status = "rejected"
)

type ImportError struct {
	Row      int               `json:"row"`
	Category ErrorCategory     `json:"type"`
	Kind     RowErrorKind      `json:"kind,omitempty"`
	Message  string            `json:"error"`
	Data     map[string]string `json:"data"`
}

type ImportedProject struct {
	Row         int    `json:"row"`
	ProjectID   uint   `json:"project_id"`
	ProjectCode string `json:"project_code"`
	ProjectName string `json:"project_name"`
}

type CreatedBranch struct {
	Row        int    `json:"row"`
	BranchID   uint   `json:"branch_id"`
	BranchCode string `json:"branch_code"`
	BranchName string `json:"branch_name"`
}

// Result is the outcome of one import run. SuccessCount + ErrorCount == TotalRows.
type Result struct {
	TotalRows          int               `json:"total_rows"`
	SuccessCount       int               `json:"success_count"`
	ErrorCount         int               `json:"error_count"`
	SkippedCount       int               `json:"skipped_count"`
	SuccessRate        float64           `json:"success_rate"`
	Status             Status            `json:"status"`
	Errors             []ImportError     `json:"errors"`
	SuccessfulProjects []ImportedProject `json:"successful_projects"`
	CreatedBranches    []CreatedBranch   `json:"created_branches"`
	Duplicates         []Duplicate       `json:"duplicates"`
	ValidationSummary  Summary           `json:"validation_summary"`
	Columns            []string          `json:"columns"`
}

// Importer persists validated rows. Each row commits on its own; a failing row never
// aborts the batch.
type Importer struct {
	DB       *gorm.DB
	Branches *branches.Service
	Projects *projects.Service
}

// processingError marks failures while preparing a row (branch resolution) as opposed to
// the project constructor rejecting it.
type processingError struct{ err error }

func (e *processingError) Error() string { return e.err.Error() }
func (e *processingError) Unwrap() error { return e.err }

func (im *Importer) Import(ctx context.Context, v *Validation) *Result {
	res := &Result{
		TotalRows:          len(v.Rows),
		Errors:             []ImportError{},
		SuccessfulProjects: []ImportedProject{},
		CreatedBranches:    []CreatedBranch{},
		Duplicates:         v.Duplicates,
		ValidationSummary:  v.Summary,
	}

	for i := range v.Rows {
		row := &v.Rows[i]
		if !row.Importable() {
			res.ErrorCount++
			res.SkippedCount++
			res.Errors = append(res.Errors, skippedErrors(row)...)
			continue
		}

		project, branch, err := im.importRow(ctx, row)
		if err != nil {
			category := classify(err)
			res.ErrorCount++
			res.Errors = append(res.Errors, ImportError{
				Row:      row.Row,
				Category: category,
				Message:  err.Error(),
				Data:     row.Data,
			})
			log.Warn().Int("row", row.Row).Str("category", string(category)).Err(err).Msg("Import row failed")
			continue
		}
		if branch != nil {
			res.CreatedBranches = append(res.CreatedBranches, CreatedBranch{
				Row: row.Row, BranchID: branch.ID, BranchCode: branch.BranchCode, BranchName: branch.BranchName,
			})
			log.Info().Int("row", row.Row).Str("branch_code", branch.BranchCode).Str("branch_name", branch.BranchName).Msg("Branch created during import")
		}
		res.SuccessCount++
		res.SuccessfulProjects = append(res.SuccessfulProjects, ImportedProject{
			Row: row.Row, ProjectID: project.ID, ProjectCode: project.ProjectCode, ProjectName: project.ProjectName,
		})
	}

	if res.TotalRows > 0 {
		res.SuccessRate = float64(res.SuccessCount) / float64(res.TotalRows) * 100
	}
	switch {
	case res.TotalRows > 0 && res.SuccessCount == res.TotalRows:
		res.Status = StatusCommitted
	case res.SuccessCount > 0:
		res.Status = StatusPartiallyCommitted
	default:
		res.Status = StatusRejected
	}
	log.Info().Int("total", res.TotalRows).Int("success", res.SuccessCount).Int("errors", res.ErrorCount).
		Int("skipped", res.SkippedCount).Str("status", string(res.Status)).Msg("Import finished")
	return res
}

// importRow resolves or creates the branch and creates the project in one transaction.
// A panic inside the row is returned as an error.
func (im *Importer) importRow(ctx context.Context, row *RowOutcome) (project *domain.Project, created *domain.Branch, err error) {
	defer func() {
		if r := recover(); r != nil {
			project, created = nil, nil
			err = &unexpectedError{value: r}
		}
	}()

	vals := row.Values
	err = im.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		branch, isNew, err := im.resolveBranch(tx, vals)
		if err != nil {
			return err
		}
		p, err := im.Projects.CreateTx(tx, domain.ProjectFields{
			ProjectCode:      vals.ProjectCode,
			ProjectName:      vals.ProjectName,
			BranchID:         branch.ID,
			FiscalYear:       vals.FiscalYear,
			OrderProbability: vals.OrderProbability,
			Revenue:          vals.Revenue,
			Expenses:         vals.Expenses,
		})
		if err != nil {
			return err
		}
		project = p
		if isNew {
			created = branch
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return project, created, nil
}

func (im *Importer) resolveBranch(tx *gorm.DB, vals *RowValues) (*domain.Branch, bool, error) {
	branch, err := im.Branches.FindByName(tx, vals.BranchName)
	if err == nil {
		return branch, false, nil
	}
	if !errors.Is(err, branches.ErrBranchNotFound) {
		return nil, false, &processingError{err: fmt.Errorf("look up branch: %w", err)}
	}
	code := vals.BranchCode
	if code == "" {
		if code, err = im.Branches.GenerateCode(tx, vals.BranchName); err != nil {
			return nil, false, &processingError{err: fmt.Errorf("generate branch code: %w", err)}
		}
	}
	branch, err = im.Branches.CreateTx(tx, code, vals.BranchName, true)
	if err != nil {
		return nil, false, &processingError{err: fmt.Errorf("create branch %q: %w", vals.BranchName, err)}
	}
	return branch, true, nil
}

type unexpectedError struct{ value interface{} }

func (e *unexpectedError) Error() string { return fmt.Sprintf("unexpected error: %v", e.value) }

// classify maps a row failure to its category. A unique-constraint race at insert time is a
// model validation failure of that row.
func classify(err error) ErrorCategory {
	var pe *processingError
	var ue *unexpectedError
	switch {
	case errors.As(err, &ue):
		return CategoryUnexpected
	case errors.As(err, &pe):
		return CategoryProcessing
	case domain.IsValidation(err), database.IsUniqueViolation(err):
		return CategoryModelValidation
	}
	return CategoryUnexpected
}

func skippedErrors(row *RowOutcome) []ImportError {
	out := make([]ImportError, 0, len(row.Errors)+1)
	for _, e := range row.Errors {
		out = append(out, ImportError{
			Row: row.Row, Category: CategoryValidation, Kind: e.Kind, Message: e.Message, Data: row.Data,
		})
	}
	if row.Duplicate {
		out = append(out, ImportError{
			Row: row.Row, Category: CategoryValidation, Kind: InFileDuplicate,
			Message: fmt.Sprintf("project code %q is duplicated within the file", row.ProjectCode), Data: row.Data,
		})
	}
	return out
}
