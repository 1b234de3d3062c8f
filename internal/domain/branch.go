package domain

import (
	"strings"
	"time"

	"profitloss-backend/internal/pkg/validation"
)

const (
	BranchCodeMaxLength = 20
	BranchNameMaxLength = 100
)

// Branch is a sales office that owns projects.
type Branch struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BranchCode string    `gorm:"column:branch_code;type:varchar(20);not null;uniqueIndex" json:"branch_code"`
	BranchName string    `gorm:"column:branch_name;type:varchar(100);not null;uniqueIndex" json:"branch_name"`
	IsActive   bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Branch) TableName() string {
	return "branches"
}

// NewBranch trims and checks the field rules. Uniqueness is checked by the caller
// against the store.
func NewBranch(code, name string, active bool) (*Branch, error) {
	b := &Branch{
		BranchCode: strings.TrimSpace(code),
		BranchName: strings.TrimSpace(name),
		IsActive:   active,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Branch) Validate() error {
	var errs ValidationErrors
	switch {
	case b.BranchCode == "":
		errs.add("branch_code", "branch code is required")
	case !validation.MaxLength(b.BranchCode, BranchCodeMaxLength):
		errs.add("branch_code", "branch code must be at most 20 characters")
	case !validation.IsValidCode(b.BranchCode):
		errs.add("branch_code", "branch code may contain only letters, digits, hyphens and underscores")
	}
	switch {
	case b.BranchName == "":
		errs.add("branch_name", "branch name is required")
	case !validation.MaxLength(b.BranchName, BranchNameMaxLength):
		errs.add("branch_name", "branch name must be at most 100 characters")
	}
	return errs.Err()
}
