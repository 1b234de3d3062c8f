package domain

import (
	"fmt"
	"strings"
	"time"

	"profitloss-backend/internal/pkg/validation"
)

const YearNameMaxLength = 20

// FiscalYear is the master record projects are bucketed by. Projects reference it by
// year value, not by foreign key.
type FiscalYear struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Year      int       `gorm:"column:year;not null;uniqueIndex" json:"year"`
	YearName  string    `gorm:"column:year_name;type:varchar(20);not null;uniqueIndex" json:"year_name"`
	IsActive  bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (FiscalYear) TableName() string {
	return "fiscal_years"
}

// DefaultYearName is used when a fiscal year is created without a display name.
func DefaultYearName(year int) string {
	return fmt.Sprintf("%d年度", year)
}

func NewFiscalYear(year int, yearName string, active bool) (*FiscalYear, error) {
	name := strings.TrimSpace(yearName)
	if name == "" {
		name = DefaultYearName(year)
	}
	fy := &FiscalYear{Year: year, YearName: name, IsActive: active}
	if err := fy.Validate(); err != nil {
		return nil, err
	}
	return fy, nil
}

func (fy *FiscalYear) Validate() error {
	var errs ValidationErrors
	if !validation.IsValidYear(fy.Year) {
		errs.add("year", "year must be between 1900 and 2100")
	}
	switch {
	case fy.YearName == "":
		errs.add("year_name", "year name is required")
	case !validation.MaxLength(fy.YearName, YearNameMaxLength):
		errs.add("year_name", "year name must be at most 20 characters")
	}
	return errs.Err()
}
