package domain

import (
	"strings"
	"time"

	"profitloss-backend/internal/pkg/validation"

	"github.com/shopspring/decimal"
)

const (
	ProjectCodeMaxLength = 50
	ProjectNameMaxLength = 200
	currencyPlaces       = 2
)

type Project struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	ProjectCode      string           `gorm:"column:project_code;type:varchar(50);not null;uniqueIndex" json:"project_code"`
	ProjectName      string           `gorm:"column:project_name;type:varchar(200);not null" json:"project_name"`
	BranchID         uint             `gorm:"column:branch_id;not null;index" json:"branch_id"`
	Branch           *Branch          `gorm:"foreignKey:BranchID" json:"-"`
	FiscalYear       int              `gorm:"column:fiscal_year;not null;index" json:"fiscal_year"`
	OrderProbability OrderProbability `gorm:"column:order_probability;not null" json:"order_probability"`
	Revenue          decimal.Decimal  `gorm:"column:revenue;type:decimal(15,2);not null" json:"revenue"`
	Expenses         decimal.Decimal  `gorm:"column:expenses;type:decimal(15,2);not null" json:"expenses"`
	CreatedAt        time.Time        `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectFields is the input to NewProject and Project.Apply.
type ProjectFields struct {
	ProjectCode      string
	ProjectName      string
	BranchID         uint
	FiscalYear       int
	OrderProbability OrderProbability
	Revenue          decimal.Decimal
	Expenses         decimal.Decimal
}

// NewProject checks the field rules of a project. Branch existence/activity and code
// uniqueness need the store and are checked by the projects service.
func NewProject(f ProjectFields) (*Project, error) {
	p := &Project{}
	p.Apply(f)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply overwrites the editable fields, normalising text and currency.
func (p *Project) Apply(f ProjectFields) {
	p.ProjectCode = strings.TrimSpace(f.ProjectCode)
	p.ProjectName = strings.TrimSpace(f.ProjectName)
	p.BranchID = f.BranchID
	p.FiscalYear = f.FiscalYear
	p.OrderProbability = f.OrderProbability
	p.Revenue = f.Revenue.Round(currencyPlaces)
	p.Expenses = f.Expenses.Round(currencyPlaces)
}

func (p *Project) Validate() error {
	var errs ValidationErrors
	switch {
	case p.ProjectCode == "":
		errs.add("project_code", "project code is required")
	case !validation.MaxLength(p.ProjectCode, ProjectCodeMaxLength):
		errs.add("project_code", "project code must be at most 50 characters")
	case !validation.IsValidCode(p.ProjectCode):
		errs.add("project_code", "project code may contain only letters, digits, hyphens and underscores")
	}
	switch {
	case p.ProjectName == "":
		errs.add("project_name", "project name is required")
	case !validation.MaxLength(p.ProjectName, ProjectNameMaxLength):
		errs.add("project_name", "project name must be at most 200 characters")
	}
	if p.BranchID == 0 {
		errs.add("branch_id", "branch is required")
	}
	if !validation.IsValidYear(p.FiscalYear) {
		errs.add("fiscal_year", "fiscal year must be between 1900 and 2100")
	}
	if !p.OrderProbability.Valid() {
		errs.add("order_probability", "order probability must be one of 0, 50 or 100")
	}
	if p.Revenue.IsNegative() {
		errs.add("revenue", "revenue must be zero or greater")
	}
	if p.Expenses.IsNegative() {
		errs.add("expenses", "expenses must be zero or greater")
	}
	return errs.Err()
}

// GrossProfit is revenue minus expenses and may be negative.
func (p *Project) GrossProfit() decimal.Decimal {
	return GrossProfit(p.Revenue, p.Expenses)
}

// GrossProfitRate is the gross profit as a percentage of revenue, 0 when revenue is 0.
func (p *Project) GrossProfitRate() decimal.Decimal {
	return GrossProfitRate(p.Revenue, p.Expenses)
}

func GrossProfit(revenue, expenses decimal.Decimal) decimal.Decimal {
	return revenue.Sub(expenses)
}

func GrossProfitRate(revenue, expenses decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return GrossProfit(revenue, expenses).Div(revenue).Mul(decimal.NewFromInt(100)).Round(1)
}

// ProjectView is the JSON shape returned by the API, with currency as numbers and
// derived values filled in.
type ProjectView struct {
	ID                     uint      `json:"id"`
	ProjectCode            string    `json:"project_code"`
	ProjectName            string    `json:"project_name"`
	BranchID               uint      `json:"branch_id"`
	BranchCode             string    `json:"branch_code,omitempty"`
	BranchName             string    `json:"branch_name,omitempty"`
	FiscalYear             int       `json:"fiscal_year"`
	OrderProbability       int       `json:"order_probability"`
	OrderProbabilitySymbol string    `json:"order_probability_symbol"`
	Revenue                float64   `json:"revenue"`
	Expenses               float64   `json:"expenses"`
	GrossProfit            float64   `json:"gross_profit"`
	GrossProfitRate        float64   `json:"gross_profit_rate"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (p *Project) View() ProjectView {
	v := ProjectView{
		ID:                     p.ID,
		ProjectCode:            p.ProjectCode,
		ProjectName:            p.ProjectName,
		BranchID:               p.BranchID,
		FiscalYear:             p.FiscalYear,
		OrderProbability:       p.OrderProbability.Value(),
		OrderProbabilitySymbol: p.OrderProbability.Symbol(),
		Revenue:                p.Revenue.InexactFloat64(),
		Expenses:               p.Expenses.InexactFloat64(),
		GrossProfit:            p.GrossProfit().InexactFloat64(),
		GrossProfitRate:        p.GrossProfitRate().InexactFloat64(),
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
	if p.Branch != nil {
		v.BranchCode = p.Branch.BranchCode
		v.BranchName = p.Branch.BranchName
	}
	return v
}
