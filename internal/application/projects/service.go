package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"profitloss-backend/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrProjectNotFound = errors.New("Project not found")

const (
	defaultPerPage = 20
	maxPerPage     = 200
)

type Service struct {
	DB *gorm.DB
}

// Filter narrows project searches and exports. Zero values mean "no filter".
type Filter struct {
	Search         string
	ProjectCode    string
	ProjectName    string
	FiscalYear     int
	BranchID       uint
	MinProbability *int
	MaxProbability *int
	Page           int
	PerPage        int
}

type Page struct {
	Items      []domain.ProjectView `json:"items"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"per_page"`
	TotalPages int                  `json:"total_pages"`
}

func (s *Service) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := s.DB.WithContext(ctx).Model(&domain.Project{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("project_code LIKE ? OR project_name LIKE ?", like, like)
	}
	if code := strings.TrimSpace(f.ProjectCode); code != "" {
		q = q.Where("project_code LIKE ?", "%"+code+"%")
	}
	if name := strings.TrimSpace(f.ProjectName); name != "" {
		q = q.Where("project_name LIKE ?", "%"+name+"%")
	}
	if f.FiscalYear != 0 {
		q = q.Where("fiscal_year = ?", f.FiscalYear)
	}
	if f.BranchID != 0 {
		q = q.Where("branch_id = ?", f.BranchID)
	}
	if f.MinProbability != nil {
		q = q.Where("order_probability >= ?", *f.MinProbability)
	}
	if f.MaxProbability != nil {
		q = q.Where("order_probability <= ?", *f.MaxProbability)
	}
	return q
}

// Search returns one page of projects, newest first.
func (s *Service) Search(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("Failed to count projects: %w", err)
	}
	var list []domain.Project
	if err := s.filtered(ctx, f).Preload("Branch").
		Order("created_at DESC").Order("id DESC").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch projects: %w", err)
	}
	items := make([]domain.ProjectView, len(list))
	for i := range list {
		items[i] = list[i].View()
	}
	pages := int((total + int64(f.PerPage) - 1) / int64(f.PerPage))
	return &Page{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage, TotalPages: pages}, nil
}

// All returns every project matching f (pagination ignored), newest first.
func (s *Service) All(ctx context.Context, f Filter) ([]domain.Project, error) {
	var list []domain.Project
	if err := s.filtered(ctx, f).Preload("Branch").Order("created_at DESC").Order("id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch projects: %w", err)
	}
	return list, nil
}

func (s *Service) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	err := s.filtered(ctx, f).Count(&n).Error
	return n, err
}

func (s *Service) Get(ctx context.Context, id uint) (*domain.Project, error) {
	var p domain.Project
	if err := s.DB.WithContext(ctx).Preload("Branch").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) Create(ctx context.Context, f domain.ProjectFields) (*domain.Project, error) {
	var created *domain.Project
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.CreateTx(tx, f)
		created = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateTx is the validated constructor: field rules, branch exists and is active, code is
// unused, then the insert. All checks read through tx.
func (s *Service) CreateTx(tx *gorm.DB, f domain.ProjectFields) (*domain.Project, error) {
	p, err := domain.NewProject(f)
	if err != nil {
		return nil, err
	}
	if err := checkReferences(tx, p); err != nil {
		return nil, err
	}
	if err := tx.Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.NewConflict("project_code", fmt.Sprintf("project code %q already exists", p.ProjectCode))
		}
		return nil, err
	}
	return p, nil
}

func checkReferences(tx *gorm.DB, p *domain.Project) error {
	var errs domain.ValidationErrors
	var b domain.Branch
	err := tx.First(&b, p.BranchID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		errs = append(errs, &domain.ValidationError{Field: "branch_id", Message: "branch does not exist"})
	case err != nil:
		return err
	case !b.IsActive:
		errs = append(errs, &domain.ValidationError{Field: "branch_id", Message: fmt.Sprintf("branch %q is inactive", b.BranchName)})
	}

	var n int64
	if err := tx.Model(&domain.Project{}).Where("project_code = ? AND id <> ?", p.ProjectCode, p.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		errs = append(errs, domain.NewConflict("project_code", fmt.Sprintf("project code %q already exists", p.ProjectCode)))
	}
	return errs.Err()
}

func (s *Service) Update(ctx context.Context, id uint, f domain.ProjectFields) (*domain.Project, error) {
	var updated *domain.Project
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Project
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}
		p.Apply(f)
		if err := p.Validate(); err != nil {
			return err
		}
		if err := checkReferences(tx, &p); err != nil {
			return err
		}
		if err := tx.Omit("Branch").Save(&p).Error; err != nil {
			return err
		}
		updated = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete is unconditional; nothing references projects.
func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&domain.Project{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// ExistingCodes reports which of codes are already stored.
func (s *Service) ExistingCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(codes) == 0 {
		return out, nil
	}
	var found []string
	const chunk = 500
	for start := 0; start < len(codes); start += chunk {
		end := start + chunk
		if end > len(codes) {
			end = len(codes)
		}
		found = found[:0]
		if err := s.DB.WithContext(ctx).Model(&domain.Project{}).
			Where("project_code IN ?", codes[start:end]).Pluck("project_code", &found).Error; err != nil {
			return nil, err
		}
		for _, c := range found {
			out[c] = true
		}
	}
	return out, nil
}

// GrossProfit is the calculator behind GET /projects/gross-profit.
type GrossProfit struct {
	Revenue         float64 `json:"revenue"`
	Expenses        float64 `json:"expenses"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossProfitRate float64 `json:"gross_profit_rate"`
}

func CalculateGrossProfit(revenue, expenses decimal.Decimal) GrossProfit {
	return GrossProfit{
		Revenue:         revenue.InexactFloat64(),
		Expenses:        expenses.InexactFloat64(),
		GrossProfit:     domain.GrossProfit(revenue, expenses).InexactFloat64(),
		GrossProfitRate: domain.GrossProfitRate(revenue, expenses).InexactFloat64(),
	}
}
