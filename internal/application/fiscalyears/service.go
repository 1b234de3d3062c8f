package fiscalyears

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"profitloss-backend/internal/domain"

	"gorm.io/gorm"
)

var ErrFiscalYearNotFound = errors.New("Fiscal year not found")

type Service struct {
	DB *gorm.DB
}

type Input struct {
	Year     int
	YearName string
	IsActive *bool
}

// FiscalYearSummary adds the number of projects booked in the year.
type FiscalYearSummary struct {
	domain.FiscalYear
	ProjectCount int64 `json:"project_count"`
}

func (s *Service) List(ctx context.Context) ([]FiscalYearSummary, error) {
	var list []domain.FiscalYear
	if err := s.DB.WithContext(ctx).Order("year DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch fiscal years: %w", err)
	}
	var rows []struct {
		FiscalYear int
		Total      int64
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Project{}).
		Select("fiscal_year, COUNT(*) AS total").Group("fiscal_year").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("Failed to count projects: %w", err)
	}
	counts := make(map[int]int64, len(rows))
	for _, r := range rows {
		counts[r.FiscalYear] = r.Total
	}
	out := make([]FiscalYearSummary, len(list))
	for i, fy := range list {
		out[i] = FiscalYearSummary{FiscalYear: fy, ProjectCount: counts[fy.Year]}
	}
	return out, nil
}

func (s *Service) ListActive(ctx context.Context) ([]domain.FiscalYear, error) {
	var list []domain.FiscalYear
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Order("year DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch fiscal years: %w", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*domain.FiscalYear, error) {
	return find(s.DB.WithContext(ctx), id)
}

func find(tx *gorm.DB, id uint) (*domain.FiscalYear, error) {
	var fy domain.FiscalYear
	if err := tx.First(&fy, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFiscalYearNotFound
		}
		return nil, err
	}
	return &fy, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*domain.FiscalYear, error) {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	fy, err := domain.NewFiscalYear(in.Year, in.YearName, active)
	if err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, fy); err != nil {
			return err
		}
		return tx.Create(fy).Error
	})
	if err != nil {
		return nil, err
	}
	return fy, nil
}

func checkUnique(tx *gorm.DB, fy *domain.FiscalYear) error {
	var errs domain.ValidationErrors
	var n int64
	if err := tx.Model(&domain.FiscalYear{}).Where("year = ? AND id <> ?", fy.Year, fy.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		errs = append(errs, domain.NewConflict("year", fmt.Sprintf("fiscal year %d already exists", fy.Year)))
	}
	if err := tx.Model(&domain.FiscalYear{}).Where("year_name = ? AND id <> ?", fy.YearName, fy.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		errs = append(errs, domain.NewConflict("year_name", fmt.Sprintf("year name %q already exists", fy.YearName)))
	}
	return errs.Err()
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (*domain.FiscalYear, error) {
	var out *domain.FiscalYear
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fy, err := find(tx, id)
		if err != nil {
			return err
		}
		fy.Year = in.Year
		fy.YearName = strings.TrimSpace(in.YearName)
		if fy.YearName == "" {
			fy.YearName = domain.DefaultYearName(in.Year)
		}
		if in.IsActive != nil {
			fy.IsActive = *in.IsActive
		}
		if err := fy.Validate(); err != nil {
			return err
		}
		if err := checkUnique(tx, fy); err != nil {
			return err
		}
		if err := tx.Save(fy).Error; err != nil {
			return err
		}
		out = fy
		return nil
	})
	return out, err
}

// Delete removes the master record only; projects keep their numeric year.
func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&domain.FiscalYear{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFiscalYearNotFound
	}
	return nil
}

func (s *Service) ToggleActive(ctx context.Context, id uint) (*domain.FiscalYear, error) {
	var out *domain.FiscalYear
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fy, err := find(tx, id)
		if err != nil {
			return err
		}
		fy.IsActive = !fy.IsActive
		if err := tx.Model(fy).Update("is_active", fy.IsActive).Error; err != nil {
			return err
		}
		out = fy
		return nil
	})
	return out, err
}

// GetOrCreate returns the fiscal year for year, creating an active one with the default
// name when missing.
func (s *Service) GetOrCreate(ctx context.Context, year int) (*domain.FiscalYear, bool, error) {
	var fy domain.FiscalYear
	err := s.DB.WithContext(ctx).Where("year = ?", year).First(&fy).Error
	if err == nil {
		return &fy, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	created, err := s.Create(ctx, Input{Year: year})
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}
