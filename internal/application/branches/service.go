package branches

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"profitloss-backend/internal/domain"

	"gorm.io/gorm"
)

var ErrBranchNotFound = errors.New("Branch not found")

type Service struct {
	DB *gorm.DB
}

// Input carries create/update fields. A nil IsActive keeps the current value (true on create).
type Input struct {
	BranchCode string
	BranchName string
	IsActive   *bool
}

type ListFilter struct {
	Search string
	Active *bool
}

// BranchSummary is a branch with the number of projects that reference it.
type BranchSummary struct {
	domain.Branch
	ProjectCount int64 `json:"project_count"`
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]BranchSummary, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Branch{})
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("branch_code LIKE ? OR branch_name LIKE ?", like, like)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	var list []domain.Branch
	if err := q.Order("branch_code ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch branches: %w", err)
	}
	counts, err := s.projectCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BranchSummary, len(list))
	for i, b := range list {
		out[i] = BranchSummary{Branch: b, ProjectCount: counts[b.ID]}
	}
	return out, nil
}

func (s *Service) projectCounts(ctx context.Context) (map[uint]int64, error) {
	var rows []struct {
		BranchID uint
		Total    int64
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Project{}).
		Select("branch_id, COUNT(*) AS total").Group("branch_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("Failed to count projects: %w", err)
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.BranchID] = r.Total
	}
	return out, nil
}

// ListActive returns the branches that can be assigned to projects.
func (s *Service) ListActive(ctx context.Context) ([]domain.Branch, error) {
	var list []domain.Branch
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Order("branch_name ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("Failed to fetch branches: %w", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*BranchSummary, error) {
	b, err := s.find(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Project{}).Where("branch_id = ?", id).Count(&n).Error; err != nil {
		return nil, err
	}
	return &BranchSummary{Branch: *b, ProjectCount: n}, nil
}

func (s *Service) find(tx *gorm.DB, id uint) (*domain.Branch, error) {
	var b domain.Branch
	if err := tx.First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*domain.Branch, error) {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	var created *domain.Branch
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.CreateTx(tx, in.BranchCode, in.BranchName, active)
		created = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateTx runs the validated constructor against tx: field rules, then code and name
// uniqueness, then the insert.
func (s *Service) CreateTx(tx *gorm.DB, code, name string, active bool) (*domain.Branch, error) {
	b, err := domain.NewBranch(code, name, active)
	if err != nil {
		return nil, err
	}
	if err := checkUnique(tx, b); err != nil {
		return nil, err
	}
	if err := tx.Create(b).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.NewConflict("branch_code", "branch code or name already exists")
		}
		return nil, err
	}
	return b, nil
}

func checkUnique(tx *gorm.DB, b *domain.Branch) error {
	var errs domain.ValidationErrors
	var n int64
	if err := tx.Model(&domain.Branch{}).Where("branch_code = ? AND id <> ?", b.BranchCode, b.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		errs = append(errs, domain.NewConflict("branch_code", fmt.Sprintf("branch code %q already exists", b.BranchCode)))
	}
	if err := tx.Model(&domain.Branch{}).Where("branch_name = ? AND id <> ?", b.BranchName, b.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		errs = append(errs, domain.NewConflict("branch_name", fmt.Sprintf("branch name %q already exists", b.BranchName)))
	}
	return errs.Err()
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (*domain.Branch, error) {
	var updated *domain.Branch
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.find(tx, id)
		if err != nil {
			return err
		}
		b.BranchCode = strings.TrimSpace(in.BranchCode)
		b.BranchName = strings.TrimSpace(in.BranchName)
		if in.IsActive != nil {
			b.IsActive = *in.IsActive
		}
		if err := b.Validate(); err != nil {
			return err
		}
		if err := checkUnique(tx, b); err != nil {
			return err
		}
		if err := tx.Save(b).Error; err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a branch that no project references.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.find(tx, id)
		if err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&domain.Project{}).Where("branch_id = ?", b.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrBranchInUse
		}
		return tx.Delete(b).Error
	})
}

func (s *Service) ToggleActive(ctx context.Context, id uint) (*domain.Branch, error) {
	var out *domain.Branch
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.find(tx, id)
		if err != nil {
			return err
		}
		b.IsActive = !b.IsActive
		if err := tx.Model(b).Update("is_active", b.IsActive).Error; err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// FindByName looks a branch up by exact name. Returns ErrBranchNotFound when absent.
func (s *Service) FindByName(tx *gorm.DB, name string) (*domain.Branch, error) {
	var b domain.Branch
	if err := tx.Where("branch_name = ?", name).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}
	return &b, nil
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// GenerateCode derives a branch code from name: ASCII letters and digits only, first three
// upper-cased, right-padded with "0". Collisions get a two-digit counter suffix (01, 02, ...).
func (s *Service) GenerateCode(tx *gorm.DB, name string) (string, error) {
	base := strings.ToUpper(nonAlnum.ReplaceAllString(name, ""))
	if len(base) >= 3 {
		base = base[:3]
	} else {
		base += strings.Repeat("0", 3-len(base))
	}
	code := base
	for counter := 1; ; counter++ {
		var n int64
		if err := tx.Model(&domain.Branch{}).Where("branch_code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
		code = fmt.Sprintf("%s%02d", base, counter)
	}
}
