package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"profitloss-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrSessionKeyRequired   = errors.New("session_key is required")
	ErrConfirmationRequired = errors.New("restore must be confirmed")
	ErrBackupNotFound       = errors.New("uploaded backup not found, upload the file again")
	ErrNoBranch             = errors.New("no branch available for restored projects")
)

const fileStampLayout = "20060102_150405"

var sessionKeyPattern = regexp.MustCompile(`^backup_data_[A-Za-z0-9_]+$`)

type Service struct {
	DB        *gorm.DB
	UploadDir string
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create snapshots every project, branch and fiscal year.
func (s *Service) Create(ctx context.Context) (*Document, error) {
	db := s.DB.WithContext(ctx)
	var (
		projects    []domain.Project
		branches    []domain.Branch
		fiscalYears []domain.FiscalYear
	)
	if err := db.Order("id ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("Failed to read projects: %w", err)
	}
	if err := db.Order("id ASC").Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("Failed to read branches: %w", err)
	}
	if err := db.Order("id ASC").Find(&fiscalYears).Error; err != nil {
		return nil, fmt.Errorf("Failed to read fiscal years: %w", err)
	}

	doc := &Document{
		BackupInfo: Info{
			CreatedAt:   s.now().Format(time.RFC3339),
			Version:     FormatVersion,
			Description: Description,
		},
		Data: Data{
			Projects:    make([]ProjectRecord, len(projects)),
			Branches:    make([]BranchRecord, len(branches)),
			FiscalYears: make([]FiscalYearRecord, len(fiscalYears)),
		},
		Statistics: Statistics{
			ProjectsCount:    len(projects),
			BranchesCount:    len(branches),
			FiscalYearsCount: len(fiscalYears),
		},
	}
	for i, p := range projects {
		doc.Data.Projects[i] = ProjectRecord{
			ID:               p.ID,
			ProjectCode:      p.ProjectCode,
			ProjectName:      p.ProjectName,
			BranchID:         p.BranchID,
			FiscalYear:       p.FiscalYear,
			OrderProbability: float64(p.OrderProbability.Value()),
			Revenue:          p.Revenue.InexactFloat64(),
			Expenses:         p.Expenses.InexactFloat64(),
			CreatedAt:        formatTimestamp(p.CreatedAt),
			UpdatedAt:        formatTimestamp(p.UpdatedAt),
		}
	}
	for i, b := range branches {
		doc.Data.Branches[i] = BranchRecord{
			ID:         b.ID,
			BranchCode: b.BranchCode,
			BranchName: b.BranchName,
			IsActive:   b.IsActive,
			CreatedAt:  formatTimestamp(b.CreatedAt),
			UpdatedAt:  formatTimestamp(b.UpdatedAt),
		}
	}
	for i, fy := range fiscalYears {
		doc.Data.FiscalYears[i] = FiscalYearRecord{
			ID:        fy.ID,
			Year:      fy.Year,
			YearName:  fy.YearName,
			IsActive:  fy.IsActive,
			CreatedAt: formatTimestamp(fy.CreatedAt),
			UpdatedAt: formatTimestamp(fy.UpdatedAt),
		}
	}
	return doc, nil
}

// Encode renders doc as indented JSON.
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName is the attachment name for a backup created at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("project_system_backup_%s.json", t.Format(fileStampLayout))
}

// Export creates a backup and returns it encoded with its download name.
func (s *Service) Export(ctx context.Context) (string, []byte, error) {
	doc, err := s.Create(ctx)
	if err != nil {
		return "", nil, err
	}
	data, err := Encode(doc)
	if err != nil {
		return "", nil, err
	}
	log.Info().
		Int("projects", doc.Statistics.ProjectsCount).
		Int("branches", doc.Statistics.BranchesCount).
		Int("fiscal_years", doc.Statistics.FiscalYearsCount).
		Msg("Backup created")
	return FileName(s.now()), data, nil
}

type Summary struct {
	ProjectsCount    int64      `json:"projects_count"`
	BranchesCount    int64      `json:"branches_count"`
	FiscalYearsCount int64      `json:"fiscal_years_count"`
	TotalRecords     int64      `json:"total_records"`
	LatestUpdate     *time.Time `json:"latest_update"`
}

// Info counts the records a backup would contain and finds the most recent update.
func (s *Service) Info(ctx context.Context) (*Summary, error) {
	db := s.DB.WithContext(ctx)
	out := &Summary{}
	for _, t := range []struct {
		model interface{}
		count *int64
	}{
		{&domain.Project{}, &out.ProjectsCount},
		{&domain.Branch{}, &out.BranchesCount},
		{&domain.FiscalYear{}, &out.FiscalYearsCount},
	} {
		if err := db.Model(t.model).Count(t.count).Error; err != nil {
			return nil, fmt.Errorf("Failed to count records: %w", err)
		}
		if *t.count == 0 {
			continue
		}
		var latest struct{ UpdatedAt time.Time }
		if err := db.Model(t.model).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&latest).Error; err != nil {
			return nil, fmt.Errorf("Failed to read latest update: %w", err)
		}
		if !latest.UpdatedAt.IsZero() && (out.LatestUpdate == nil || latest.UpdatedAt.After(*out.LatestUpdate)) {
			u := latest.UpdatedAt
			out.LatestUpdate = &u
		}
	}
	out.TotalRecords = out.ProjectsCount + out.BranchesCount + out.FiscalYearsCount
	return out, nil
}

type Counts struct {
	Projects    int64 `json:"projects"`
	Branches    int64 `json:"branches"`
	FiscalYears int64 `json:"fiscal_years"`
	Total       int64 `json:"total"`
}

type Warning struct {
	DataWillBeReplaced    bool `json:"data_will_be_replaced"`
	CurrentDataWillBeLost bool `json:"current_data_will_be_lost"`
}

// Preview compares the uploaded backup with the data it would replace.
type Preview struct {
	BackupInfo  Info    `json:"backup_info"`
	CurrentData Counts  `json:"current_data"`
	BackupData  Counts  `json:"backup_data"`
	Warning     Warning `json:"warning"`
}

type Upload struct {
	SessionKey string   `json:"session_key"`
	Preview    *Preview `json:"preview"`
}

// Upload validates a backup file, stores it under UploadDir and returns the key that
// Restore accepts.
func (s *Service) Upload(ctx context.Context, fileName string, content io.Reader) (*Upload, error) {
	if !strings.EqualFold(filepath.Ext(fileName), ".json") {
		return nil, ErrNotJSON
	}
	raw, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("Failed to read backup file: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, ErrEncoding
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	preview, err := s.preview(ctx, doc)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("backup_data_%s_%s", s.now().Format(fileStampLayout), uuid.NewString()[:8])
	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("Failed to prepare upload directory: %w", err)
	}
	if err := os.WriteFile(s.path(key), raw, 0o600); err != nil {
		return nil, fmt.Errorf("Failed to store backup file: %w", err)
	}
	log.Info().Str("session_key", key).Int64("records", preview.BackupData.Total).Msg("Backup uploaded")
	return &Upload{SessionKey: key, Preview: preview}, nil
}

func (s *Service) path(key string) string {
	return filepath.Join(s.UploadDir, key+".json")
}

func (s *Service) preview(ctx context.Context, doc *Document) (*Preview, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return nil, err
	}
	backup := Counts{
		Projects:    int64(len(doc.Data.Projects)),
		Branches:    int64(len(doc.Data.Branches)),
		FiscalYears: int64(len(doc.Data.FiscalYears)),
	}
	backup.Total = backup.Projects + backup.Branches + backup.FiscalYears
	return &Preview{
		BackupInfo: doc.BackupInfo,
		CurrentData: Counts{
			Projects:    info.ProjectsCount,
			Branches:    info.BranchesCount,
			FiscalYears: info.FiscalYearsCount,
			Total:       info.TotalRecords,
		},
		BackupData: backup,
		Warning:    Warning{DataWillBeReplaced: true, CurrentDataWillBeLost: true},
	}, nil
}

type RestoreStatistics struct {
	ProjectsCreated    int `json:"projects_created"`
	BranchesCreated    int `json:"branches_created"`
	FiscalYearsCreated int `json:"fiscal_years_created"`
	TotalCreated       int `json:"total_created"`
}

// Restore replaces all data with the uploaded backup identified by key. The stored
// file is removed once the restore has run, whatever the outcome.
func (s *Service) Restore(ctx context.Context, key string, confirm bool) (*RestoreStatistics, error) {
	if key == "" {
		return nil, ErrSessionKeyRequired
	}
	if !confirm {
		return nil, ErrConfirmationRequired
	}
	if !sessionKeyPattern.MatchString(key) {
		return nil, ErrBackupNotFound
	}
	path := s.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBackupNotFound
		}
		return nil, fmt.Errorf("Failed to read backup file: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove uploaded backup")
		}
	}()
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return s.RestoreDocument(ctx, doc)
}

// RestoreDocument deletes every project, branch and fiscal year and recreates them from
// doc in one transaction. Branch ids are reassigned; projects follow their branch
// through the old-to-new id map, or fall back to the first restored branch.
func (s *Service) RestoreDocument(ctx context.Context, doc *Document) (*RestoreStatistics, error) {
	now := s.now()
	stats := &RestoreStatistics{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&domain.Project{}, &domain.Branch{}, &domain.FiscalYear{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("Failed to clear existing data: %w", err)
			}
		}

		for _, r := range doc.Data.FiscalYears {
			fy := &domain.FiscalYear{
				Year:      r.Year,
				YearName:  r.YearName,
				IsActive:  r.IsActive,
				CreatedAt: parseTimestamp(r.CreatedAt, now),
				UpdatedAt: parseTimestamp(r.UpdatedAt, now),
			}
			if err := tx.Create(fy).Error; err != nil {
				return fmt.Errorf("Failed to restore fiscal year %d: %w", r.Year, err)
			}
			stats.FiscalYearsCreated++
		}

		branchIDs := make(map[uint]uint, len(doc.Data.Branches))
		var fallback uint
		for _, r := range doc.Data.Branches {
			b := &domain.Branch{
				BranchCode: r.BranchCode,
				BranchName: r.BranchName,
				IsActive:   r.IsActive,
				CreatedAt:  parseTimestamp(r.CreatedAt, now),
				UpdatedAt:  parseTimestamp(r.UpdatedAt, now),
			}
			if err := tx.Create(b).Error; err != nil {
				return fmt.Errorf("Failed to restore branch %q: %w", r.BranchCode, err)
			}
			if r.ID != 0 {
				branchIDs[r.ID] = b.ID
			}
			if fallback == 0 {
				fallback = b.ID
			}
			stats.BranchesCreated++
		}

		for _, r := range doc.Data.Projects {
			branchID, ok := branchIDs[r.BranchID]
			if !ok {
				if fallback == 0 {
					return fmt.Errorf("%w: project %q", ErrNoBranch, r.ProjectCode)
				}
				branchID = fallback
			}
			prob, err := domain.OrderProbabilityFromValue(int(r.OrderProbability))
			if err != nil {
				return fmt.Errorf("%w: project %q: %v", ErrInvalidBackup, r.ProjectCode, err)
			}
			p := &domain.Project{
				ProjectCode:      r.ProjectCode,
				ProjectName:      r.ProjectName,
				BranchID:         branchID,
				FiscalYear:       r.FiscalYear,
				OrderProbability: prob,
				Revenue:          decimal.NewFromFloat(r.Revenue).Round(2),
				Expenses:         decimal.NewFromFloat(r.Expenses).Round(2),
				CreatedAt:        parseTimestamp(r.CreatedAt, now),
				UpdatedAt:        parseTimestamp(r.UpdatedAt, now),
			}
			if err := tx.Omit("Branch").Create(p).Error; err != nil {
				return fmt.Errorf("Failed to restore project %q: %w", r.ProjectCode, err)
			}
			stats.ProjectsCreated++
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("Restore failed, changes rolled back")
		return nil, err
	}
	stats.TotalCreated = stats.ProjectsCreated + stats.BranchesCreated + stats.FiscalYearsCreated
	log.Info().Int("total_created", stats.TotalCreated).Msg("Restore completed")
	return stats, nil
}
