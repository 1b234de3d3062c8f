package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"profitloss-backend/internal/domain"
	"profitloss-backend/internal/infrastructure/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var stamp = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db, UploadDir: filepath.Join(t.TempDir(), "uploads"), Now: func() time.Time { return stamp }}, db
}

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&domain.FiscalYear{Year: 2024, YearName: "2024年度", IsActive: true}).Error)
	tokyo := &domain.Branch{BranchCode: "TKY", BranchName: "東京支社", IsActive: true}
	require.NoError(t, db.Create(tokyo).Error)
	require.NoError(t, db.Create(&domain.Project{
		ProjectCode: "PRJ001", ProjectName: "本社改修", BranchID: tokyo.ID, FiscalYear: 2024,
		OrderProbability: domain.OrderProbabilityMedium,
		Revenue:          decimal.RequireFromString("1500000.50"), Expenses: decimal.NewFromInt(900000),
	}).Error)
}

func counts(t *testing.T, db *gorm.DB) [3]int64 {
	t.Helper()
	var out [3]int64
	require.NoError(t, db.Model(&domain.Project{}).Count(&out[0]).Error)
	require.NoError(t, db.Model(&domain.Branch{}).Count(&out[1]).Error)
	require.NoError(t, db.Model(&domain.FiscalYear{}).Count(&out[2]).Error)
	return out
}

func TestExport(t *testing.T) {
	s, db := setupService(t)
	seed(t, db)

	name, data, err := s.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "project_system_backup_20250401_120000.json", name)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, FormatVersion, doc.BackupInfo.Version)
	assert.Equal(t, Description, doc.BackupInfo.Description)
	assert.Equal(t, "2025-04-01T12:00:00Z", doc.BackupInfo.CreatedAt)
	assert.Equal(t, Statistics{ProjectsCount: 1, BranchesCount: 1, FiscalYearsCount: 1}, doc.Statistics)

	p := doc.Data.Projects[0]
	assert.Equal(t, "PRJ001", p.ProjectCode)
	assert.Equal(t, float64(50), p.OrderProbability)
	assert.Equal(t, 1500000.5, p.Revenue)
	assert.Equal(t, doc.Data.Branches[0].ID, p.BranchID)
	require.NotNil(t, p.CreatedAt)
	assert.Contains(t, string(data), "東京支社")
}

func TestInfo(t *testing.T) {
	s, db := setupService(t)
	empty, err := s.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.TotalRecords)
	assert.Nil(t, empty.LatestUpdate)

	seed(t, db)
	info, err := s.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.TotalRecords)
	assert.Equal(t, int64(1), info.ProjectsCount)
	require.NotNil(t, info.LatestUpdate)
}

func TestParse(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"no backup_info":  `{"data": {}}`,
		"no data":         `{"backup_info": {}}`,
		"missing table":   `{"backup_info": {}, "data": {"projects": [], "branches": []}}`,
		"table not list":  `{"backup_info": {}, "data": {"projects": {}, "branches": [], "fiscal_years": []}}`,
		"project field":   `{"backup_info": {}, "data": {"projects": [{"project_code": "P"}], "branches": [], "fiscal_years": []}}`,
		"branch field":    `{"backup_info": {}, "data": {"projects": [], "branches": [{"branch_code": "B"}], "fiscal_years": []}}`,
		"null fiscal yrs": `{"backup_info": {}, "data": {"projects": [], "branches": [], "fiscal_years": null}}`,
	}
	for name, raw := range cases {
		_, err := Parse([]byte(raw))
		assert.Error(t, err, name)
	}

	_, err := Parse([]byte(`{`))
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Parse([]byte(`{"data": {}}`))
	assert.ErrorIs(t, err, ErrInvalidBackup)
	assert.Contains(t, err.Error(), "backup_info")

	doc, err := Parse([]byte(`{"backup_info": {"version": "1.0"}, "data": {"projects": [], "branches": [], "fiscal_years": []}}`))
	require.NoError(t, err)
	assert.Equal(t, "1.0", doc.BackupInfo.Version)
}

func TestUploadAndRestore(t *testing.T) {
	source, sourceDB := setupService(t)
	seed(t, sourceDB)
	_, data, err := source.Export(context.Background())
	require.NoError(t, err)

	s, db := setupService(t)
	ctx := context.Background()
	// Existing data that the restore replaces.
	other := &domain.Branch{BranchCode: "OLD", BranchName: "Old", IsActive: true}
	require.NoError(t, db.Create(other).Error)
	require.NoError(t, db.Create(&domain.Branch{BranchCode: "OLD2", BranchName: "Old 2", IsActive: true}).Error)

	up, err := s.Upload(ctx, "backup.JSON", strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.SessionKey, "backup_data_20250401_120000_"))
	assert.Equal(t, Counts{Branches: 2, Total: 2}, up.Preview.CurrentData)
	assert.Equal(t, Counts{Projects: 1, Branches: 1, FiscalYears: 1, Total: 3}, up.Preview.BackupData)
	assert.True(t, up.Preview.Warning.CurrentDataWillBeLost)
	assert.FileExists(t, s.path(up.SessionKey))

	_, err = s.Restore(ctx, "", true)
	assert.ErrorIs(t, err, ErrSessionKeyRequired)
	_, err = s.Restore(ctx, up.SessionKey, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	_, err = s.Restore(ctx, "../etc/passwd", true)
	assert.ErrorIs(t, err, ErrBackupNotFound)

	stats, err := s.Restore(ctx, up.SessionKey, true)
	require.NoError(t, err)
	assert.Equal(t, &RestoreStatistics{ProjectsCreated: 1, BranchesCreated: 1, FiscalYearsCreated: 1, TotalCreated: 3}, stats)
	assert.NoFileExists(t, s.path(up.SessionKey))
	assert.Equal(t, [3]int64{1, 1, 1}, counts(t, db))

	var p domain.Project
	require.NoError(t, db.Preload("Branch").First(&p).Error)
	require.NotNil(t, p.Branch)
	assert.Equal(t, "TKY", p.Branch.BranchCode)
	assert.Equal(t, "1500000.5", p.Revenue.String())
	assert.Equal(t, domain.OrderProbabilityMedium, p.OrderProbability)

	_, err = s.Restore(ctx, up.SessionKey, true)
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

func TestUpload_Rejects(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	_, err := s.Upload(ctx, "backup.csv", strings.NewReader("{}"))
	assert.ErrorIs(t, err, ErrNotJSON)
	_, err = s.Upload(ctx, "backup.json", strings.NewReader("\xff\xfe"))
	assert.ErrorIs(t, err, ErrEncoding)
	_, err = s.Upload(ctx, "backup.json", strings.NewReader(`{"data": {}}`))
	assert.ErrorIs(t, err, ErrInvalidBackup)

	_, err = os.Stat(s.UploadDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreDocument_BranchFallback(t *testing.T) {
	s, db := setupService(t)
	created := "2023-05-01T09:00:00.123456"
	doc := &Document{Data: Data{
		Branches: []BranchRecord{
			{ID: 7, BranchCode: "TKY", BranchName: "Tokyo", IsActive: true},
			{ID: 9, BranchCode: "OSK", BranchName: "Osaka", IsActive: false},
		},
		Projects: []ProjectRecord{
			{ProjectCode: "P1", ProjectName: "one", BranchID: 9, FiscalYear: 2024, OrderProbability: 100, Revenue: 10, Expenses: 4, CreatedAt: &created},
			{ProjectCode: "P2", ProjectName: "two", BranchID: 42, FiscalYear: 2024, OrderProbability: 0, Revenue: 1, Expenses: 1},
		},
	}}
	stats, err := s.RestoreDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.BranchesCreated)
	assert.Equal(t, 2, stats.ProjectsCreated)
	assert.Equal(t, 4, stats.TotalCreated)

	var osaka, tokyo domain.Branch
	require.NoError(t, db.Where("branch_code = ?", "OSK").First(&osaka).Error)
	require.NoError(t, db.Where("branch_code = ?", "TKY").First(&tokyo).Error)
	assert.False(t, osaka.IsActive)

	var p1, p2 domain.Project
	require.NoError(t, db.Where("project_code = ?", "P1").First(&p1).Error)
	require.NoError(t, db.Where("project_code = ?", "P2").First(&p2).Error)
	assert.Equal(t, osaka.ID, p1.BranchID)
	assert.Equal(t, tokyo.ID, p2.BranchID)
	assert.Equal(t, 2023, p1.CreatedAt.Year())
	assert.Equal(t, stamp.Year(), p2.CreatedAt.Year())
}

func TestRestoreDocument_RollsBack(t *testing.T) {
	s, db := setupService(t)
	seed(t, db)

	_, err := s.RestoreDocument(context.Background(), &Document{Data: Data{
		Projects: []ProjectRecord{{ProjectCode: "P1", ProjectName: "orphan", BranchID: 1, FiscalYear: 2024}},
	}})
	assert.ErrorIs(t, err, ErrNoBranch)
	assert.Equal(t, [3]int64{1, 1, 1}, counts(t, db))

	_, err = s.RestoreDocument(context.Background(), &Document{Data: Data{
		Branches: []BranchRecord{{ID: 1, BranchCode: "B", BranchName: "B", IsActive: true}},
		Projects: []ProjectRecord{{ProjectCode: "P1", ProjectName: "bad", BranchID: 1, FiscalYear: 2024, OrderProbability: 30}},
	}})
	assert.ErrorIs(t, err, ErrInvalidBackup)
	assert.Equal(t, [3]int64{1, 1, 1}, counts(t, db))
}
