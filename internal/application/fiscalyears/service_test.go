package fiscalyears

import (
	"context"
	"testing"

	"profitloss-backend/internal/domain"
	"profitloss-backend/internal/infrastructure/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db}, db
}

func TestCreate_DefaultNameAndConflicts(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	fy, err := s.Create(ctx, Input{Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, "2024年度", fy.YearName)
	assert.True(t, fy.IsActive)

	_, err = s.Create(ctx, Input{Year: 2024, YearName: "FY24"})
	assert.ErrorIs(t, err, domain.ErrDuplicateValue)

	_, err = s.Create(ctx, Input{Year: 2025, YearName: "2024年度"})
	require.Error(t, err)
	fs := domain.Fields(err)
	require.Len(t, fs, 1)
	assert.Equal(t, "year_name", fs[0].Field)

	_, err = s.Create(ctx, Input{Year: 1899})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestListWithCounts(t *testing.T) {
	s, db := setupService(t)
	ctx := context.Background()
	inactive := false
	_, err := s.Create(ctx, Input{Year: 2023, IsActive: &inactive})
	require.NoError(t, err)
	_, err = s.Create(ctx, Input{Year: 2024})
	require.NoError(t, err)

	b := &domain.Branch{BranchCode: "TKY", BranchName: "Tokyo", IsActive: true}
	require.NoError(t, db.Create(b).Error)
	for _, code := range []string{"P1", "P2"} {
		require.NoError(t, db.Create(&domain.Project{ProjectCode: code, ProjectName: code, BranchID: b.ID, FiscalYear: 2024}).Error)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2024, list[0].Year)
	assert.Equal(t, int64(2), list[0].ProjectCount)
	assert.Equal(t, int64(0), list[1].ProjectCount)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 2024, active[0].Year)
}

func TestUpdateToggleDelete(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	fy, err := s.Create(ctx, Input{Year: 2024, YearName: "FY24"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, fy.ID, Input{Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, "2026年度", updated.YearName)

	toggled, err := s.ToggleActive(ctx, fy.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	_, err = s.Update(ctx, 999, Input{Year: 2020})
	assert.ErrorIs(t, err, ErrFiscalYearNotFound)

	require.NoError(t, s.Delete(ctx, fy.ID))
	_, err = s.Get(ctx, fy.ID)
	assert.ErrorIs(t, err, ErrFiscalYearNotFound)
	assert.ErrorIs(t, s.Delete(ctx, fy.ID), ErrFiscalYearNotFound)
}

func TestGetOrCreate(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	fy, created, err := s.GetOrCreate(ctx, 2030)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2030年度", fy.YearName)

	again, created, err := s.GetOrCreate(ctx, 2030)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, fy.ID, again.ID)
}
