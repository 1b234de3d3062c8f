package seed

import (
	"context"
	"testing"

	"profitloss-backend/internal/application/branches"
	"profitloss-backend/internal/application/fiscalyears"
	"profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/domain"
	"profitloss-backend/internal/infrastructure/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_Idempotent(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	s := &Seeder{
		Branches:    &branches.Service{DB: db},
		FiscalYears: &fiscalyears.Service{DB: db},
		Projects:    &projects.Service{DB: db},
	}
	ctx := context.Background()

	res, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Result{BranchesCreated: 4, FiscalYearsCreated: 3, ProjectsCreated: 8}, res)

	var fy domain.FiscalYear
	require.NoError(t, db.Where("year = ?", 2024).First(&fy).Error)
	assert.True(t, fy.IsActive)
	assert.Equal(t, "2024年度", fy.YearName)

	p, err := s.Projects.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "NGY", p.Branch.BranchCode)

	res, err = s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
}
