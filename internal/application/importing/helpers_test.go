package importing

import (
	"os"
	"path/filepath"
	"testing"

	"profitloss-backend/internal/application/branches"
	"profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/infrastructure/database"
	"profitloss-backend/internal/infrastructure/sessionstore"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const standardHeader = "project_code,project_name,branch_name,fiscal_year,order_probability,revenue,expenses\n"

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	return &Service{
		DB:        db,
		Store:     &sessionstore.Gorm{DB: db},
		Branches:  &branches.Service{DB: db},
		Projects:  &projects.Service{DB: db},
		UploadDir: filepath.Join(t.TempDir(), "uploads"),
	}, db
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeWorkbook saves a workbook whose sheets are filled from rows, in the given order.
// The default "Sheet1" is kept (empty) unless it appears in sheets.
func writeWorkbook(t *testing.T, sheets []string, rows map[string][][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for _, name := range sheets {
		if name != "Sheet1" {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows[name] {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow(name, cell, &r))
		}
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}
