package export

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	exportsvc "profitloss-backend/internal/application/export"
	"profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/domain"
	"profitloss-backend/internal/infrastructure/database"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(t *testing.T) *fiber.App {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, db.Create(&domain.Branch{BranchCode: "TKY", BranchName: "Tokyo", IsActive: true}).Error)
	require.NoError(t, db.Create(&domain.Project{
		ProjectCode: "PRJ001", ProjectName: "Alpha", BranchID: 1, FiscalYear: 2025,
		OrderProbability: domain.OrderProbabilityHigh,
		Revenue:          decimal.NewFromInt(1000), Expenses: decimal.NewFromInt(400),
	}).Error)

	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	svc := &exportsvc.Service{Projects: &projects.Service{DB: db}, Now: func() time.Time { return now }}
	app := fiber.New()
	(&Handlers{Service: svc}).Register(app.Group("/api/v1/export"))
	return app
}

func TestExportCSV(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/export/csv?fiscal_year=2025", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, exportsvc.ContentTypeCSV, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "projects_export_20250301_093000.csv")
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "PRJ001,Alpha,Tokyo,TKY,2025")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/export/csv?branch_id=x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestExportExcel(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/export/excel", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, exportsvc.ContentTypeExcel, resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "PK", string(body[:2]))
}

func TestExportDownloadLink(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/export/csv/download-link?order_probability_min=100", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "/api/v1/export/csv?order_probability_min=100", data["download_url"])
	assert.Equal(t, float64(1), data["record_count"])
}
