package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"profitloss-backend/internal/application/importing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseMappings(t *testing.T) {
	m, err := parseMappings([]string{"project_code=案件番号", "revenue=売上=税込"})
	require.NoError(t, err)
	assert.Equal(t, importing.Mapping{
		importing.FieldProjectCode: "案件番号",
		importing.FieldRevenue:     "売上=税込",
	}, m)

	m, err = parseMappings(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	for _, bad := range []string{"project_code", "=col", "revenue="} {
		_, err := parseMappings([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestSeedBackupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbURL := filepath.Join(dir, "pl.db")

	out, err := run(t, "--database-url", dbURL, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 4 branches, 3 fiscal years, 8 projects")

	backupPath := filepath.Join(dir, "backup.json")
	_, err = run(t, "--database-url", dbURL, "backup", "export", "--out", backupPath)
	require.NoError(t, err)
	assert.FileExists(t, backupPath)

	_, err = run(t, "--database-url", dbURL, "backup", "restore", "--in", backupPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err = run(t, "--database-url", dbURL, "backup", "restore", "--in", backupPath, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 8 projects, 4 branches, 3 fiscal years")
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	dbURL := filepath.Join(dir, "pl.db")
	file := filepath.Join(dir, "projects.csv")
	require.NoError(t, os.WriteFile(file, []byte(
		"コード,名称,支社,年度,角度,売上,経費\n"+
			"P1,One,Tokyo,2024,〇,1000,600\n"+
			"P2,Two,Tokyo,2024,?,1000,600\n"), 0o644))

	out, err := run(t, "--database-url", dbURL, "import", file,
		"--map", "project_code=コード",
		"--map", "project_name=名称",
		"--map", "branch_name=支社",
		"--map", "fiscal_year=年度",
		"--map", "order_probability=角度",
		"--map", "revenue=売上",
		"--map", "expenses=経費",
		"--report-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported: 1")
	assert.Contains(t, out, "New branch: Tokyo")

	reports, err := filepath.Glob(filepath.Join(dir, "import_*.csv"))
	require.NoError(t, err)
	require.Len(t, reports, 2)
	var names []string
	for _, r := range reports {
		names = append(names, filepath.Base(r))
	}
	assert.True(t, strings.HasPrefix(strings.Join(names, ","), "import_errors_"))
}

func TestImportCommand_BadMapping(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "--database-url", filepath.Join(dir, "pl.db"), "import", "x.csv", "--map", "broken")
	require.Error(t, err)
}
