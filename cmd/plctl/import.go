package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"profitloss-backend/internal/application/branches"
	"profitloss-backend/internal/application/importing"
	"profitloss-backend/internal/application/projects"

	"github.com/spf13/cobra"
)

const maxPrintedErrors = 20

// parseMappings turns repeated field=column flags into a mapping. Column names may
// contain '='; only the first one separates.
func parseMappings(pairs []string) (importing.Mapping, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(importing.Mapping, len(pairs))
	for _, p := range pairs {
		field, column, ok := strings.Cut(p, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" || strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("invalid --map %q, want field=column", p)
		}
		m[importing.Field(field)] = column
	}
	return m, nil
}

func (c *cli) importCmd() *cobra.Command {
	var (
		sheet     string
		maps      []string
		reportDir string
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import projects from a CSV or Excel file",
		Long: `Import projects from a CSV or Excel file. Columns are mapped automatically from
their headers unless --map is given, e.g. --map project_code=案件番号 --map revenue=売上.
Each valid row is committed on its own; rejected rows are written to an error report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := parseMappings(maps)
			if err != nil {
				return err
			}
			db, err := c.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			projectSvc := &projects.Service{DB: db}
			svc := &importing.Service{
				DB:       db,
				Branches: &branches.Service{DB: db},
				Projects: projectSvc,
			}
			res, err := svc.ImportFile(cmd.Context(), args[0], sheet, mapping)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return writeReports(cmd.OutOrStdout(), res, reportDir, time.Now())
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet to read (default: first sheet)")
	cmd.Flags().StringArrayVar(&maps, "map", nil, "field=column mapping, repeatable")
	cmd.Flags().StringVar(&reportDir, "report-dir", ".", "directory for the error and success reports")
	return cmd
}

func printResult(w io.Writer, res *importing.Result) {
	fmt.Fprintf(w, "Status:   %s\n", res.Status)
	fmt.Fprintf(w, "Rows:     %d\n", res.TotalRows)
	fmt.Fprintf(w, "Imported: %d (%.1f%%)\n", res.SuccessCount, res.SuccessRate)
	fmt.Fprintf(w, "Errors:   %d\n", res.ErrorCount)
	if res.SkippedCount > 0 {
		fmt.Fprintf(w, "Skipped:  %d\n", res.SkippedCount)
	}
	for _, b := range res.CreatedBranches {
		fmt.Fprintf(w, "New branch: %s (%s)\n", b.BranchName, b.BranchCode)
	}
	for i, e := range res.Errors {
		if i == maxPrintedErrors {
			fmt.Fprintf(w, "... and %d more errors\n", len(res.Errors)-maxPrintedErrors)
			break
		}
		fmt.Fprintf(w, "  row %d [%s] %s\n", e.Row, e.Category, e.Message)
	}
}

func writeReports(w io.Writer, res *importing.Result, dir string, now time.Time) error {
	stamp := now.Format("20060102_150405")
	if len(res.Errors) > 0 || len(res.Duplicates) > 0 {
		data, err := importing.ErrorReport(res)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("import_errors_%s.csv", stamp))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write error report: %w", err)
		}
		fmt.Fprintf(w, "Error report: %s\n", path)
	}
	if res.SuccessCount > 0 {
		data, err := importing.SuccessReport(res)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("import_success_%s.csv", stamp))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write success report: %w", err)
		}
		fmt.Fprintf(w, "Success report: %s\n", path)
	}
	return nil
}
