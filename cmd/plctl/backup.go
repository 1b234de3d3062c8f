package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"profitloss-backend/internal/application/backup"

	"github.com/spf13/cobra"
)

func (c *cli) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore a JSON backup of all data",
	}
	cmd.AddCommand(c.backupExportCmd(), c.backupRestoreCmd())
	return cmd
}

func (c *cli) backupExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every project, branch and fiscal year to a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)
			svc := &backup.Service{DB: db}
			name, data, err := svc.Export(cmd.Context())
			if err != nil {
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: project_system_backup_<timestamp>.json)")
	return cmd
}

func (c *cli) backupRestoreCmd() *cobra.Command {
	var (
		in  string
		yes bool
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace all data with the contents of a JSON backup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in == "" {
				return errors.New("--in is required")
			}
			raw, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("failed to read backup: %w", err)
			}
			doc, err := backup.Parse(raw)
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("restore deletes all current data; re-run with --yes to restore %d projects, %d branches and %d fiscal years",
					len(doc.Data.Projects), len(doc.Data.Branches), len(doc.Data.FiscalYears))
			}
			db, err := c.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)
			start := time.Now()
			stats, err := (&backup.Service{DB: db}).RestoreDocument(cmd.Context(), doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d projects, %d branches, %d fiscal years in %s\n",
				stats.ProjectsCreated, stats.BranchesCreated, stats.FiscalYearsCreated, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "backup file to restore")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm that current data will be replaced")
	return cmd
}
