package main

import (
	"fmt"

	"profitloss-backend/internal/application/branches"
	"profitloss-backend/internal/application/fiscalyears"
	"profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/application/seed"

	"github.com/spf13/cobra"
)

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo branches, fiscal years and projects",
		Long:  "Load demo branches, fiscal years and projects. Records that already exist are left alone.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)
			s := &seed.Seeder{
				Branches:    &branches.Service{DB: db},
				FiscalYears: &fiscalyears.Service{DB: db},
				Projects:    &projects.Service{DB: db},
			}
			res, err := s.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d branches, %d fiscal years, %d projects\n",
				res.BranchesCreated, res.FiscalYearsCreated, res.ProjectsCreated)
			return nil
		},
	}
}
