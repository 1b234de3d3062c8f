// Package seed loads the demo branches, fiscal years and projects. Running it twice
// creates nothing new.
package seed

import (
	"context"
	"fmt"

	"profitloss-backend/internal/application/branches"
	"profitloss-backend/internal/application/fiscalyears"
	"profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type branchSeed struct {
	Code, Name string
}

type fiscalYearSeed struct {
	Year   int
	Active bool
}

type projectSeed struct {
	Code, Name  string
	BranchCode  string
	FiscalYear  int
	Probability domain.OrderProbability
	Revenue     int64
	Expenses    int64
}

var demoBranches = []branchSeed{
	{"TKY", "東京本社"},
	{"OSK", "大阪支社"},
	{"NGY", "名古屋支社"},
	{"FKO", "福岡支社"},
}

var demoFiscalYears = []fiscalYearSeed{
	{2023, false},
	{2024, true},
	{2025, false},
}

var demoProjects = []projectSeed{
	{"DEMO001", "Webシステム開発プロジェクト（デモ）", "TKY", 2024, domain.OrderProbabilityHigh, 5000000, 3500000},
	{"DEMO002", "モバイルアプリ開発（デモ）", "OSK", 2024, domain.OrderProbabilityMedium, 3000000, 2200000},
	{"DEMO003", "データ分析システム（デモ）", "TKY", 2024, domain.OrderProbabilityHigh, 8000000, 5500000},
	{"DEMO004", "クラウド移行プロジェクト（デモ）", "NGY", 2024, domain.OrderProbabilityLow, 12000000, 8000000},
	{"DEMO005", "セキュリティ強化プロジェクト（デモ）", "FKO", 2024, domain.OrderProbabilityMedium, 4500000, 3200000},
	{"DEMO006", "AI導入支援プロジェクト（デモ）", "TKY", 2025, domain.OrderProbabilityHigh, 15000000, 10000000},
	{"DEMO007", "レガシーシステム刷新（デモ）", "OSK", 2023, domain.OrderProbabilityHigh, 20000000, 14000000},
	{"DEMO008", "IoTプラットフォーム構築（デモ）", "NGY", 2024, domain.OrderProbabilityMedium, 7500000, 5200000},
}

type Seeder struct {
	Branches    *branches.Service
	FiscalYears *fiscalyears.Service
	Projects    *projects.Service
}

type Result struct {
	BranchesCreated    int
	FiscalYearsCreated int
	ProjectsCreated    int
}

func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	existing, err := s.Branches.List(ctx, branches.ListFilter{})
	if err != nil {
		return nil, err
	}
	branchIDs := make(map[string]uint, len(existing))
	for _, b := range existing {
		branchIDs[b.BranchCode] = b.ID
	}
	for _, b := range demoBranches {
		if _, ok := branchIDs[b.Code]; ok {
			continue
		}
		created, err := s.Branches.Create(ctx, branches.Input{BranchCode: b.Code, BranchName: b.Name})
		if err != nil {
			return nil, fmt.Errorf("Failed to seed branch %s: %w", b.Code, err)
		}
		branchIDs[b.Code] = created.ID
		res.BranchesCreated++
	}

	years, err := s.FiscalYears.List(ctx)
	if err != nil {
		return nil, err
	}
	haveYear := make(map[int]bool, len(years))
	for _, fy := range years {
		haveYear[fy.Year] = true
	}
	for _, fy := range demoFiscalYears {
		if haveYear[fy.Year] {
			continue
		}
		active := fy.Active
		if _, err := s.FiscalYears.Create(ctx, fiscalyears.Input{Year: fy.Year, IsActive: &active}); err != nil {
			return nil, fmt.Errorf("Failed to seed fiscal year %d: %w", fy.Year, err)
		}
		res.FiscalYearsCreated++
	}

	codes := make([]string, len(demoProjects))
	for i, p := range demoProjects {
		codes[i] = p.Code
	}
	stored, err := s.Projects.ExistingCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	for _, p := range demoProjects {
		if stored[p.Code] {
			continue
		}
		_, err := s.Projects.Create(ctx, domain.ProjectFields{
			ProjectCode:      p.Code,
			ProjectName:      p.Name,
			BranchID:         branchIDs[p.BranchCode],
			FiscalYear:       p.FiscalYear,
			OrderProbability: p.Probability,
			Revenue:          decimal.NewFromInt(p.Revenue),
			Expenses:         decimal.NewFromInt(p.Expenses),
		})
		if err != nil {
			return nil, fmt.Errorf("Failed to seed project %s: %w", p.Code, err)
		}
		res.ProjectsCreated++
	}

	log.Info().
		Int("branches", res.BranchesCreated).
		Int("fiscal_years", res.FiscalYearsCreated).
		Int("projects", res.ProjectsCreated).
		Msg("Sample data seeded")
	return res, nil
}
