package domain

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderProbability(t *testing.T) {
	cases := map[string]OrderProbability{
		"〇": OrderProbabilityHigh, "○": OrderProbabilityHigh, "◯": OrderProbabilityHigh,
		"HIGH": OrderProbabilityHigh, "high": OrderProbabilityHigh, "100": OrderProbabilityHigh,
		"△": OrderProbabilityMedium, "MEDIUM": OrderProbabilityMedium, "medium": OrderProbabilityMedium, "50": OrderProbabilityMedium,
		"×": OrderProbabilityLow, "✕": OrderProbabilityLow, "✖": OrderProbabilityLow,
		"LOW": OrderProbabilityLow, "low": OrderProbabilityLow, "0": OrderProbabilityLow,
		" 100.0 ": OrderProbabilityHigh, "１００": OrderProbabilityHigh,
	}
	for in, want := range cases {
		got, ok := ParseOrderProbability(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "75", "maybe", "◎", "-50"} {
		_, ok := ParseOrderProbability(in)
		assert.False(t, ok, in)
	}
}

func TestOrderProbabilityFromValue(t *testing.T) {
	p, err := OrderProbabilityFromValue(50)
	require.NoError(t, err)
	assert.Equal(t, "△", p.Symbol())
	assert.Equal(t, "中", p.Description())
	assert.Equal(t, "△ 50%", p.Label())

	_, err = OrderProbabilityFromValue(25)
	assert.Error(t, err)
}

func TestNewBranch_Rules(t *testing.T) {
	b, err := NewBranch(" TKY ", " 東京支社 ", true)
	require.NoError(t, err)
	assert.Equal(t, "TKY", b.BranchCode)
	assert.Equal(t, "東京支社", b.BranchName)

	_, err = NewBranch("", "", true)
	require.Error(t, err)
	fields := Fields(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "branch_code", fields[0].Field)
	assert.Equal(t, "branch_name", fields[1].Field)

	_, err = NewBranch("T K", "x", true)
	assert.True(t, IsValidation(err))

	_, err = NewBranch("TKY", strings.Repeat("名", 101), true)
	assert.True(t, IsValidation(err))
}

func TestNewFiscalYear_DefaultName(t *testing.T) {
	fy, err := NewFiscalYear(2024, "", true)
	require.NoError(t, err)
	assert.Equal(t, "2024年度", fy.YearName)

	_, err = NewFiscalYear(1899, "", true)
	assert.True(t, IsValidation(err))
}

func TestNewProject_Rules(t *testing.T) {
	p, err := NewProject(ProjectFields{
		ProjectCode:      "PRJ001",
		ProjectName:      "Test",
		BranchID:         1,
		FiscalYear:       2024,
		OrderProbability: OrderProbabilityHigh,
		Revenue:          decimal.RequireFromString("1000.555"),
		Expenses:         decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	assert.Equal(t, "1000.56", p.Revenue.StringFixed(2))

	_, err = NewProject(ProjectFields{
		ProjectCode:      "PRJ 001",
		ProjectName:      "Test",
		FiscalYear:       3000,
		OrderProbability: OrderProbability(30),
		Revenue:          decimal.NewFromInt(-1),
		Expenses:         decimal.NewFromInt(-1),
	})
	require.Error(t, err)
	var names []string
	for _, f := range Fields(err) {
		names = append(names, f.Field)
	}
	assert.Equal(t, []string{"project_code", "branch_id", "fiscal_year", "order_probability", "revenue", "expenses"}, names)
}

func TestGrossProfit_MayBeNegative(t *testing.T) {
	p := &Project{Revenue: decimal.NewFromInt(500000), Expenses: decimal.NewFromInt(800000)}
	assert.True(t, p.GrossProfit().Equal(decimal.NewFromInt(-300000)))
	assert.Equal(t, "-60", p.GrossProfitRate().String())

	zero := &Project{Revenue: decimal.Zero, Expenses: decimal.NewFromInt(10)}
	assert.True(t, zero.GrossProfitRate().IsZero())
}

func TestProjectView(t *testing.T) {
	p := &Project{
		ID:               3,
		ProjectCode:      "A",
		OrderProbability: OrderProbabilityMedium,
		Revenue:          decimal.NewFromInt(1000),
		Expenses:         decimal.NewFromInt(250),
		Branch:           &Branch{BranchCode: "OSA", BranchName: "Osaka"},
	}
	v := p.View()
	assert.Equal(t, 750.0, v.GrossProfit)
	assert.Equal(t, 75.0, v.GrossProfitRate)
	assert.Equal(t, "△", v.OrderProbabilitySymbol)
	assert.Equal(t, "Osaka", v.BranchName)
}
