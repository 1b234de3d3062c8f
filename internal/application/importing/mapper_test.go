package importing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMap_JapaneseHeaders(t *testing.T) {
	cols := []string{"プロジェクトコード", "プロジェクト名", "支社名", "支社コード", "売上の年度", "受注角度", "売上（契約金）", "経費（トータル）"}
	m := AutoMap(cols)
	assert.Equal(t, Mapping{
		FieldProjectCode:      "プロジェクトコード",
		FieldProjectName:      "プロジェクト名",
		FieldBranchName:       "支社名",
		FieldBranchCode:       "支社コード",
		FieldFiscalYear:       "売上の年度",
		FieldOrderProbability: "受注角度",
		FieldRevenue:          "売上（契約金）",
		FieldExpenses:         "経費（トータル）",
	}, m)
}

func TestAutoMap_EnglishAndFullWidth(t *testing.T) {
	cols := []string{"ＰＲＯＪＥＣＴ　ＣＯＤＥ", "Project Name", "branch_name", "Fiscal Year", "order_probability", "Revenue", "Expenses"}
	m := AutoMap(cols)
	assert.Equal(t, "ＰＲＯＪＥＣＴ　ＣＯＤＥ", m[FieldProjectCode])
	assert.Equal(t, "Project Name", m[FieldProjectName])
	assert.Equal(t, "Fiscal Year", m[FieldFiscalYear])
	assert.Equal(t, "Expenses", m[FieldExpenses])
	_, hasCode := m[FieldBranchCode]
	assert.False(t, hasCode)
}

func TestAutoMap_SubstringAndFirstWins(t *testing.T) {
	cols := []string{"案件コード(社内)", "売上", "売上金額", "備考"}
	m := AutoMap(cols)
	assert.Equal(t, "案件コード(社内)", m[FieldProjectCode])
	assert.Equal(t, "売上", m[FieldRevenue])
	for f, col := range m {
		assert.NotEqual(t, "備考", col, "field %s", f)
	}
	// 売上金額 cannot take revenue a second time.
	assert.Len(t, m, 2)
}

func TestAutoMap_YearPrefixedRevenueHeader(t *testing.T) {
	m := AutoMap([]string{"年度売上", "年度"})
	assert.Equal(t, "年度売上", m[FieldRevenue])
	assert.Equal(t, "年度", m[FieldFiscalYear])

	m = AutoMap([]string{"年度売上"})
	assert.Equal(t, "年度売上", m[FieldRevenue])
	_, ok := m[FieldFiscalYear]
	assert.False(t, ok)
}

func TestAutoMap_Deterministic(t *testing.T) {
	cols := []string{"年度", "支社", "売上", "経費", "案件名", "案件コード", "受注確度"}
	first := AutoMap(cols)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AutoMap(cols))
	}
}

func TestResolveMapping(t *testing.T) {
	cols := []string{"project_code", "name_col"}
	auto := ResolveMapping(nil, cols)
	assert.Equal(t, "project_code", auto[FieldProjectCode])

	explicit := ResolveMapping(Mapping{FieldProjectName: "name_col", FieldBranchCode: " "}, cols)
	assert.Equal(t, Mapping{FieldProjectName: "name_col"}, explicit)
}

func TestValidateMapping_CollectsAllProblems(t *testing.T) {
	cols := []string{"code", "name", "branch"}
	mapping := Mapping{
		FieldProjectCode: "code",
		FieldProjectName: "code",
		FieldBranchName:  "branch",
		FieldRevenue:     "amount",
	}
	warnings, err := ValidateMapping(mapping, cols)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMapping))
	assert.Equal(t, []string{warnBranchCodeUnmapped}, warnings)

	var me *MappingError
	require.True(t, errors.As(err, &me))
	kinds := map[MappingProblemKind][]Field{}
	for _, p := range me.Problems {
		kinds[p.Kind] = append(kinds[p.Kind], p.Field)
	}
	assert.Equal(t, []Field{FieldFiscalYear, FieldOrderProbability, FieldExpenses}, kinds[MissingRequiredField])
	assert.Equal(t, []Field{FieldProjectName}, kinds[DuplicateColumnUsage])
	assert.Equal(t, []Field{FieldRevenue}, kinds[UnknownColumn])
	assert.Len(t, me.Messages(), len(me.Problems))
}

func TestValidateMapping_OK(t *testing.T) {
	cols := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	mapping := Mapping{
		FieldProjectCode:      "a",
		FieldProjectName:      "b",
		FieldBranchName:       "c",
		FieldBranchCode:       "h",
		FieldFiscalYear:       "d",
		FieldOrderProbability: "e",
		FieldRevenue:          "f",
		FieldExpenses:         "g",
	}
	warnings, err := ValidateMapping(mapping, cols)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	mapping["bogus"] = "a"
	_, err = ValidateMapping(mapping, cols)
	var me *MappingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, UnknownField, me.Problems[0].Kind)
}

func TestSuggestBranchColumns(t *testing.T) {
	got := SuggestBranchColumns([]string{"案件名", "支社名", "支社コード", "Amount"})
	assert.Equal(t, BranchColumns{NameColumn: "支社名", CodeColumn: "支社コード"}, got)

	got = SuggestBranchColumns([]string{"Office Name", "Branch CD"})
	assert.Equal(t, BranchColumns{NameColumn: "Office Name", CodeColumn: "Branch CD"}, got)

	assert.Equal(t, BranchColumns{}, SuggestBranchColumns([]string{"code", "name"}))
}

func TestRequiredFields(t *testing.T) {
	req := RequiredFields()
	assert.Len(t, req, 7)
	assert.NotContains(t, req, FieldBranchCode)
	assert.Len(t, SystemFields(), 8)
}

func TestApplyMapping(t *testing.T) {
	tbl := &Table{
		Columns: []string{"code", "name", "unused"},
		Rows: [][]string{
			{" P1 ", "Alpha", "x"},
			{"P2", "  ", "y"},
		},
	}
	recs := ApplyMapping(tbl, Mapping{FieldProjectCode: "code", FieldProjectName: "name", FieldRevenue: "missing"})
	require.Len(t, recs, 2)

	assert.Equal(t, 1, recs[0].Row)
	assert.Equal(t, "P1", recs[0].ProjectCode)
	assert.Equal(t, "Alpha", recs[0].Value(FieldProjectName))
	assert.Equal(t, "", recs[0].Revenue)
	assert.Equal(t, " P1 ", recs[0].Raw["code"])

	assert.Equal(t, 2, recs[1].Row)
	assert.Equal(t, "", recs[1].ProjectName)
}
