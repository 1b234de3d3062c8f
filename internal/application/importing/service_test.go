package importing

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"profitloss-backend/internal/infrastructure/sessionstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(t *testing.T, s *Service, name, body string) *Session {
	t.Helper()
	sess, err := s.Upload(context.Background(), UploadInput{FileName: name, Content: strings.NewReader(body)})
	require.NoError(t, err)
	return sess
}

func uploadedFiles(t *testing.T, s *Service) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(s.UploadDir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func TestService_FullFlow(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	sess := upload(t, s, "案件一覧.csv", standardHeader+
		"P1,One,Tokyo,2024,〇,100,10\n"+
		"P1,Dup,Tokyo,2024,〇,100,10\n"+
		"P3,Three,Tokyo,2024,bad,100,10\n"+
		"P4,Four,Osaka,2024,△,100,10\n")
	assert.Equal(t, FileTypeCSV, sess.FileType)
	assert.Equal(t, 4, sess.RowCount)
	assert.Len(t, sess.SampleRows, 4)
	assert.Equal(t, "project_code", sess.Mapping[FieldProjectCode])
	assert.FileExists(t, sess.FilePath)

	proposal, err := s.MappingProposal(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, proposal.Problems)
	assert.Equal(t, []string{warnBranchCodeUnmapped}, proposal.Warnings)
	assert.Equal(t, "branch_name", proposal.BranchColumns.NameColumn)
	assert.Empty(t, proposal.ExistingBranches)

	preview, err := s.Preview(ctx, sess.ID, nil, 2)
	require.NoError(t, err)
	assert.Len(t, preview.Rows, 2)
	assert.Len(t, preview.Errors, 1)
	assert.Equal(t, 4, preview.Summary.TotalRows)
	assert.Equal(t, 1, preview.Summary.DuplicateCount)

	_, err = s.ErrorReport(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNoResult)

	res, err := s.Execute(ctx, sess.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 3, res.ErrorCount)
	assert.Equal(t, StatusPartiallyCommitted, res.Status)
	assert.Equal(t, sess.Columns, res.Columns)

	report, err := s.ErrorReport(ctx, sess.ID)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(report)), "\n")
	// header + two duplicate lines + the invalid probability row
	assert.Len(t, lines, 4)

	ok, err := s.SuccessReport(ctx, sess.ID)
	require.NoError(t, err)
	assert.Contains(t, string(ok), "4,P4,Four")

	finished, err := s.Finish(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, res.SuccessCount, finished.SuccessCount)
	assert.NoFileExists(t, sess.FilePath)

	_, err = s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_PreviewRemembersExplicitMapping(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	sess := upload(t, s, "p.csv", "コード,名称,拠点,期,確度,金額,費用\nP1,One,Tokyo,2024,〇,100,10\n")

	_, err := s.Preview(ctx, sess.ID, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidMapping)

	explicit := Mapping{
		FieldProjectCode:      "コード",
		FieldProjectName:      "名称",
		FieldBranchName:       "拠点",
		FieldFiscalYear:       "期",
		FieldOrderProbability: "確度",
		FieldRevenue:          "金額",
		FieldExpenses:         "費用",
	}
	preview, err := s.Preview(ctx, sess.ID, explicit, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, preview.Summary.ValidRows)

	res, err := s.Execute(ctx, sess.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
}

func TestService_UploadRejectsBadFiles(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	_, err := s.Upload(ctx, UploadInput{FileName: "notes.txt", Content: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	_, err = s.Upload(ctx, UploadInput{FileName: "empty.csv", Content: strings.NewReader("")})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = s.Upload(ctx, UploadInput{FileName: "broken.xlsx", Content: strings.NewReader("not a zip")})
	assert.ErrorIs(t, err, ErrCorruptFile)

	assert.Empty(t, uploadedFiles(t, s))
}

func TestService_CancelRemovesFileAndSession(t *testing.T) {
	s, db := setupService(t)
	ctx := context.Background()
	sess := upload(t, s, "p.csv", standardHeader+"P1,One,Tokyo,2024,〇,100,10\n")

	_, err := s.Execute(ctx, sess.ID, nil)
	require.NoError(t, err)

	require.NoError(t, s.Cancel(ctx, sess.ID))
	assert.NoFileExists(t, sess.FilePath)
	_, err = s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	// Cancelling never undoes committed rows.
	assert.Equal(t, int64(1), countProjects(t, db))

	assert.ErrorIs(t, s.Cancel(ctx, "missing"), ErrSessionNotFound)
}

func TestService_ExpiredSession(t *testing.T) {
	s, _ := setupService(t)
	// The database store keeps its own clock, so the row is still there when the
	// service clock has moved past the session's expiry.
	now := time.Now()
	s.Now = func() time.Time { return now }
	s.TTL = 30 * time.Minute
	ctx := context.Background()

	sess := upload(t, s, "p.csv", standardHeader+"P1,One,Tokyo,2024,〇,100,10\n")
	assert.Equal(t, now.Add(30*time.Minute), sess.ExpiresAt)

	now = now.Add(time.Hour)
	_, err := s.Preview(ctx, sess.ID, nil, 0)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.NoFileExists(t, sess.FilePath)
}

func TestService_SpreadsheetSheets(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	header := []interface{}{"project_code", "project_name", "branch_name", "fiscal_year", "order_probability", "revenue", "expenses"}
	book := writeWorkbook(t, []string{"Sheet1", "FY2024", "FY2025"}, map[string][][]interface{}{
		"FY2024": {header, {"A1", "One", "Tokyo", 2024, "〇", 100, 10}},
		"FY2025": {header, {"B1", "One", "Tokyo", 2025, "△", 100, 10}, {"B2", "Two", "Tokyo", 2025, "×", 100, 10}},
	})
	content, err := os.Open(book)
	require.NoError(t, err)
	defer content.Close()

	sess, err := s.Upload(ctx, UploadInput{FileName: "book.xlsx", Content: content})
	require.NoError(t, err)
	assert.Equal(t, "FY2024", sess.SheetName)
	assert.Len(t, sess.Sheets, 3)
	assert.Equal(t, 1, sess.RowCount)

	switched, err := s.SelectSheet(ctx, sess.ID, "FY2025")
	require.NoError(t, err)
	assert.Equal(t, 2, switched.RowCount)

	_, err = s.SelectSheet(ctx, sess.ID, "Nope")
	assert.ErrorIs(t, err, ErrSheetNotFound)

	res, err := s.Execute(ctx, sess.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, "B1", res.SuccessfulProjects[0].ProjectCode)
}

func TestService_SelectSheetOnCSV(t *testing.T) {
	s, _ := setupService(t)
	sess := upload(t, s, "p.csv", standardHeader+"P1,One,Tokyo,2024,〇,100,10\n")
	_, err := s.SelectSheet(context.Background(), sess.ID, "Sheet1")
	assert.ErrorIs(t, err, ErrNotSpreadsheet)
}

func TestService_RedisSessionStore(t *testing.T) {
	s, _ := setupService(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	s.Store = sessionstore.New(rdb, nil)
	ctx := context.Background()

	sess := upload(t, s, "p.csv", standardHeader+"P1,One,Tokyo,2024,〇,100,10\n")
	assert.True(t, mr.Exists("import:session:"+sess.ID))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Columns, got.Columns)

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
