package importing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"profitloss-backend/internal/application/branches"
	"profitloss-backend/internal/application/projects"
	"profitloss-backend/internal/domain"
	"profitloss-backend/internal/infrastructure/sessionstore"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	defaultPreviewLimit = 10
	defaultSessionTTL   = time.Hour
)

// Service drives an import through upload, sheet selection, mapping, preview, execution
// and reporting. All state between steps lives in a Session.
type Service struct {
	DB        *gorm.DB
	Store     sessionstore.Store
	Branches  *branches.Service
	Projects  *projects.Service
	UploadDir string
	TTL       time.Duration
	Now       func() time.Time
}

func (s *Service) sessions() *sessions {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return &sessions{store: s.Store, ttl: ttl, now: now}
}

func (s *Service) validator() *Validator {
	return &Validator{Codes: s.Projects}
}

func (s *Service) importer() *Importer {
	return &Importer{DB: s.DB, Branches: s.Branches, Projects: s.Projects}
}

type UploadInput struct {
	FileName  string
	Content   io.Reader
	SheetName string
}

// Upload stores the file, reads it once to check its structure and opens a session with
// an automatic mapping. Nothing is stored if the file cannot be read.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Session, error) {
	ft, err := DetectFileType(in.FileName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	id := uuid.New().String()
	path := filepath.Join(s.UploadDir, id+strings.ToLower(filepath.Ext(in.FileName)))
	if err := writeFile(path, in.Content); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        id,
		FileName:  filepath.Base(in.FileName),
		FilePath:  path,
		FileType:  ft,
		CreatedAt: s.sessions().now(),
	}
	if err := s.inspect(sess, in.SheetName); err != nil {
		_ = os.Remove(path)
		log.Warn().Str("file", sess.FileName).Err(err).Msg("Import upload rejected")
		return nil, err
	}
	if err := s.sessions().save(ctx, sess); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	log.Info().Str("session_id", id).Str("file", sess.FileName).Int("rows", sess.RowCount).Msg("Import file uploaded")
	return sess, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("store upload: %w", err)
	}
	return f.Close()
}

// inspect lists sheets (spreadsheets only), loads the selected table and proposes a mapping.
func (s *Service) inspect(sess *Session, sheet string) error {
	if sess.FileType == FileTypeSpreadsheet {
		sheets, err := ListSheets(sess.FilePath)
		if err != nil {
			return err
		}
		sess.Sheets = sheets
		if sheet == "" {
			for _, info := range sheets {
				if info.HasData {
					sheet = info.Name
					break
				}
			}
			if sheet == "" {
				return ErrEmptyFile
			}
		}
	}
	t, err := ReadFile(sess.FilePath, sess.FileType, sheet)
	if err != nil {
		return err
	}
	sess.SheetName = sheet
	sess.loadTable(t)
	sess.Mapping = AutoMap(t.Columns)
	sess.Result = nil
	return nil
}

// Get returns a live session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.sessions().load(ctx, id)
	if errors.Is(err, ErrSessionExpired) {
		s.discard(ctx, sess)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// SelectSheet switches a spreadsheet session to another worksheet and resets its mapping.
func (s *Service) SelectSheet(ctx context.Context, id, sheet string) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.FileType != FileTypeSpreadsheet {
		return nil, ErrNotSpreadsheet
	}
	if strings.TrimSpace(sheet) == "" {
		return nil, fmt.Errorf("%w: sheet name is required", ErrSheetNotFound)
	}
	if err := s.inspect(sess, sheet); err != nil {
		return nil, err
	}
	if err := s.sessions().save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// MappingProposal is everything a mapping UI needs for one session.
type MappingProposal struct {
	Columns          []string            `json:"columns"`
	SampleRows       []map[string]string `json:"sample_rows"`
	SystemFields     []SystemField       `json:"system_fields"`
	AutoMapping      Mapping             `json:"auto_mapping"`
	Warnings         []string            `json:"warnings"`
	Problems         []MappingProblem    `json:"problems"`
	BranchColumns    BranchColumns       `json:"branch_columns"`
	ExistingBranches []domain.Branch     `json:"existing_branches"`
}

func (s *Service) MappingProposal(ctx context.Context, id string) (*MappingProposal, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.Branches.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	auto := AutoMap(sess.Columns)
	warnings, verr := ValidateMapping(auto, sess.Columns)
	problems := []MappingProblem{}
	var me *MappingError
	if errors.As(verr, &me) {
		problems = me.Problems
	}
	if warnings == nil {
		warnings = []string{}
	}
	return &MappingProposal{
		Columns:          sess.Columns,
		SampleRows:       sess.SampleRows,
		SystemFields:     SystemFields(),
		AutoMapping:      auto,
		Warnings:         warnings,
		Problems:         problems,
		BranchColumns:    SuggestBranchColumns(sess.Columns),
		ExistingBranches: existing,
	}, nil
}

type Preview struct {
	Mapping    Mapping      `json:"mapping"`
	Warnings   []string     `json:"warnings"`
	Summary    Summary      `json:"summary"`
	Duplicates []Duplicate  `json:"duplicates"`
	Rows       []RowOutcome `json:"rows"`
	Errors     []RowOutcome `json:"errors"`
}

// Preview validates every row under the resolved mapping and remembers the mapping for
// Execute. Nothing is written to the projects store.
func (s *Service) Preview(ctx context.Context, id string, explicit Mapping, limit int) (*Preview, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	t, mapping, warnings, err := s.prepare(sess, explicit)
	if err != nil {
		return nil, err
	}
	v, err := s.validator().Validate(ctx, ApplyMapping(t, mapping))
	if err != nil {
		return nil, err
	}
	sess.Mapping = mapping
	if err := s.sessions().save(ctx, sess); err != nil {
		return nil, err
	}

	rows := v.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	invalid := v.Invalid()
	if invalid == nil {
		invalid = []RowOutcome{}
	}
	return &Preview{
		Mapping:    mapping,
		Warnings:   warnings,
		Summary:    v.Summary,
		Duplicates: v.Duplicates,
		Rows:       rows,
		Errors:     invalid,
	}, nil
}

// prepare reads the session's table and resolves and validates the mapping. An explicit
// mapping wins, then the one remembered by Preview, then the automatic one.
func (s *Service) prepare(sess *Session, explicit Mapping) (*Table, Mapping, []string, error) {
	t, err := ReadFile(sess.FilePath, sess.FileType, sess.SheetName)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(explicit) == 0 {
		explicit = sess.Mapping
	}
	mapping := ResolveMapping(explicit, t.Columns)
	warnings, err := ValidateMapping(mapping, t.Columns)
	if err != nil {
		return nil, nil, nil, err
	}
	if warnings == nil {
		warnings = []string{}
	}
	return t, mapping, warnings, nil
}

// Execute validates and imports the session's file. File and mapping problems abort before
// any row is written; row problems are collected in the result.
func (s *Service) Execute(ctx context.Context, id string, explicit Mapping) (*Result, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t, mapping, _, err := s.prepare(sess, explicit)
	if err != nil {
		return nil, err
	}
	res, err := s.run(ctx, t, mapping)
	if err != nil {
		return nil, err
	}
	sess.Mapping = mapping
	sess.Result = res
	if err := s.sessions().save(ctx, sess); err != nil {
		return nil, err
	}
	return res, nil
}

// ImportFile runs the whole pipeline on a local file without a session.
func (s *Service) ImportFile(ctx context.Context, path, sheet string, explicit Mapping) (*Result, error) {
	ft, err := DetectFileType(path)
	if err != nil {
		return nil, err
	}
	t, err := ReadFile(path, ft, sheet)
	if err != nil {
		return nil, err
	}
	mapping := ResolveMapping(explicit, t.Columns)
	if _, err := ValidateMapping(mapping, t.Columns); err != nil {
		return nil, err
	}
	return s.run(ctx, t, mapping)
}

func (s *Service) run(ctx context.Context, t *Table, mapping Mapping) (*Result, error) {
	v, err := s.validator().Validate(ctx, ApplyMapping(t, mapping))
	if err != nil {
		return nil, err
	}
	res := s.importer().Import(ctx, v)
	res.Columns = t.Columns
	return res, nil
}

// Cancel discards the session and its stored file. Rows committed by an earlier Execute
// stay committed.
func (s *Service) Cancel(ctx context.Context, id string) error {
	sess, err := s.sessions().load(ctx, id)
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		return err
	}
	s.discard(ctx, sess)
	return nil
}

func (s *Service) ErrorReport(ctx context.Context, id string) ([]byte, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Result == nil {
		return nil, ErrNoResult
	}
	return ErrorReport(sess.Result)
}

func (s *Service) SuccessReport(ctx context.Context, id string) ([]byte, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Result == nil {
		return nil, ErrNoResult
	}
	return SuccessReport(sess.Result)
}

// Finish ends a session after the user is done with its reports and returns the last result.
func (s *Service) Finish(ctx context.Context, id string) (*Result, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.discard(ctx, sess)
	return sess.Result, nil
}

func (s *Service) discard(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	if sess.FilePath != "" {
		if err := os.Remove(sess.FilePath); err != nil && !os.IsNotExist(err) {
			log.Warn().Str("session_id", sess.ID).Err(err).Msg("Failed to remove import file")
		}
	}
	if err := s.sessions().delete(ctx, sess.ID); err != nil {
		log.Warn().Str("session_id", sess.ID).Err(err).Msg("Failed to delete import session")
	}
}
