package importing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"profitloss-backend/internal/infrastructure/sessionstore"
)

var (
	ErrSessionNotFound = errors.New("Import session not found")
	ErrSessionExpired  = errors.New("Import session has expired")
	ErrNoResult        = errors.New("Import has not been executed for this session")
	ErrNotSpreadsheet  = errors.New("Sheet selection is only available for spreadsheet files")
)

// Session carries one upload through the pipeline: the stored file, the chosen sheet and
// mapping, and the result once executed. It is discarded by Cancel, Finish or expiry.
type Session struct {
	ID         string              `json:"id"`
	FileName   string              `json:"file_name"`
	FilePath   string              `json:"file_path"`
	FileType   FileType            `json:"file_type"`
	SheetName  string              `json:"sheet_name,omitempty"`
	Sheets     []SheetInfo         `json:"sheets,omitempty"`
	Columns    []string            `json:"columns"`
	SampleRows []map[string]string `json:"sample_rows"`
	RowCount   int                 `json:"row_count"`
	Mapping    Mapping             `json:"mapping"`
	Result     *Result             `json:"result,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	ExpiresAt  time.Time           `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s *Session) loadTable(t *Table) {
	s.Columns = t.Columns
	s.SampleRows = t.Samples(sampleRowLimit)
	s.RowCount = t.Len()
}

// sessions wraps a sessionstore.Store with JSON encoding and expiry.
type sessions struct {
	store sessionstore.Store
	ttl   time.Duration
	now   func() time.Time
}

func (ss *sessions) save(ctx context.Context, s *Session) error {
	s.ExpiresAt = ss.now().Add(ss.ttl)
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode import session: %w", err)
	}
	return ss.store.Put(ctx, s.ID, b, ss.ttl)
}

func (ss *sessions) load(ctx context.Context, id string) (*Session, error) {
	b, err := ss.store.Get(ctx, id)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode import session: %w", err)
	}
	if s.Expired(ss.now()) {
		return &s, ErrSessionExpired
	}
	return &s, nil
}

func (ss *sessions) delete(ctx context.Context, id string) error {
	return ss.store.Delete(ctx, id)
}
