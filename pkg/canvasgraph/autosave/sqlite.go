package autosave

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
)

// SQLiteStore persists drafts to SQLite. Suitable for single-process
// production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a SQLite draft store. The path should be a
// file path (e.g. "./drafts.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode keeps draft reads cheap while a flush writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS drafts (
			workflow_id TEXT NOT NULL,
			revision INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			doc BLOB NOT NULL,
			PRIMARY KEY (workflow_id, revision)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_drafts_workflow_id
		ON drafts(workflow_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements DraftStore.
func (s *SQLiteStore) Save(workflowID string, doc canvasgraph.Document) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Info{}, ErrStoreClosed
	}

	data, err := canvasgraph.MarshalDocument(doc)
	if err != nil {
		return Info{}, err
	}
	now := time.Now().UTC()

	// Revision assignment and insert are atomic under s.mu; the store
	// is the only writer of its database.
	var maxRevision int
	err = s.db.QueryRow(`
		SELECT COALESCE(MAX(revision), 0) FROM drafts WHERE workflow_id = ?
	`, workflowID).Scan(&maxRevision)
	if err != nil {
		return Info{}, fmt.Errorf("save draft: %w", err)
	}
	revision := maxRevision + 1

	if _, err := s.db.Exec(`
		INSERT INTO drafts (workflow_id, revision, timestamp, doc)
		VALUES (?, ?, ?, ?)
	`, workflowID, revision, now.Format(time.RFC3339Nano), data); err != nil {
		return Info{}, fmt.Errorf("save draft: %w", err)
	}

	return Info{
		WorkflowID: workflowID,
		Revision:   revision,
		Timestamp:  now,
		Size:       int64(len(data)),
	}, nil
}

// Latest implements DraftStore.
func (s *SQLiteStore) Latest(workflowID string) (canvasgraph.Document, Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return canvasgraph.Document{}, Info{}, ErrStoreClosed
	}

	var (
		revision  int
		timestamp string
		data      []byte
	)
	err := s.db.QueryRow(`
		SELECT revision, timestamp, doc FROM drafts
		WHERE workflow_id = ?
		ORDER BY revision DESC LIMIT 1
	`, workflowID).Scan(&revision, &timestamp, &data)
	if err == sql.ErrNoRows {
		return canvasgraph.Document{}, Info{}, ErrNotFound
	}
	if err != nil {
		return canvasgraph.Document{}, Info{}, fmt.Errorf("load draft: %w", err)
	}

	doc, err := canvasgraph.ParseDocument(data)
	if err != nil {
		return canvasgraph.Document{}, Info{}, err
	}
	info := Info{
		WorkflowID: workflowID,
		Revision:   revision,
		Size:       int64(len(data)),
	}
	info.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
	return doc, info, nil
}

// List implements DraftStore.
func (s *SQLiteStore) List(workflowID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT revision, timestamp, LENGTH(doc)
		FROM drafts
		WHERE workflow_id = ?
		ORDER BY revision
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var timestamp string
		if err := rows.Scan(&info.Revision, &timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan draft info: %w", err)
		}
		info.WorkflowID = workflowID
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	return infos, nil
}

// Prune implements DraftStore.
func (s *SQLiteStore) Prune(workflowID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if keep < 0 {
		keep = 0
	}

	_, err := s.db.Exec(`
		DELETE FROM drafts
		WHERE workflow_id = ? AND revision <= (
			SELECT COALESCE(MAX(revision), 0) FROM drafts WHERE workflow_id = ?
		) - ?
	`, workflowID, workflowID, keep)
	if err != nil {
		return fmt.Errorf("prune drafts: %w", err)
	}
	return nil
}

// Delete implements DraftStore.
func (s *SQLiteStore) Delete(workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM drafts WHERE workflow_id = ?`, workflowID); err != nil {
		return fmt.Errorf("delete drafts: %w", err)
	}
	return nil
}

// Close implements DraftStore.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
