package autosave

import (
	"sync"
	"time"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
)

// MemoryStore is an in-memory draft store for testing. Data is lost
// when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string][]storedDraft // workflowID -> revisions, oldest first
	closed bool
}

type storedDraft struct {
	data      []byte
	revision  int
	timestamp time.Time
}

// NewMemoryStore creates an in-memory draft store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string][]storedDraft)}
}

// Save implements DraftStore.
func (m *MemoryStore) Save(workflowID string, doc canvasgraph.Document) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Info{}, ErrStoreClosed
	}

	data, err := canvasgraph.MarshalDocument(doc)
	if err != nil {
		return Info{}, err
	}

	revision := 1
	if existing := m.drafts[workflowID]; len(existing) > 0 {
		revision = existing[len(existing)-1].revision + 1
	}
	draft := storedDraft{
		data:      data,
		revision:  revision,
		timestamp: time.Now().UTC(),
	}
	m.drafts[workflowID] = append(m.drafts[workflowID], draft)

	return Info{
		WorkflowID: workflowID,
		Revision:   revision,
		Timestamp:  draft.timestamp,
		Size:       int64(len(data)),
	}, nil
}

// Latest implements DraftStore.
func (m *MemoryStore) Latest(workflowID string) (canvasgraph.Document, Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return canvasgraph.Document{}, Info{}, ErrStoreClosed
	}

	drafts := m.drafts[workflowID]
	if len(drafts) == 0 {
		return canvasgraph.Document{}, Info{}, ErrNotFound
	}
	latest := drafts[len(drafts)-1]

	doc, err := canvasgraph.ParseDocument(latest.data)
	if err != nil {
		return canvasgraph.Document{}, Info{}, err
	}
	return doc, Info{
		WorkflowID: workflowID,
		Revision:   latest.revision,
		Timestamp:  latest.timestamp,
		Size:       int64(len(latest.data)),
	}, nil
}

// List implements DraftStore.
func (m *MemoryStore) List(workflowID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	drafts := m.drafts[workflowID]
	infos := make([]Info, 0, len(drafts))
	for _, d := range drafts {
		infos = append(infos, Info{
			WorkflowID: workflowID,
			Revision:   d.revision,
			Timestamp:  d.timestamp,
			Size:       int64(len(d.data)),
		})
	}
	return infos, nil
}

// Prune implements DraftStore.
func (m *MemoryStore) Prune(workflowID string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if keep < 0 {
		keep = 0
	}

	drafts := m.drafts[workflowID]
	if len(drafts) > keep {
		m.drafts[workflowID] = append([]storedDraft(nil), drafts[len(drafts)-keep:]...)
	}
	return nil
}

// Delete implements DraftStore.
func (m *MemoryStore) Delete(workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.drafts, workflowID)
	return nil
}

// Close implements DraftStore.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.drafts = nil
	return nil
}

// Len returns the total number of drafts across all workflows.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, drafts := range m.drafts {
		count += len(drafts)
	}
	return count
}
