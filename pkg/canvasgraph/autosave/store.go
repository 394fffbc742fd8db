// Package autosave persists editor state: a debounced saver flushes
// the graph to the external persistence service after edits go idle,
// and a local draft store keeps revisioned copies for crash recovery.
package autosave

import (
	"context"
	"errors"
	"time"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
)

// Sentinel errors for draft storage.
var (
	// ErrNotFound indicates no draft exists for the workflow.
	ErrNotFound = errors.New("draft not found")

	// ErrStoreClosed indicates the draft store has been closed.
	ErrStoreClosed = errors.New("draft store closed")
)

// Persister is the external workflow persistence service.
type Persister interface {
	// Persist writes the serialized graph for the workflow.
	Persist(ctx context.Context, workflowID string, doc canvasgraph.Document) error
}

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc func(ctx context.Context, workflowID string, doc canvasgraph.Document) error

// Persist implements Persister.
func (f PersisterFunc) Persist(ctx context.Context, workflowID string, doc canvasgraph.Document) error {
	return f(ctx, workflowID, doc)
}

// DraftStore keeps local revisioned drafts of a workflow graph.
// Implementations must be safe for concurrent use.
type DraftStore interface {
	// Save stores a new draft revision for the workflow.
	Save(workflowID string, doc canvasgraph.Document) (Info, error)

	// Latest retrieves the newest draft revision.
	// Returns ErrNotFound when the workflow has no drafts.
	Latest(workflowID string) (canvasgraph.Document, Info, error)

	// List returns draft metadata for a workflow, oldest first.
	// Returns an empty slice (not an error) when none exist.
	List(workflowID string) ([]Info, error)

	// Prune deletes all but the newest keep revisions.
	Prune(workflowID string, keep int) error

	// Delete removes every draft of the workflow.
	Delete(workflowID string) error

	// Close releases resources (connections, files).
	Close() error
}

// Info is draft metadata without the document payload.
type Info struct {
	WorkflowID string
	Revision   int
	Timestamp  time.Time
	Size       int64
}
