package canvasgraph

import (
	"strings"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/event"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/template"
)

// normalizeKey normalizes a rename target: runs of whitespace become
// underscores. Returns ok=false when the rename is a no-op (same key,
// or nothing left after normalization).
func normalizeKey(oldKey, newKey string) (string, bool) {
	norm := strings.Join(strings.Fields(newKey), "_")
	if norm == "" || norm == oldKey {
		return "", false
	}
	return norm, true
}

// RenameSchemaKey renames a key in the node's input or output schema
// and propagates the rename to everything referencing it:
//
//   - edges attached to the old handle on the renamed side
//   - {{oldKey}} placeholders in the node's prompt template fields
//     (input keys only; output keys are not referenced by templates)
//
// Renaming a key to itself, or to a key that is empty after whitespace
// normalization, is a no-op: nil error, no snapshot.
func (s *Store) RenameSchemaKey(nodeID, oldKey, newKey string, kind SchemaKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nodeIndex(nodeID)
	if idx < 0 {
		return s.reject("rename_schema_key", ErrNodeNotFound)
	}
	n := &s.nodes[idx]
	if _, ok := n.Data.Config.Schema(kind)[oldKey]; !ok {
		return s.reject("rename_schema_key", ErrUnknownKey)
	}
	newKey, ok := normalizeKey(oldKey, newKey)
	if !ok {
		return nil
	}

	s.pushSnapshot()
	s.renameKeyLocked(n, oldKey, newKey, kind)
	s.applied("rename_schema_key", event.Event{Type: event.NodeUpdated, NodeID: nodeID})
	return nil
}

// DeleteSchemaKey removes a key from the node's input or output schema.
// Deletion is renaming to "no longer present": every edge attached to
// the handle is pruned, and template fields are left alone.
func (s *Store) DeleteSchemaKey(nodeID, key string, kind SchemaKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nodeIndex(nodeID)
	if idx < 0 {
		return s.reject("delete_schema_key", ErrNodeNotFound)
	}
	n := &s.nodes[idx]
	if _, ok := n.Data.Config.Schema(kind)[key]; !ok {
		return s.reject("delete_schema_key", ErrUnknownKey)
	}

	s.pushSnapshot()
	delete(n.Data.Config.Schema(kind), key)
	if kind == SchemaInput {
		s.removeEdges(func(e Edge) bool {
			return e.Target == nodeID && e.TargetHandle == key
		})
	} else {
		s.removeEdges(func(e Edge) bool {
			return e.Source == nodeID && e.SourceHandle == key
		})
	}
	s.applied("delete_schema_key", event.Event{Type: event.NodeUpdated, NodeID: nodeID})
	return nil
}

// renameKeyLocked applies a validated, normalized rename. Caller holds
// the lock and has pushed a snapshot.
func (s *Store) renameKeyLocked(n *Node, oldKey, newKey string, kind SchemaKind) {
	schema := n.Data.Config.Schema(kind)
	schema[newKey] = schema[oldKey]
	delete(schema, oldKey)

	if kind == SchemaInput {
		for i := range s.edges {
			e := &s.edges[i]
			if e.Target == n.ID && e.TargetHandle == oldKey {
				e.TargetHandle = newKey
			}
		}
		for _, field := range n.Data.Config.templateFields() {
			*field = template.Rename(*field, oldKey, newKey)
		}
	} else {
		for i := range s.edges {
			e := &s.edges[i]
			if e.Source == n.ID && e.SourceHandle == oldKey {
				e.SourceHandle = newKey
			}
		}
	}
}
