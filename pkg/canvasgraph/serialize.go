package canvasgraph

import (
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/event"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/observability"
)

// Document is the persisted form of a graph, as accepted by the
// workflow persistence service. Run outputs and statuses are session
// state and are not part of the document.
//
// Serialization round-trips: serialize -> deserialize -> serialize
// yields an identical structure modulo JSON key ordering.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	// TestInputs holds the workflow input variable values used when
	// test-running the workflow.
	TestInputs map[string]any `json:"test_inputs,omitempty"`
}

// MarshalDocument encodes a document as JSON.
func MarshalDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

// ParseDocument decodes a document from JSON.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Serialize captures the current graph as a persistable document.
// Run outputs and statuses are stripped.
func (s *Store) Serialize() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := Document{
		Nodes:      make([]Node, len(s.nodes)),
		Edges:      make([]Edge, len(s.edges)),
		TestInputs: cloneAnyMap(s.inputVars),
	}
	for i, n := range s.nodes {
		c := n.Clone()
		c.Data.Run = nil
		c.Data.Status = ""
		doc.Nodes[i] = c
	}
	for i, e := range s.edges {
		doc.Edges[i] = e.Clone()
	}
	return doc
}

// LoadDocument replaces the live graph with the document's contents and
// resets history and selection.
//
// Duplicate ids reject the load. Edges that violate handle
// correspondence (stale data from an external writer) are dropped
// defensively and logged rather than surfaced as an error.
func (s *Store) LoadDocument(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if _, dup := seen[n.ID]; dup {
			return s.reject("load_document", fmt.Errorf("%w: node %s", ErrDuplicateID, n.ID))
		}
		seen[n.ID] = struct{}{}
	}
	seenEdges := make(map[string]struct{}, len(doc.Edges))
	for _, e := range doc.Edges {
		if _, dup := seenEdges[e.ID]; dup {
			return s.reject("load_document", fmt.Errorf("%w: edge %s", ErrDuplicateID, e.ID))
		}
		seenEdges[e.ID] = struct{}{}
	}

	s.nodes = make([]Node, len(doc.Nodes))
	for i, n := range doc.Nodes {
		s.nodes[i] = n.Clone()
	}
	s.edges = nil
	for _, e := range doc.Edges {
		if reason := s.edgeViolation(e); reason != "" {
			observability.LogEdgePruned(s.logger, e.ID, reason)
			continue
		}
		s.edges = append(s.edges, e.Clone())
	}

	if s.inputVars = cloneAnyMap(doc.TestInputs); s.inputVars == nil {
		s.inputVars = make(map[string]any)
	}
	s.selectedNodeID = ""
	s.hist = history{limit: s.hist.limit}
	s.applied("load_document", event.Event{Type: event.GraphReplaced})
	return nil
}
