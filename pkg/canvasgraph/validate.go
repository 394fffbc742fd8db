package canvasgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/event"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/observability"
)

// Sentinel errors for consistency validation.
var (
	// ErrDanglingEdge indicates an edge referencing a missing node or
	// a handle absent from its node's schema.
	ErrDanglingEdge = errors.New("dangling edge")

	// ErrBadParent indicates a parentId referencing a missing node or
	// a non-group node.
	ErrBadParent = errors.New("invalid parent reference")

	// ErrParentCycle indicates a group nested into its own descendants.
	ErrParentCycle = errors.New("group parent cycle")
)

// Validate checks every invariant the engine maintains and returns all
// violations joined together, or nil.
//
// In steady state this never fails: the store's own pruning rules make
// violations unreachable. It exists for data arriving from outside the
// engine (persisted documents, concurrent external updates).
func (s *Store) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error

	seen := make(map[string]struct{}, len(s.nodes))
	for _, n := range s.nodes {
		if _, dup := seen[n.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: node %s", ErrDuplicateID, n.ID))
		}
		seen[n.ID] = struct{}{}
	}

	for _, n := range s.nodes {
		if n.ParentID == "" {
			continue
		}
		pi := s.nodeIndex(n.ParentID)
		if pi < 0 || s.nodes[pi].Type != GroupNodeType {
			errs = append(errs, fmt.Errorf("%w: node %s -> %s", ErrBadParent, n.ID, n.ParentID))
			continue
		}
		if s.hasParentCycle(n.ID) {
			errs = append(errs, fmt.Errorf("%w: node %s", ErrParentCycle, n.ID))
		}
	}

	seenEdges := make(map[string]struct{}, len(s.edges))
	for _, e := range s.edges {
		if _, dup := seenEdges[e.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: edge %s", ErrDuplicateID, e.ID))
		}
		seenEdges[e.ID] = struct{}{}

		if reason := s.edgeViolation(e); reason != "" {
			errs = append(errs, fmt.Errorf("%w: %s (%s)", ErrDanglingEdge, e.ID, reason))
		}
	}

	return errors.Join(errs...)
}

// Repair defensively drops every inconsistent edge and clears orphaned
// parent references. Each removal is logged; the repair is a single
// undoable edit when anything changed. Returns the number of edges
// pruned.
func (s *Store) Repair() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doomed []Edge
	for _, e := range s.edges {
		if reason := s.edgeViolation(e); reason != "" {
			doomed = append(doomed, e)
			observability.LogEdgePruned(s.logger, e.ID, reason)
		}
	}
	var orphans []int
	for i, n := range s.nodes {
		if n.ParentID == "" {
			continue
		}
		pi := s.nodeIndex(n.ParentID)
		if pi < 0 || s.nodes[pi].Type != GroupNodeType || s.hasParentCycle(n.ID) {
			orphans = append(orphans, i)
		}
	}

	if len(doomed) == 0 && len(orphans) == 0 {
		return 0
	}

	s.pushSnapshot()
	doomedIDs := make(map[string]struct{}, len(doomed))
	for _, e := range doomed {
		doomedIDs[e.ID] = struct{}{}
	}
	s.removeEdges(func(e Edge) bool {
		_, bad := doomedIDs[e.ID]
		return bad
	})
	for _, i := range orphans {
		s.nodes[i].ParentID = ""
	}

	s.metrics.RecordEdgesPruned(context.Background(), len(doomed))
	s.applied("repair", event.Event{Type: event.GraphReplaced})
	return len(doomed)
}

// edgeViolation returns a short reason when the edge violates handle
// correspondence, or "" when it is consistent. Caller holds s.mu.
func (s *Store) edgeViolation(e Edge) string {
	si := s.nodeIndex(e.Source)
	if si < 0 {
		return "source node missing"
	}
	ti := s.nodeIndex(e.Target)
	if ti < 0 {
		return "target node missing"
	}
	if !outputHandleExists(&s.nodes[si], e.SourceHandle) {
		return "source handle missing"
	}
	if _, ok := s.nodes[ti].Data.Config.InputSchema[e.TargetHandle]; !ok {
		return "target handle missing"
	}
	return ""
}

// hasParentCycle walks the parent chain from the node looking for a
// repeat. Caller holds s.mu.
func (s *Store) hasParentCycle(id string) bool {
	visited := make(map[string]struct{})
	for id != "" {
		if _, again := visited[id]; again {
			return true
		}
		visited[id] = struct{}{}
		i := s.nodeIndex(id)
		if i < 0 {
			return false
		}
		id = s.nodes[i].ParentID
	}
	return false
}
