package canvasgraph

import (
	"context"
	"log/slog"
	"sync"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/event"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/ident"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/observability"
)

// Store owns the mutable workflow graph of one editor session and
// applies structural edits while preserving its invariants: unique ids,
// handle-to-schema-key correspondence, and no dangling edges.
//
// Every mutating operation is atomic: it validates first, pushes a
// pre-mutation snapshot onto the undo stack, applies, then notifies the
// event bus. Rejected operations are safe no-ops; they push no snapshot
// and leave the graph byte-for-byte untouched.
//
// The store is owned by a single interaction loop but guarded with a
// mutex so background readers (autosave, run polling) can take
// consistent snapshots.
type Store struct {
	mu             sync.RWMutex
	nodes          []Node
	edges          []Edge
	inputVars      map[string]any
	selectedNodeID string
	hist           history

	logger  *slog.Logger
	bus     *event.Bus
	metrics observability.MetricsRecorder
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithBus attaches an event bus; the store publishes a change event
// after every applied mutation.
func WithBus(bus *event.Bus) StoreOption {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) StoreOption {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithHistoryLimit caps the undo stack depth.
// Default: DefaultHistoryLimit.
func WithHistoryLimit(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.hist.limit = n
		}
	}
}

// NewStore creates an empty graph store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		inputVars: make(map[string]any),
		metrics:   observability.NoopMetrics{},
		hist:      history{limit: DefaultHistoryLimit},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---- reads ----

// Nodes returns a deep copy of all nodes.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Node, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Edges returns a deep copy of all edges.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Edge, len(s.edges))
	for i, e := range s.edges {
		out[i] = e.Clone()
	}
	return out
}

// Node returns a deep copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.nodeIndex(id); i >= 0 {
		return s.nodes[i].Clone(), true
	}
	return Node{}, false
}

// Edge returns a deep copy of the edge with the given id.
func (s *Store) Edge(id string) (Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.edgeIndex(id); i >= 0 {
		return s.edges[i].Clone(), true
	}
	return Edge{}, false
}

// Titles returns the set of node titles currently in the graph.
// Feed this to the factory to keep new titles collision-free.
func (s *Store) Titles() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.nodes))
	for _, n := range s.nodes {
		out[n.Data.Title] = struct{}{}
	}
	return out
}

// InputNode returns the graph's designated input node, if present.
func (s *Store) InputNode() (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.inputNodeIndex(); i >= 0 {
		return s.nodes[i].Clone(), true
	}
	return Node{}, false
}

// WorkflowInputVariables returns a copy of the named workflow inputs.
func (s *Store) WorkflowInputVariables() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAnyMap(s.inputVars)
}

// SelectedNodeID returns the currently selected node id, or "".
func (s *Store) SelectedNodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedNodeID
}

// ---- selection ----

// Select marks the node as selected.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nodeIndex(id) < 0 {
		return mutationErr("select", ErrNodeNotFound)
	}
	s.selectedNodeID = id
	return nil
}

// ClearSelection clears the selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedNodeID = ""
}

// ---- mutations ----

// AddNode appends a node to the graph. The node gains a fresh id when
// it has none. No connections are made.
func (s *Store) AddNode(n Node) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = ident.NewID("node")
	}
	if s.nodeIndex(n.ID) >= 0 {
		return Node{}, s.reject("add_node", ErrDuplicateID)
	}

	s.pushSnapshot()
	s.nodes = append(s.nodes, n.Clone())
	s.applied("add_node", event.Event{Type: event.NodeAdded, NodeID: n.ID})
	return n, nil
}

// DeleteNode removes the node and every edge touching it. Deleting a
// group node detaches its children back to absolute positions. Clears
// the selection when the deleted node was selected.
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nodeIndex(id)
	if idx < 0 {
		return s.reject("delete_node", ErrNodeNotFound)
	}

	s.pushSnapshot()
	doomed := s.nodes[idx]

	if doomed.Type == GroupNodeType {
		for i := range s.nodes {
			if s.nodes[i].ParentID == id {
				s.nodes[i].Position = s.nodes[i].Position.Add(doomed.Position)
				s.nodes[i].ParentID = ""
			}
		}
	}

	s.nodes = append(s.nodes[:idx], s.nodes[idx+1:]...)
	s.removeEdges(func(e Edge) bool { return e.Touches(id) })

	if s.selectedNodeID == id {
		s.selectedNodeID = ""
	}
	s.applied("delete_node", event.Event{Type: event.NodeDeleted, NodeID: id})
	return nil
}

// Connect validates a connection and attaches a new edge.
//
// Self-loops are rejected. When the target handle is the generic
// NodeBodyHandle, a new input schema key named after the source handle
// is synthesized on the target first (typed after the source's output
// schema, "string" when unknown) and the edge attaches to it.
func (s *Store) Connect(conn Connection) (Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn.Source == conn.Target {
		return Edge{}, s.reject("connect", ErrSelfLoop)
	}
	srcIdx := s.nodeIndex(conn.Source)
	if srcIdx < 0 {
		return Edge{}, s.reject("connect", ErrNodeNotFound)
	}
	tgtIdx := s.nodeIndex(conn.Target)
	if tgtIdx < 0 {
		return Edge{}, s.reject("connect", ErrNodeNotFound)
	}

	src := &s.nodes[srcIdx]
	if !outputHandleExists(src, conn.SourceHandle) {
		return Edge{}, s.reject("connect", ErrUnknownHandle)
	}

	tgt := &s.nodes[tgtIdx]
	targetHandle := conn.TargetHandle
	synthesize := false
	if targetHandle == NodeBodyHandle {
		targetHandle = ident.Sanitize(conn.SourceHandle)
		if _, exists := tgt.Data.Config.InputSchema[targetHandle]; !exists {
			synthesize = true
		}
	} else if _, exists := tgt.Data.Config.InputSchema[targetHandle]; !exists {
		return Edge{}, s.reject("connect", ErrUnknownHandle)
	}

	for _, e := range s.edges {
		if e.Source == conn.Source && e.SourceHandle == conn.SourceHandle &&
			e.Target == conn.Target && e.TargetHandle == targetHandle {
			return Edge{}, s.reject("connect", ErrDuplicateEdge)
		}
	}

	s.pushSnapshot()
	if synthesize {
		if tgt.Data.Config.InputSchema == nil {
			tgt.Data.Config.InputSchema = make(map[string]string, 1)
		}
		// Infer the key type from the source's output schema rather
		// than hard-coding "string", so a numeric output stays numeric
		// downstream.
		keyType := src.Data.Config.OutputSchema[conn.SourceHandle]
		if keyType == "" {
			keyType = "string"
		}
		tgt.Data.Config.InputSchema[targetHandle] = keyType
	}

	edge := Edge{
		ID:           ident.NewID("edge"),
		Source:       conn.Source,
		SourceHandle: conn.SourceHandle,
		Target:       conn.Target,
		TargetHandle: targetHandle,
	}
	s.edges = append(s.edges, edge)
	s.applied("connect", event.Event{Type: event.EdgeAdded, EdgeID: edge.ID})
	return edge.Clone(), nil
}

// DeleteEdge removes the edge with the given id.
func (s *Store) DeleteEdge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.edgeIndex(id)
	if idx < 0 {
		return s.reject("delete_edge", ErrEdgeNotFound)
	}

	s.pushSnapshot()
	s.edges = append(s.edges[:idx], s.edges[idx+1:]...)
	s.applied("delete_edge", event.Event{Type: event.EdgeDeleted, EdgeID: id})
	return nil
}

// DeleteEdgesBySource removes every edge originating at the node.
// Returns the number of edges removed; zero removals push no snapshot.
func (s *Store) DeleteEdgesBySource(sourceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEdgesWhere("delete_edges_by_source", func(e Edge) bool {
		return e.Source == sourceID
	})
}

// DeleteEdgesByHandle removes every edge attached to the given handle
// on either side of the node. Returns the number of edges removed.
func (s *Store) DeleteEdgesByHandle(nodeID, handleKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEdgesWhere("delete_edges_by_handle", func(e Edge) bool {
		return (e.Source == nodeID && e.SourceHandle == handleKey) ||
			(e.Target == nodeID && e.TargetHandle == handleKey)
	})
}

// UpdateNodeData merges a partial update into the node's data. The
// config sub-object is deep-merged (see DataPatch).
func (s *Store) UpdateNodeData(id string, patch DataPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nodeIndex(id)
	if idx < 0 {
		return s.reject("update_node_data", ErrNodeNotFound)
	}

	s.pushSnapshot()
	patch.apply(&s.nodes[idx].Data)
	s.applied("update_node_data", event.Event{Type: event.NodeUpdated, NodeID: id})
	return nil
}

// MoveNode repositions a node. Position is relative to the parent
// group when the node has one.
func (s *Store) MoveNode(id string, pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nodeIndex(id)
	if idx < 0 {
		return s.reject("move_node", ErrNodeNotFound)
	}

	s.pushSnapshot()
	s.nodes[idx].Position = pos
	s.applied("move_node", event.Event{Type: event.NodeUpdated, NodeID: id})
	return nil
}

// SetMeasured records a node's rendered size, used by grouping and
// layout. Measurement updates are not undoable edits.
func (s *Store) SetMeasured(id string, size Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nodeIndex(id)
	if idx < 0 {
		return mutationErr("set_measured", ErrNodeNotFound)
	}
	s.nodes[idx].Measured = &size
	return nil
}

// SetPositions applies a batch of computed positions (from auto-layout)
// as a single undoable edit. Unknown ids are ignored.
func (s *Store) SetPositions(positions map[string]Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(positions) == 0 {
		return
	}
	s.pushSnapshot()
	for i := range s.nodes {
		if pos, ok := positions[s.nodes[i].ID]; ok {
			s.nodes[i].Position = pos
		}
	}
	s.applied("set_positions", event.Event{Type: event.GraphReplaced})
}

// ---- workflow input variables ----

// SetWorkflowInputVariable sets a named workflow-boundary input. The
// key is sanitized and exposed as a handle on the input node's output
// schema, typed after the value.
func (s *Store) SetWorkflowInputVariable(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inIdx := s.inputNodeIndex()
	if inIdx < 0 {
		return s.reject("set_input_variable", ErrNoInputNode)
	}
	key = ident.Sanitize(key)

	s.pushSnapshot()
	s.inputVars[key] = value
	in := &s.nodes[inIdx]
	if in.Data.Config.OutputSchema == nil {
		in.Data.Config.OutputSchema = make(map[string]string, 1)
	}
	in.Data.Config.OutputSchema[key] = schemaTypeOf(value)
	s.applied("set_input_variable", event.Event{Type: event.NodeUpdated, NodeID: in.ID})
	return nil
}

// DeleteWorkflowInputVariable removes a named workflow input, its
// handle on the input node, and every edge fed by that handle.
func (s *Store) DeleteWorkflowInputVariable(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inIdx := s.inputNodeIndex()
	if inIdx < 0 {
		return s.reject("delete_input_variable", ErrNoInputNode)
	}
	if _, ok := s.inputVars[key]; !ok {
		return s.reject("delete_input_variable", ErrUnknownKey)
	}

	s.pushSnapshot()
	delete(s.inputVars, key)
	in := &s.nodes[inIdx]
	delete(in.Data.Config.OutputSchema, key)
	s.removeEdges(func(e Edge) bool {
		return e.Source == in.ID && e.SourceHandle == key
	})
	s.applied("delete_input_variable", event.Event{Type: event.NodeUpdated, NodeID: in.ID})
	return nil
}

// RenameWorkflowInputVariableKey renames a workflow input, cascading to
// the input node's output schema and every edge fed by the old handle.
// A rename to the same or an empty key is a no-op.
func (s *Store) RenameWorkflowInputVariableKey(oldKey, newKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inIdx := s.inputNodeIndex()
	if inIdx < 0 {
		return s.reject("rename_input_variable", ErrNoInputNode)
	}
	if _, ok := s.inputVars[oldKey]; !ok {
		return s.reject("rename_input_variable", ErrUnknownKey)
	}
	newKey, ok := normalizeKey(oldKey, newKey)
	if !ok {
		return nil
	}

	s.pushSnapshot()
	s.inputVars[newKey] = s.inputVars[oldKey]
	delete(s.inputVars, oldKey)
	in := &s.nodes[inIdx]
	s.renameKeyLocked(in, oldKey, newKey, SchemaOutput)
	s.applied("rename_input_variable", event.Event{Type: event.NodeUpdated, NodeID: in.ID})
	return nil
}

// ---- undo/redo ----

// Undo reverts the most recent mutation. Returns false when there is
// nothing to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.hist.undo(snapshot(s.nodes, s.edges))
	if !ok {
		return false
	}
	s.restore(prev)
	s.applied("undo", event.Event{Type: event.HistoryMoved})
	return true
}

// Redo re-applies the most recently undone mutation. Returns false
// when there is nothing to redo.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.hist.redo(snapshot(s.nodes, s.edges))
	if !ok {
		return false
	}
	s.restore(next)
	s.applied("redo", event.Event{Type: event.HistoryMoved})
	return true
}

// ---- internals (callers hold s.mu) ----

// nodeIndex returns the index of the node with the given id, or -1.
func (s *Store) nodeIndex(id string) int {
	for i := range s.nodes {
		if s.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// edgeIndex returns the index of the edge with the given id, or -1.
func (s *Store) edgeIndex(id string) int {
	for i := range s.edges {
		if s.edges[i].ID == id {
			return i
		}
	}
	return -1
}

// inputNodeIndex returns the index of the designated input node, or -1.
func (s *Store) inputNodeIndex() int {
	for i := range s.nodes {
		if s.nodes[i].Type == InputNodeType {
			return i
		}
	}
	return -1
}

// pushSnapshot records the pre-mutation state.
func (s *Store) pushSnapshot() {
	s.hist.push(snapshot(s.nodes, s.edges))
}

// restore replaces the live graph with the snapshot. The selection is
// cleared when the selected node no longer exists.
func (s *Store) restore(snap Snapshot) {
	s.nodes = snap.Nodes
	s.edges = snap.Edges
	if s.selectedNodeID != "" && s.nodeIndex(s.selectedNodeID) < 0 {
		s.selectedNodeID = ""
	}
}

// removeEdges drops every edge matching the predicate.
func (s *Store) removeEdges(match func(Edge) bool) int {
	kept := s.edges[:0]
	removed := 0
	for _, e := range s.edges {
		if match(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept
	return removed
}

// deleteEdgesWhere is the snapshot-pushing variant of removeEdges used
// by the targeted pruning operations.
func (s *Store) deleteEdgesWhere(op string, match func(Edge) bool) int {
	matched := false
	for _, e := range s.edges {
		if match(e) {
			matched = true
			break
		}
	}
	if !matched {
		return 0
	}
	s.pushSnapshot()
	removed := s.removeEdges(match)
	s.applied(op, event.Event{Type: event.EdgeDeleted})
	return removed
}

// applied records bookkeeping for an applied mutation.
func (s *Store) applied(op string, evt event.Event) {
	observability.LogMutation(s.logger, op, evt.NodeID, evt.EdgeID)
	s.metrics.RecordMutation(context.Background(), op)
	if s.bus != nil {
		s.bus.Publish(evt)
	}
}

// reject records bookkeeping for a rejected mutation and wraps the error.
func (s *Store) reject(op string, err error) error {
	wrapped := mutationErr(op, err)
	observability.LogMutationRejected(s.logger, op, err)
	return wrapped
}

// outputHandleExists reports whether handle is a valid source handle on
// the node: an output schema key, or a route id on a router node.
func outputHandleExists(n *Node, handle string) bool {
	if _, ok := n.Data.Config.OutputSchema[handle]; ok {
		return true
	}
	if n.Type == RouterNodeType {
		for _, r := range n.Data.Config.Routes {
			if r.ID == handle {
				return true
			}
		}
	}
	return false
}

// schemaTypeOf maps a Go value onto a schema type name.
func schemaTypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64, float32, float64:
		return "number"
	case string:
		return "string"
	default:
		return "object"
	}
}
