package canvasgraph

// DefaultHistoryLimit caps the undo stack depth.
const DefaultHistoryLimit = 100

// history holds linear undo/redo state as full graph snapshots.
// Interactive canvas graphs are small; deep copies keep the discipline
// simple and the restore exact.
type history struct {
	past   []Snapshot
	future []Snapshot
	limit  int
}

// snapshot deep-copies the live graph.
func snapshot(nodes []Node, edges []Edge) Snapshot {
	s := Snapshot{
		Nodes: make([]Node, len(nodes)),
		Edges: make([]Edge, len(edges)),
	}
	for i, n := range nodes {
		s.Nodes[i] = n.Clone()
	}
	for i, e := range edges {
		s.Edges[i] = e.Clone()
	}
	return s
}

// push records a pre-mutation snapshot and clears the redo stack.
func (h *history) push(s Snapshot) {
	h.past = append(h.past, s)
	if h.limit > 0 && len(h.past) > h.limit {
		h.past = h.past[len(h.past)-h.limit:]
	}
	h.future = h.future[:0]
}

// undo exchanges the live snapshot for the most recent past one.
// Returns false when there is nothing to undo.
func (h *history) undo(live Snapshot) (Snapshot, bool) {
	if len(h.past) == 0 {
		return Snapshot{}, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, live)
	return prev, true
}

// redo exchanges the live snapshot for the most recently undone one.
// Returns false when there is nothing to redo.
func (h *history) redo(live Snapshot) (Snapshot, bool) {
	if len(h.future) == 0 {
		return Snapshot{}, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, live)
	return next, true
}
