package canvasgraph

import (
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/event"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/ident"
)

// DefaultGroupPadding is the margin a new group node keeps around the
// bounding box of its children, in canvas units.
const DefaultGroupPadding = 25

// DefaultSize is assumed for nodes without a measured size.
var DefaultSize = Size{Width: 200, Height: 80}

// sizeOf returns the node's measured size, or DefaultSize.
func sizeOf(n Node) Size {
	if n.Measured != nil {
		return *n.Measured
	}
	return DefaultSize
}

// Group clusters the selected nodes into a new group node.
//
// The group is positioned at the selection's bounding box origin minus
// padding on all sides; each selected node is re-parented and its
// position rewritten relative to the group. Unselected nodes are
// returned untouched. Selected nodes must exist and must not already
// belong to a group.
//
// The returned slice contains deep copies; the input is not mutated.
// The group node itself is not in the slice — insert it ahead of its
// children so containers render before contents.
func Group(selectedIDs []string, nodes []Node, padding float64) (Node, []Node, error) {
	if len(selectedIDs) == 0 {
		return Node{}, nil, ErrEmptySelection
	}

	byID := make(map[string]int, len(nodes))
	for i, n := range nodes {
		byID[n.ID] = i
	}

	selected := make(map[string]struct{}, len(selectedIDs))
	first := true
	var minX, minY, maxX, maxY float64
	for _, id := range selectedIDs {
		i, ok := byID[id]
		if !ok {
			return Node{}, nil, ErrNodeNotFound
		}
		n := nodes[i]
		if n.ParentID != "" {
			return Node{}, nil, ErrAlreadyGrouped
		}
		selected[id] = struct{}{}

		size := sizeOf(n)
		if first {
			minX, minY = n.Position.X, n.Position.Y
			maxX, maxY = n.Position.X+size.Width, n.Position.Y+size.Height
			first = false
			continue
		}
		minX = min(minX, n.Position.X)
		minY = min(minY, n.Position.Y)
		maxX = max(maxX, n.Position.X+size.Width)
		maxY = max(maxY, n.Position.Y+size.Height)
	}

	group := Node{
		ID:       ident.NewID("group"),
		Type:     GroupNodeType,
		Position: Position{X: minX - padding, Y: minY - padding},
		Measured: &Size{
			Width:  maxX - minX + 2*padding,
			Height: maxY - minY + 2*padding,
		},
		Data: NodeData{Title: "group"},
	}

	updated := make([]Node, len(nodes))
	for i, n := range nodes {
		c := n.Clone()
		if _, ok := selected[n.ID]; ok {
			c.Position = c.Position.Sub(group.Position)
			c.ParentID = group.ID
		}
		updated[i] = c
	}
	return group, updated, nil
}

// Ungroup detaches every child of the group, restoring absolute
// positions and clearing parent references. The group node itself is
// left in place; deleting it is the caller's decision.
//
// Exact inverse of Group for any child not moved in between.
func Ungroup(groupID string, nodes []Node) ([]Node, error) {
	var group *Node
	for i := range nodes {
		if nodes[i].ID == groupID {
			group = &nodes[i]
			break
		}
	}
	if group == nil {
		return nil, ErrNodeNotFound
	}
	if group.Type != GroupNodeType {
		return nil, ErrNotAGroup
	}

	updated := make([]Node, len(nodes))
	for i, n := range nodes {
		c := n.Clone()
		if c.ParentID == groupID {
			c.Position = c.Position.Add(group.Position)
			c.ParentID = ""
		}
		updated[i] = c
	}
	return updated, nil
}

// Group clusters the selected nodes into a new group node as a single
// undoable edit. Returns the created group node.
func (s *Store) Group(selectedIDs []string, padding float64) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, updated, err := Group(selectedIDs, s.nodes, padding)
	if err != nil {
		return Node{}, s.reject("group", err)
	}

	s.pushSnapshot()
	s.nodes = append([]Node{group}, updated...)
	s.applied("group", event.Event{Type: event.NodeAdded, NodeID: group.ID})
	return group.Clone(), nil
}

// Ungroup detaches the group's children as a single undoable edit.
func (s *Store) Ungroup(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := Ungroup(groupID, s.nodes)
	if err != nil {
		return s.reject("ungroup", err)
	}

	s.pushSnapshot()
	s.nodes = updated
	s.applied("ungroup", event.Event{Type: event.NodeUpdated, NodeID: groupID})
	return nil
}
