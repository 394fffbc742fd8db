package canvasgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	t.Run("assigns id when empty", func(t *testing.T) {
		s := NewStore()
		n, err := s.AddNode(Node{Type: "SingleLLMCallNode"})
		require.NoError(t, err)
		assert.NotEmpty(t, n.ID)

		got, ok := s.Node(n.ID)
		require.True(t, ok)
		assert.Equal(t, "SingleLLMCallNode", got.Type)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newLLMNode("a", ""))

		_, err := s.AddNode(newLLMNode("a", ""))
		assert.ErrorIs(t, err, ErrDuplicateID)
		assert.Len(t, s.Nodes(), 1)
	})

	t.Run("rejected add pushes no snapshot", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newLLMNode("a", ""))
		_, err := s.AddNode(newLLMNode("a", ""))
		require.Error(t, err)

		require.True(t, s.Undo())
		assert.Empty(t, s.Nodes())
		assert.False(t, s.Undo())
	})
}

func TestConnect(t *testing.T) {
	t.Run("explicit handles", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in", "topic"))
		llm := newLLMNode("llm", "")
		llm.Data.Config.InputSchema["topic"] = "string"
		mustAdd(s, llm)

		edge, err := s.Connect(Connection{
			Source: "in", SourceHandle: "topic",
			Target: "llm", TargetHandle: "topic",
		})
		require.NoError(t, err)
		assert.Equal(t, "topic", edge.SourceHandle)
		assert.Equal(t, "topic", edge.TargetHandle)
		assert.NotEmpty(t, edge.ID)
	})

	// Dropping an output handle onto the generic node body synthesizes a
	// matching input key on the target first.
	t.Run("node body synthesizes target key", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in", "topic"))
		mustAdd(s, newLLMNode("llm", ""))

		edge, err := s.Connect(Connection{
			Source: "in", SourceHandle: "topic",
			Target: "llm", TargetHandle: NodeBodyHandle,
		})
		require.NoError(t, err)
		assert.Equal(t, "topic", edge.TargetHandle)

		llm, ok := s.Node("llm")
		require.True(t, ok)
		assert.Equal(t, "string", llm.Data.Config.InputSchema["topic"])
	})

	t.Run("synthesized key inherits source type", func(t *testing.T) {
		s := NewStore()
		in := newInputNode("in")
		in.Data.Config.OutputSchema = map[string]string{"count": "number"}
		mustAdd(s, in)
		mustAdd(s, newLLMNode("llm", ""))

		_, err := s.Connect(Connection{
			Source: "in", SourceHandle: "count",
			Target: "llm", TargetHandle: NodeBodyHandle,
		})
		require.NoError(t, err)

		llm, _ := s.Node("llm")
		assert.Equal(t, "number", llm.Data.Config.InputSchema["count"])
	})

	t.Run("rejects self loop", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newLLMNode("a", ""))

		_, err := s.Connect(Connection{Source: "a", SourceHandle: "response", Target: "a", TargetHandle: NodeBodyHandle})
		assert.ErrorIs(t, err, ErrSelfLoop)
		assert.Empty(t, s.Edges())
	})

	t.Run("rejects unknown source handle", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in", "topic"))
		mustAdd(s, newLLMNode("llm", ""))

		_, err := s.Connect(Connection{
			Source: "in", SourceHandle: "missing",
			Target: "llm", TargetHandle: NodeBodyHandle,
		})
		assert.ErrorIs(t, err, ErrUnknownHandle)
	})

	t.Run("rejects unknown explicit target handle", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in", "topic"))
		mustAdd(s, newLLMNode("llm", ""))

		_, err := s.Connect(Connection{
			Source: "in", SourceHandle: "topic",
			Target: "llm", TargetHandle: "nope",
		})
		assert.ErrorIs(t, err, ErrUnknownHandle)
	})

	t.Run("rejects duplicate edge", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in", "topic"))
		mustAdd(s, newLLMNode("llm", ""))

		conn := Connection{Source: "in", SourceHandle: "topic", Target: "llm", TargetHandle: NodeBodyHandle}
		_, err := s.Connect(conn)
		require.NoError(t, err)

		_, err = s.Connect(conn)
		assert.ErrorIs(t, err, ErrDuplicateEdge)
		assert.Len(t, s.Edges(), 1)
	})

	t.Run("router route id is a valid source handle", func(t *testing.T) {
		s := NewStore()
		router := Node{
			ID:   "router",
			Type: RouterNodeType,
			Data: NodeData{
				Title: "router_1",
				Config: NodeConfig{
					Routes: []Route{{ID: "route_1", Expression: `score > 0.5`}},
				},
			},
		}
		mustAdd(s, router)
		mustAdd(s, newLLMNode("llm", ""))

		edge, err := s.Connect(Connection{
			Source: "router", SourceHandle: "route_1",
			Target: "llm", TargetHandle: NodeBodyHandle,
		})
		require.NoError(t, err)
		assert.Equal(t, "route_1", edge.SourceHandle)
	})
}

func TestDeleteNode(t *testing.T) {
	t.Run("cascades edges", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in", "topic"))
		mustAdd(s, newLLMNode("llm", ""))
		_, err := s.Connect(Connection{Source: "in", SourceHandle: "topic", Target: "llm", TargetHandle: NodeBodyHandle})
		require.NoError(t, err)

		require.NoError(t, s.DeleteNode("in"))

		assert.Empty(t, s.Edges())
		_, ok := s.Node("in")
		assert.False(t, ok)

		// Survivor keeps its schema; only the edge is gone.
		llm, ok := s.Node("llm")
		require.True(t, ok)
		assert.Equal(t, "string", llm.Data.Config.InputSchema["topic"])
	})

	t.Run("unknown id", func(t *testing.T) {
		s := NewStore()
		err := s.DeleteNode("ghost")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("clears selection", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newLLMNode("a", ""))
		require.NoError(t, s.Select("a"))
		require.NoError(t, s.DeleteNode("a"))
		assert.Empty(t, s.SelectedNodeID())
	})

	t.Run("deleting a group detaches children to absolute positions", func(t *testing.T) {
		s := NewStore()
		a := newLLMNode("a", "")
		a.Position = Position{X: 0, Y: 0}
		mustAdd(s, a)

		group, err := s.Group([]string{"a"}, DefaultGroupPadding)
		require.NoError(t, err)

		require.NoError(t, s.DeleteNode(group.ID))

		got, ok := s.Node("a")
		require.True(t, ok)
		assert.Empty(t, got.ParentID)
		assert.Equal(t, Position{X: 0, Y: 0}, got.Position)
	})
}

func TestDeleteEdges(t *testing.T) {
	wire := func(t *testing.T) *Store {
		t.Helper()
		s := NewStore()
		mustAdd(s, newInputNode("in", "topic", "tone"))
		mustAdd(s, newLLMNode("a", ""))
		mustAdd(s, newLLMNode("b", ""))
		for _, conn := range []Connection{
			{Source: "in", SourceHandle: "topic", Target: "a", TargetHandle: NodeBodyHandle},
			{Source: "in", SourceHandle: "tone", Target: "a", TargetHandle: NodeBodyHandle},
			{Source: "in", SourceHandle: "topic", Target: "b", TargetHandle: NodeBodyHandle},
		} {
			_, err := s.Connect(conn)
			require.NoError(t, err)
		}
		return s
	}

	t.Run("by id", func(t *testing.T) {
		s := wire(t)
		edges := s.Edges()
		require.NoError(t, s.DeleteEdge(edges[0].ID))
		assert.Len(t, s.Edges(), 2)

		assert.ErrorIs(t, s.DeleteEdge("ghost"), ErrEdgeNotFound)
	})

	t.Run("by source", func(t *testing.T) {
		s := wire(t)
		assert.Equal(t, 3, s.DeleteEdgesBySource("in"))
		assert.Empty(t, s.Edges())
		assert.Zero(t, s.DeleteEdgesBySource("in"))
	})

	t.Run("by handle", func(t *testing.T) {
		s := wire(t)
		assert.Equal(t, 2, s.DeleteEdgesByHandle("in", "topic"))
		assert.Len(t, s.Edges(), 1)
	})

	t.Run("zero matches push no snapshot", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newLLMNode("a", ""))
		assert.Zero(t, s.DeleteEdgesBySource("a"))

		// Only the add is undoable.
		require.True(t, s.Undo())
		assert.False(t, s.Undo())
	})
}

func TestUpdateNodeData(t *testing.T) {
	s := NewStore()
	mustAdd(s, newLLMNode("llm", "hello {{topic}}"))

	err := s.UpdateNodeData("llm", DataPatch{
		Title: String("renamed"),
		Config: &ConfigPatch{
			InputSchema: map[string]string{"extra": "number"},
			UserMessage: String("rewritten"),
		},
	})
	require.NoError(t, err)

	got, ok := s.Node("llm")
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Data.Title)
	assert.Equal(t, "rewritten", got.Data.Config.UserMessage)
	assert.Equal(t, "number", got.Data.Config.InputSchema["extra"])
	// Untouched fields survive the merge.
	assert.Equal(t, "string", got.Data.Config.OutputSchema["response"])

	assert.ErrorIs(t, s.UpdateNodeData("ghost", DataPatch{}), ErrNodeNotFound)
}

func TestWorkflowInputVariables(t *testing.T) {
	t.Run("requires an input node", func(t *testing.T) {
		s := NewStore()
		err := s.SetWorkflowInputVariable("topic", "go")
		assert.ErrorIs(t, err, ErrNoInputNode)
	})

	t.Run("set sanitizes key and mirrors schema", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in"))

		require.NoError(t, s.SetWorkflowInputVariable("user topic!", "go"))
		require.NoError(t, s.SetWorkflowInputVariable("max_tokens", 512))

		in, _ := s.Node("in")
		assert.Equal(t, "string", in.Data.Config.OutputSchema["user_topic"])
		assert.Equal(t, "number", in.Data.Config.OutputSchema["max_tokens"])

		vars := s.WorkflowInputVariables()
		assert.Equal(t, "go", vars["user_topic"])
		assert.Equal(t, 512, vars["max_tokens"])
	})

	t.Run("delete prunes fed edges", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in"))
		mustAdd(s, newLLMNode("llm", ""))
		require.NoError(t, s.SetWorkflowInputVariable("topic", "go"))
		_, err := s.Connect(Connection{Source: "in", SourceHandle: "topic", Target: "llm", TargetHandle: NodeBodyHandle})
		require.NoError(t, err)

		require.NoError(t, s.DeleteWorkflowInputVariable("topic"))

		assert.Empty(t, s.Edges())
		in, _ := s.Node("in")
		_, present := in.Data.Config.OutputSchema["topic"]
		assert.False(t, present)
		assert.Empty(t, s.WorkflowInputVariables())

		assert.ErrorIs(t, s.DeleteWorkflowInputVariable("topic"), ErrUnknownKey)
	})

	t.Run("rename cascades to schema and edges", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in"))
		mustAdd(s, newLLMNode("llm", ""))
		require.NoError(t, s.SetWorkflowInputVariable("topic", "go"))
		_, err := s.Connect(Connection{Source: "in", SourceHandle: "topic", Target: "llm", TargetHandle: NodeBodyHandle})
		require.NoError(t, err)

		require.NoError(t, s.RenameWorkflowInputVariableKey("topic", "subject"))

		vars := s.WorkflowInputVariables()
		assert.Equal(t, "go", vars["subject"])
		assert.NotContains(t, vars, "topic")

		in, _ := s.Node("in")
		assert.Contains(t, in.Data.Config.OutputSchema, "subject")

		edges := s.Edges()
		require.Len(t, edges, 1)
		assert.Equal(t, "subject", edges[0].SourceHandle)
	})

	t.Run("rename to same key is a no-op", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in"))
		require.NoError(t, s.SetWorkflowInputVariable("topic", "go"))

		require.NoError(t, s.RenameWorkflowInputVariableKey("topic", "topic"))
		require.NoError(t, s.RenameWorkflowInputVariableKey("topic", "   "))
		assert.Contains(t, s.WorkflowInputVariables(), "topic")
	})
}

func TestSelection(t *testing.T) {
	s := NewStore()
	mustAdd(s, newLLMNode("a", ""))

	assert.ErrorIs(t, s.Select("ghost"), ErrNodeNotFound)
	require.NoError(t, s.Select("a"))
	assert.Equal(t, "a", s.SelectedNodeID())

	s.ClearSelection()
	assert.Empty(t, s.SelectedNodeID())
}

func TestMoveAndMeasure(t *testing.T) {
	s := NewStore()
	mustAdd(s, newLLMNode("a", ""))

	require.NoError(t, s.MoveNode("a", Position{X: 10, Y: 20}))
	got, _ := s.Node("a")
	assert.Equal(t, Position{X: 10, Y: 20}, got.Position)

	require.NoError(t, s.SetMeasured("a", Size{Width: 240, Height: 100}))
	got, _ = s.Node("a")
	require.NotNil(t, got.Measured)
	assert.Equal(t, 240.0, got.Measured.Width)

	// Measurement is not an edit: undo should revert the move, not the
	// measurement.
	require.True(t, s.Undo())
	got, _ = s.Node("a")
	assert.Equal(t, Position{}, got.Position)
}

func TestSetPositions(t *testing.T) {
	s := NewStore()
	mustAdd(s, newLLMNode("a", ""))
	mustAdd(s, newLLMNode("b", ""))

	s.SetPositions(map[string]Position{
		"a":     {X: 1, Y: 2},
		"b":     {X: 3, Y: 4},
		"ghost": {X: 9, Y: 9},
	})

	a, _ := s.Node("a")
	b, _ := s.Node("b")
	assert.Equal(t, Position{X: 1, Y: 2}, a.Position)
	assert.Equal(t, Position{X: 3, Y: 4}, b.Position)

	// The whole batch reverts as one edit.
	require.True(t, s.Undo())
	a, _ = s.Node("a")
	b, _ = s.Node("b")
	assert.Equal(t, Position{}, a.Position)
	assert.Equal(t, Position{}, b.Position)
}

func TestUndoRedo(t *testing.T) {
	t.Run("three edits undo twice redo once", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newLLMNode("a", ""))             // edit 1
		mustAdd(s, newLLMNode("b", ""))             // edit 2
		require.NoError(t, s.MoveNode("b", Position{X: 5, Y: 5})) // edit 3

		require.True(t, s.Undo())
		require.True(t, s.Undo())
		require.True(t, s.Redo())

		// Exactly the state after edit 2.
		assert.Len(t, s.Nodes(), 2)
		b, ok := s.Node("b")
		require.True(t, ok)
		assert.Equal(t, Position{}, b.Position)
	})

	t.Run("new edit clears redo", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newLLMNode("a", ""))
		mustAdd(s, newLLMNode("b", ""))

		require.True(t, s.Undo())
		mustAdd(s, newLLMNode("c", ""))
		assert.False(t, s.Redo())
	})

	t.Run("empty stacks", func(t *testing.T) {
		s := NewStore()
		assert.False(t, s.Undo())
		assert.False(t, s.Redo())
	})

	t.Run("undo redo round trip restores exact state", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newInputNode("in", "topic"))
		mustAdd(s, newLLMNode("llm", "summarize {{topic}}"))
		_, err := s.Connect(Connection{Source: "in", SourceHandle: "topic", Target: "llm", TargetHandle: NodeBodyHandle})
		require.NoError(t, err)
		before := s.Serialize()

		require.True(t, s.Undo())
		require.True(t, s.Redo())

		assert.Equal(t, before, s.Serialize())
	})

	t.Run("history limit drops oldest", func(t *testing.T) {
		s := NewStore(WithHistoryLimit(2))
		mustAdd(s, newLLMNode("a", ""))
		mustAdd(s, newLLMNode("b", ""))
		mustAdd(s, newLLMNode("c", ""))

		assert.True(t, s.Undo())
		assert.True(t, s.Undo())
		assert.False(t, s.Undo())
		// The first edit fell off: "a" can no longer be undone away.
		assert.Len(t, s.Nodes(), 1)
	})

	t.Run("undo clears stale selection", func(t *testing.T) {
		s := NewStore()
		mustAdd(s, newLLMNode("a", ""))
		require.NoError(t, s.Select("a"))

		require.True(t, s.Undo())
		assert.Empty(t, s.SelectedNodeID())
	})
}

func TestReadsReturnCopies(t *testing.T) {
	s := NewStore()
	mustAdd(s, newLLMNode("a", ""))

	nodes := s.Nodes()
	nodes[0].Data.Config.InputSchema["injected"] = "string"
	nodes[0].Data.Title = "tampered"

	got, _ := s.Node("a")
	assert.NotContains(t, got.Data.Config.InputSchema, "injected")
	assert.Equal(t, "llm_a", got.Data.Title)
}
