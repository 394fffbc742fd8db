/*
Package canvasgraph keeps a mutable directed graph of typed workflow
nodes internally consistent while a user edits it interactively.

# Overview

canvasgraph is the state engine behind a drag-and-drop workflow canvas:
nodes carry typed input/output schemas, edges connect schema keys
(handles), and every edit — renaming a schema key, deleting a node,
wiring two nodes together, grouping a selection — must leave the graph
without dangling edges, orphaned references, or colliding titles.

The engine enforces three invariants at all times:

  - node and edge ids are unique within a graph
  - every edge handle corresponds to a key currently present in the
    relevant schema map of its node
  - an edge never outlives the node or schema key it references

# Basic Usage

Create a store, add nodes from the catalog, and connect them:

	store := canvasgraph.NewStore()

	factory := catalog.NewFactory(catalog.Builtin())
	input, _ := factory.CreateNode(canvasgraph.InputNodeType,
	    catalog.WithExistingTitles(store.Titles()))
	llm, _ := factory.CreateNode("SingleLLMCallNode",
	    catalog.WithExistingTitles(store.Titles()))

	input, _ = store.AddNode(input)
	llm, _ = store.AddNode(llm)

	store.SetWorkflowInputVariable("topic", "go generics")
	store.Connect(canvasgraph.Connection{
	    Source:       input.ID,
	    SourceHandle: "topic",
	    Target:       llm.ID,
	    TargetHandle: canvasgraph.NodeBodyHandle,
	})

Connecting to the generic NodeBodyHandle synthesizes a matching input
schema key on the target, so users can wire nodes without declaring the
receiving key first.

# Rename Propagation

Renaming a schema key updates everything referencing it in one atomic
edit: the schema map, edge handles, and {{key}} placeholders in prompt
templates:

	store.RenameSchemaKey(llm.ID, "topic", "subject", canvasgraph.SchemaInput)

Deleting a key instead prunes every edge attached to its handle.

# Undo/Redo

Every mutating operation pushes a full pre-mutation snapshot. Undo and
redo restore states exactly:

	store.Undo()
	store.Redo()

Rejected operations (unknown ids, self-loops, empty rename targets)
are safe no-ops: they return a sentinel error, push no snapshot, and
leave the graph untouched.

# Grouping

Group clusters a selection into a container node whose children hold
relative positions; Ungroup is its exact inverse:

	group, _ := store.Group([]string{a.ID, b.ID}, canvasgraph.DefaultGroupPadding)
	store.Ungroup(group.ID)

# Thread Safety

The store is owned by a single interaction loop but is safe for
concurrent readers (autosave, run polling) via an internal mutex.

# Subpackages

  - catalog: node-type catalog and node factory
  - ident: id generation and title sanitization
  - template: {{key}} placeholder scanning and renaming
  - layout: deterministic layered auto-layout
  - condition: router branch predicate evaluation
  - run: partial-execution coordination against a run backend
  - autosave: debounced persistence and local draft stores
  - event: in-process change notification bus
  - config: editor configuration
  - observability: logging, metrics, and tracing helpers
*/
package canvasgraph
