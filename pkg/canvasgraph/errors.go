// Package canvasgraph provides the node-graph consistency engine for a
// visual workflow builder.
package canvasgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for store mutations. A mutation returning one of
// these left the graph untouched and pushed no undo snapshot.
var (
	// ErrNodeNotFound indicates an operation referenced a node id not
	// present in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates an operation referenced an edge id not
	// present in the graph.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrDuplicateID indicates an added node or edge reuses an id
	// already in the graph.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrSelfLoop indicates a connection from a node to itself.
	ErrSelfLoop = errors.New("self-loop rejected")

	// ErrDuplicateEdge indicates an identical connection already exists.
	ErrDuplicateEdge = errors.New("edge already exists")

	// ErrUnknownHandle indicates a connection handle has no matching
	// schema key on its node.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrUnknownKey indicates a schema-key operation referenced a key
	// absent from the node's schema.
	ErrUnknownKey = errors.New("unknown schema key")

	// ErrEmptyKey indicates a rename target that is empty after
	// whitespace normalization.
	ErrEmptyKey = errors.New("empty schema key")

	// ErrNoInputNode indicates the graph has no designated input node
	// for workflow input variables.
	ErrNoInputNode = errors.New("no input node in graph")

	// ErrNotAGroup indicates a group operation targeted a node that is
	// not a group node.
	ErrNotAGroup = errors.New("node is not a group")

	// ErrEmptySelection indicates a group operation with no nodes
	// selected.
	ErrEmptySelection = errors.New("empty selection")

	// ErrAlreadyGrouped indicates a selected node already belongs to a
	// group.
	ErrAlreadyGrouped = errors.New("node already grouped")
)

// MutationError wraps a rejected mutation with its operation name.
type MutationError struct {
	// Op is the mutation that was rejected (e.g. "connect").
	Op string
	// Err is the underlying validation error.
	Err error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// mutationErr wraps err with the operation name.
func mutationErr(op string, err error) error {
	return &MutationError{Op: op, Err: err}
}
