package canvasgraph

import "encoding/json"

// Well-known node type names with structural meaning to the engine.
// The catalog may declare any number of additional types; these are the
// ones the store itself must recognize.
const (
	// InputNodeType is the workflow boundary node. Workflow input
	// variables are exposed as handles on its output schema.
	InputNodeType = "InputNode"

	// OutputNodeType is the workflow result node.
	OutputNodeType = "OutputNode"

	// GroupNodeType is a container node; children hold positions
	// relative to it.
	GroupNodeType = "GroupNode"

	// RouterNodeType branches flow; its output handles are route ids
	// rather than output schema keys.
	RouterNodeType = "RouterNode"
)

// NodeBodyHandle is the generic drop target on a node body. Connecting
// to it synthesizes a new input schema key on the target (see
// Store.Connect).
const NodeBodyHandle = "node-body"

// Position is a node's top-left coordinate on the canvas.
// For a child of a group node it is relative to the group's position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Position) Add(q Position) Position {
	return Position{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p translated by -q.
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// Size is a node's measured width and height in canvas units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RunStatus is the execution status of a node as reported by the run
// service.
type RunStatus string

// Run statuses.
const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Route is one branch of a router node. Its id doubles as the source
// handle for edges leaving the router on that branch.
type Route struct {
	// ID identifies the branch and its output handle.
	ID string `json:"id"`
	// Expression is an expr-lang predicate over the router's input
	// values, e.g. `input.score > 0.5`.
	Expression string `json:"expression"`
}

// SchemaKind selects which schema map of a node an operation targets.
type SchemaKind int

// Schema kinds.
const (
	SchemaInput SchemaKind = iota
	SchemaOutput
)

// String returns "input" or "output".
func (k SchemaKind) String() string {
	if k == SchemaOutput {
		return "output"
	}
	return "input"
}

// NodeConfig is a node's configuration: the shared schema base plus the
// typed payload fields used by the builtin node types. Fields not known
// to this version survive round-trips through Extra.
type NodeConfig struct {
	// InputSchema maps input key -> type name ("string", "number", ...).
	// Handle ids on the input side are exactly these keys.
	InputSchema map[string]string

	// OutputSchema maps output key -> type name. Handle ids on the
	// output side are exactly these keys.
	OutputSchema map[string]string

	// SystemMessage is an LLM prompt template; may reference input
	// schema keys as {{key}}.
	SystemMessage string

	// UserMessage is an LLM prompt template; may reference input
	// schema keys as {{key}}.
	UserMessage string

	// Code is an executable source string for code nodes.
	Code string

	// Routes are the branches of a router node.
	Routes []Route

	// Extra holds configuration fields this version does not model.
	// Preserved verbatim across serialization.
	Extra map[string]any
}

// configFieldNames are the JSON keys handled by the typed fields above.
var configFieldNames = map[string]struct{}{
	"input_schema":   {},
	"output_schema":  {},
	"system_message": {},
	"user_message":   {},
	"code":           {},
	"routes":         {},
}

// MarshalJSON flattens typed fields and Extra into one object.
func (c NodeConfig) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.Extra)+6)
	for k, v := range c.Extra {
		if _, known := configFieldNames[k]; known {
			continue
		}
		m[k] = v
	}
	if c.InputSchema != nil {
		m["input_schema"] = c.InputSchema
	}
	if c.OutputSchema != nil {
		m["output_schema"] = c.OutputSchema
	}
	if c.SystemMessage != "" {
		m["system_message"] = c.SystemMessage
	}
	if c.UserMessage != "" {
		m["user_message"] = c.UserMessage
	}
	if c.Code != "" {
		m["code"] = c.Code
	}
	if len(c.Routes) > 0 {
		m["routes"] = c.Routes
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits known keys into typed fields and keeps the rest
// in Extra.
func (c *NodeConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = NodeConfig{}
	for key, val := range raw {
		var err error
		switch key {
		case "input_schema":
			err = json.Unmarshal(val, &c.InputSchema)
		case "output_schema":
			err = json.Unmarshal(val, &c.OutputSchema)
		case "system_message":
			err = json.Unmarshal(val, &c.SystemMessage)
		case "user_message":
			err = json.Unmarshal(val, &c.UserMessage)
		case "code":
			err = json.Unmarshal(val, &c.Code)
		case "routes":
			err = json.Unmarshal(val, &c.Routes)
		default:
			var v any
			if err = json.Unmarshal(val, &v); err == nil {
				if c.Extra == nil {
					c.Extra = make(map[string]any)
				}
				c.Extra[key] = v
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Schema returns the schema map for kind. May be nil.
func (c *NodeConfig) Schema(kind SchemaKind) map[string]string {
	if kind == SchemaOutput {
		return c.OutputSchema
	}
	return c.InputSchema
}

// setSchema replaces the schema map for kind.
func (c *NodeConfig) setSchema(kind SchemaKind, schema map[string]string) {
	if kind == SchemaOutput {
		c.OutputSchema = schema
		return
	}
	c.InputSchema = schema
}

// templateFields returns pointers to the free-text fields that may
// reference schema keys as {{key}} placeholders.
func (c *NodeConfig) templateFields() []*string {
	return []*string{&c.SystemMessage, &c.UserMessage}
}

// Clone returns a deep copy.
func (c NodeConfig) Clone() NodeConfig {
	out := c
	out.InputSchema = cloneStringMap(c.InputSchema)
	out.OutputSchema = cloneStringMap(c.OutputSchema)
	if c.Routes != nil {
		out.Routes = make([]Route, len(c.Routes))
		copy(out.Routes, c.Routes)
	}
	out.Extra = cloneAnyMap(c.Extra)
	return out
}

// NodeData is the user-facing payload of a node.
type NodeData struct {
	// Title is unique within the graph and identifier-like.
	Title string `json:"title"`
	// Color is the visual tag color (hex).
	Color string `json:"color,omitempty"`
	// Acronym is the visual tag shorthand.
	Acronym string `json:"acronym,omitempty"`
	// Config is the node configuration.
	Config NodeConfig `json:"config"`
	// Run holds the node's last execution outputs keyed by output
	// schema key. Not part of the persisted document.
	Run map[string]any `json:"run,omitempty"`
	// Status is the node's last reported run status.
	Status RunStatus `json:"status,omitempty"`
}

// Clone returns a deep copy.
func (d NodeData) Clone() NodeData {
	out := d
	out.Config = d.Config.Clone()
	out.Run = cloneAnyMap(d.Run)
	return out
}

// Node is one vertex of the workflow graph.
type Node struct {
	// ID is unique within the graph.
	ID string `json:"id"`
	// Type references a catalog entry.
	Type string `json:"type"`
	// Position is the top-left coordinate, relative to the parent
	// group when ParentID is set.
	Position Position `json:"position"`
	// ParentID references the owning group node, if any.
	ParentID string `json:"parentId,omitempty"`
	// Measured is the rendered size, when known.
	Measured *Size `json:"measured,omitempty"`
	// Data is the node payload.
	Data NodeData `json:"data"`
}

// Clone returns a deep copy.
func (n Node) Clone() Node {
	out := n
	if n.Measured != nil {
		m := *n.Measured
		out.Measured = &m
	}
	out.Data = n.Data.Clone()
	return out
}

// Edge is a directed connection from a source node's output handle to
// a target node's input handle.
type Edge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	SourceHandle string         `json:"sourceHandle"`
	Target       string         `json:"target"`
	TargetHandle string         `json:"targetHandle"`
	Data         map[string]any `json:"data,omitempty"`
}

// Clone returns a deep copy.
func (e Edge) Clone() Edge {
	out := e
	out.Data = cloneAnyMap(e.Data)
	return out
}

// Touches reports whether the edge references the node on either side.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Connection is a requested edge, before validation and id assignment.
type Connection struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// Snapshot is a deep copy of the graph used for undo/redo.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// cloneStringMap deep-copies a string map; nil stays nil.
func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneAnyMap deep-copies a map of JSON-shaped values; nil stays nil.
func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies JSON-shaped values (maps, slices, scalars).
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneAnyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
