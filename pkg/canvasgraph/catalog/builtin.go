package catalog

import (
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
)

// Builtin returns the standard node type catalog.
//
// Group nodes are absent on purpose: they are created by the store's
// grouping operation, never dropped from a toolbox.
func Builtin() Catalog {
	c, err := New(map[string][]Descriptor{
		"primitives": {
			{
				Name:   canvasgraph.InputNodeType,
				Visual: VisualTag{Color: "#2196F3", Acronym: "IN"},
				Config: canvasgraph.NodeConfig{
					OutputSchema: map[string]string{},
				},
			},
			{
				Name:   canvasgraph.OutputNodeType,
				Visual: VisualTag{Color: "#4CAF50", Acronym: "OUT"},
				Config: canvasgraph.NodeConfig{
					InputSchema:  map[string]string{},
					OutputSchema: map[string]string{},
				},
			},
		},
		"llm": {
			{
				Name:   "SingleLLMCallNode",
				Visual: VisualTag{Color: "#F44336", Acronym: "LLM"},
				Config: canvasgraph.NodeConfig{
					InputSchema:   map[string]string{},
					OutputSchema:  map[string]string{"response": "string"},
					SystemMessage: "You are a helpful assistant.",
					UserMessage:   "",
					Extra: map[string]any{
						"llm_info": map[string]any{
							"model":       "gpt-4o",
							"temperature": 0.7,
							"max_tokens":  16384,
						},
					},
				},
			},
		},
		"logic": {
			{
				Name:   canvasgraph.RouterNodeType,
				Visual: VisualTag{Color: "#FF9800", Acronym: "RTR"},
				Config: canvasgraph.NodeConfig{
					InputSchema: map[string]string{},
					Routes: []canvasgraph.Route{
						{ID: "route_1", Expression: ""},
					},
				},
			},
			{
				Name:   "CoalesceNode",
				Visual: VisualTag{Color: "#9C27B0", Acronym: "CLS"},
				Config: canvasgraph.NodeConfig{
					InputSchema:  map[string]string{},
					OutputSchema: map[string]string{},
				},
			},
			{
				Name:   "MergeNode",
				Visual: VisualTag{Color: "#607D8B", Acronym: "MRG"},
				Config: canvasgraph.NodeConfig{
					InputSchema:  map[string]string{},
					OutputSchema: map[string]string{},
				},
			},
		},
		"code": {
			{
				Name:   "CodeNode",
				Visual: VisualTag{Color: "#795548", Acronym: "COD"},
				Config: canvasgraph.NodeConfig{
					InputSchema:  map[string]string{},
					OutputSchema: map[string]string{"output": "string"},
					Code:         "def run(input):\n    return {\"output\": \"\"}\n",
				},
			},
		},
	})
	if err != nil {
		// Builtin descriptors are compiled in; a duplicate here is a
		// programming error.
		panic(err)
	}
	return c
}
