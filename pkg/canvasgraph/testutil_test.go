package canvasgraph

// Shared test fixtures for the store tests.

// newInputNode returns an input node exposing the given output keys as
// string-typed handles.
func newInputNode(id string, keys ...string) Node {
	schema := make(map[string]string, len(keys))
	for _, k := range keys {
		schema[k] = "string"
	}
	return Node{
		ID:   id,
		Type: InputNodeType,
		Data: NodeData{
			Title: "input_" + id,
			Config: NodeConfig{
				OutputSchema: schema,
			},
		},
	}
}

// newLLMNode returns an LLM node with empty schemas and a prompt
// template.
func newLLMNode(id, userMessage string) Node {
	return Node{
		ID:   id,
		Type: "SingleLLMCallNode",
		Data: NodeData{
			Title: "llm_" + id,
			Config: NodeConfig{
				InputSchema:  map[string]string{},
				OutputSchema: map[string]string{"response": "string"},
				UserMessage:  userMessage,
			},
		},
	}
}

// mustAdd adds a node to the store, panicking on failure.
func mustAdd(s *Store, n Node) Node {
	added, err := s.AddNode(n)
	if err != nil {
		panic(err)
	}
	return added
}
