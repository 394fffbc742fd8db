package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
)

func TestBuiltin(t *testing.T) {
	c := Builtin()

	for _, typeName := range []string{
		canvasgraph.InputNodeType,
		canvasgraph.OutputNodeType,
		"SingleLLMCallNode",
		canvasgraph.RouterNodeType,
		"CoalesceNode",
		"MergeNode",
		"CodeNode",
	} {
		_, ok := c.Lookup(typeName)
		assert.True(t, ok, typeName)
	}

	_, ok := c.Lookup(canvasgraph.GroupNodeType)
	assert.False(t, ok, "group nodes are not toolbox types")

	assert.Equal(t, []string{"code", "llm", "logic", "primitives"}, c.Categories())
}

func TestNew(t *testing.T) {
	t.Run("rejects duplicate type names across categories", func(t *testing.T) {
		_, err := New(map[string][]Descriptor{
			"a": {{Name: "Thing"}},
			"b": {{Name: "Thing"}},
		})
		assert.ErrorIs(t, err, ErrDuplicateType)
	})

	t.Run("descriptors are copied per category", func(t *testing.T) {
		descs := []Descriptor{{Name: "Thing"}}
		c, err := New(map[string][]Descriptor{"a": descs})
		require.NoError(t, err)

		descs[0].Name = "Mutated"
		got := c.Descriptors("a")
		require.Len(t, got, 1)
		assert.Equal(t, "Thing", got[0].Name)
	})
}

func TestLoadJSON(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		doc := `{
			"custom": [
				{
					"name": "SummarizeNode",
					"visual_tag": {"color": "#123456", "acronym": "SUM"},
					"config": {
						"input_schema": {"text": "string"},
						"output_schema": {"summary": "string"},
						"user_message": "Summarize: {{text}}"
					}
				}
			]
		}`

		c, err := LoadJSON([]byte(doc))
		require.NoError(t, err)

		d, ok := c.Lookup("SummarizeNode")
		require.True(t, ok)
		assert.Equal(t, "SUM", d.Visual.Acronym)
		assert.Equal(t, "string", d.Config.InputSchema["text"])
		assert.Equal(t, "Summarize: {{text}}", d.Config.UserMessage)
	})

	t.Run("missing name fails validation", func(t *testing.T) {
		_, err := LoadJSON([]byte(`{"custom": [{"visual_tag": {"color": "#fff"}}]}`))
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})

	t.Run("wrong shape fails validation", func(t *testing.T) {
		_, err := LoadJSON([]byte(`{"custom": {"name": "not-a-list"}}`))
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadJSON([]byte(`{`))
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})
}

func TestLoadYAML(t *testing.T) {
	doc := `
custom:
  - name: SummarizeNode
    visual_tag:
      color: "#123456"
      acronym: SUM
    config:
      input_schema:
        text: string
      output_schema:
        summary: string
`
	c, err := LoadYAML([]byte(doc))
	require.NoError(t, err)

	d, ok := c.Lookup("SummarizeNode")
	require.True(t, ok)
	assert.Equal(t, "#123456", d.Visual.Color)
	assert.Equal(t, "string", d.Config.OutputSchema["summary"])
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := dir + "/catalog.json"
	yamlPath := dir + "/catalog.yaml"
	writeFile(t, jsonPath, `{"custom": [{"name": "A"}]}`)
	writeFile(t, yamlPath, "custom:\n  - name: B\n")

	c, err := LoadFile(jsonPath)
	require.NoError(t, err)
	_, ok := c.Lookup("A")
	assert.True(t, ok)

	c, err = LoadFile(yamlPath)
	require.NoError(t, err)
	_, ok = c.Lookup("B")
	assert.True(t, ok)

	_, err = LoadFile(dir + "/missing.json")
	assert.Error(t, err)
}
