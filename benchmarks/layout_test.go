package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/layout"
)

// buildFanGraph creates layers×width nodes where every node feeds every
// node of the next layer.
func buildFanGraph(layers, width int) ([]canvasgraph.Node, []canvasgraph.Edge) {
	var nodes []canvasgraph.Node
	var edges []canvasgraph.Edge
	id := func(layer, i int) string {
		return nodeID(layer*width + i)
	}
	for l := 0; l < layers; l++ {
		for i := 0; i < width; i++ {
			nodes = append(nodes, canvasgraph.Node{
				ID:       id(l, i),
				Type:     "SingleLLMCallNode",
				Measured: &canvasgraph.Size{Width: 160, Height: 60},
				Data:     canvasgraph.NodeData{Title: id(l, i)},
			})
			if l == 0 {
				continue
			}
			for p := 0; p < width; p++ {
				edges = append(edges, canvasgraph.Edge{
					ID:     id(l-1, p) + ">" + id(l, i),
					Source: id(l-1, p), SourceHandle: "out",
					Target: id(l, i), TargetHandle: "in",
				})
			}
		}
	}
	return nodes, edges
}

// BenchmarkLayout_Chain100 measures a 100-node linear chain.
func BenchmarkLayout_Chain100(b *testing.B) {
	nodes, edges := buildFanGraph(100, 1)
	engine := layout.NewEngine()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Layout(context.Background(), nodes, edges); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLayout_Fan10x10 measures 10 layers of 10 fully connected.
func BenchmarkLayout_Fan10x10(b *testing.B) {
	nodes, edges := buildFanGraph(10, 10)
	engine := layout.NewEngine()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Layout(context.Background(), nodes, edges); err != nil {
			b.Fatal(err)
		}
	}
}
