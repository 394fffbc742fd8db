// Package layout computes deterministic layered positions for a
// workflow graph.
//
// Nodes are ranked along the flow direction by longest path from the
// roots, ordered on the cross axis by a weighted barycenter of their
// predecessors, and spaced by their measured sizes. Edge weights start
// at a large constant on the roots and halve per hop, so edges near
// the roots pull connected nodes together on the cross axis more
// strongly than deep ones. The same graph with the same measured sizes
// always yields the same positions.
package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/observability"
)

// ErrCycle indicates the graph cannot be layered because its edges
// form a cycle. The graph is left untouched; layout never restructures
// edges.
var ErrCycle = errors.New("graph contains a cycle")

// Direction is the rank direction of the layout.
type Direction string

const (
	LeftRight Direction = "LR"
	RightLeft Direction = "RL"
	TopBottom Direction = "TB"
	BottomTop Direction = "BT"
)

const (
	// rootWeight is assigned to every node with no incoming edges.
	// Each outgoing edge carries half its node's weight.
	rootWeight = 1024.0

	// minWeight floors edge and node weights so deep chains never
	// degenerate to zero.
	minWeight = 1.0

	// DefaultLayerGap separates consecutive ranks, in canvas units.
	DefaultLayerGap = 120.0

	// DefaultNodeGap separates nodes within a rank on the cross axis.
	DefaultNodeGap = 60.0
)

// Engine computes layered layouts.
type Engine struct {
	direction Direction
	layerGap  float64
	nodeGap   float64

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// Option configures an Engine.
type Option func(*Engine)

// WithDirection sets the rank direction. Default: LeftRight.
func WithDirection(d Direction) Option {
	return func(e *Engine) { e.direction = d }
}

// WithLayerGap sets the gap between consecutive ranks.
func WithLayerGap(gap float64) Option {
	return func(e *Engine) {
		if gap > 0 {
			e.layerGap = gap
		}
	}
}

// WithNodeGap sets the cross-axis gap between nodes of the same rank.
func WithNodeGap(gap float64) Option {
	return func(e *Engine) {
		if gap > 0 {
			e.nodeGap = gap
		}
	}
}

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithSpans sets the span manager. Default: no-op.
func WithSpans(s observability.SpanManager) Option {
	return func(e *Engine) {
		if s != nil {
			e.spans = s
		}
	}
}

// NewEngine creates a layout engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		direction: LeftRight,
		layerGap:  DefaultLayerGap,
		nodeGap:   DefaultNodeGap,
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// vertex is the per-node working state of one layout pass.
type vertex struct {
	id     string
	size   canvasgraph.Size
	weight float64
	rank   int

	// cross-axis order within the rank
	order      int
	barycenter float64

	// center-based coordinates along the rank axis / cross axis
	axis  float64
	cross float64
}

// Layout computes top-left positions for every node. Edges referencing
// missing nodes are ignored; group containers are positioned like any
// other node.
func (e *Engine) Layout(ctx context.Context, nodes []canvasgraph.Node, edges []canvasgraph.Edge) (map[string]canvasgraph.Position, error) {
	ctx, span := e.spans.StartLayoutSpan(ctx, len(nodes), len(edges))
	start := time.Now()

	positions, err := e.compute(nodes, edges)

	e.metrics.RecordLayout(ctx, time.Since(start), err)
	e.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogLayoutError(e.logger, err)
		return nil, err
	}
	observability.LogLayoutComplete(e.logger, len(nodes), float64(time.Since(start).Microseconds())/1000.0)
	return positions, nil
}

// Apply lays out the store's current graph and writes the positions
// back as a single undoable edit. On cycle error the store is left
// untouched.
func (e *Engine) Apply(ctx context.Context, s *canvasgraph.Store) error {
	positions, err := e.Layout(ctx, s.Nodes(), s.Edges())
	if err != nil {
		return err
	}
	s.SetPositions(positions)
	return nil
}

func (e *Engine) compute(nodes []canvasgraph.Node, edges []canvasgraph.Edge) (map[string]canvasgraph.Position, error) {
	if len(nodes) == 0 {
		return map[string]canvasgraph.Position{}, nil
	}

	verts := make([]*vertex, len(nodes))
	byID := make(map[string]*vertex, len(nodes))
	for i, n := range nodes {
		v := &vertex{id: n.ID, size: sizeOf(n)}
		verts[i] = v
		byID[n.ID] = v
	}

	// Parallel edges between the same pair collapse to one arc for
	// ranking and ordering purposes.
	type arc struct{ from, to *vertex }
	var arcs []arc
	seen := make(map[[2]string]struct{}, len(edges))
	for _, edge := range edges {
		from, ok := byID[edge.Source]
		if !ok {
			continue
		}
		to, ok := byID[edge.Target]
		if !ok {
			continue
		}
		key := [2]string{edge.Source, edge.Target}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		arcs = append(arcs, arc{from: from, to: to})
	}

	succ := make(map[*vertex][]*vertex, len(verts))
	pred := make(map[*vertex][]*vertex, len(verts))
	inDegree := make(map[*vertex]int, len(verts))
	for _, a := range arcs {
		succ[a.from] = append(succ[a.from], a.to)
		pred[a.to] = append(pred[a.to], a.from)
		inDegree[a.to]++
	}

	// Kahn's algorithm; the frontier stays id-sorted so the topological
	// order (and everything derived from it) is deterministic.
	var frontier []*vertex
	for _, v := range verts {
		if inDegree[v] == 0 {
			frontier = append(frontier, v)
		}
	}
	sortByID(frontier)

	topo := make([]*vertex, 0, len(verts))
	remaining := make(map[*vertex]int, len(verts))
	for v, d := range inDegree {
		remaining[v] = d
	}
	for len(frontier) > 0 {
		v := frontier[0]
		frontier = frontier[1:]
		topo = append(topo, v)

		var released []*vertex
		for _, next := range succ[v] {
			remaining[next]--
			if remaining[next] == 0 {
				released = append(released, next)
			}
		}
		sortByID(released)
		frontier = mergeByID(frontier, released)
	}
	if len(topo) != len(verts) {
		return nil, fmt.Errorf("%w: %d of %d nodes unreachable in topological order", ErrCycle, len(verts)-len(topo), len(verts))
	}

	// Weights and ranks resolve in topological order: every
	// predecessor is settled before its successors.
	for _, v := range topo {
		if len(pred[v]) == 0 {
			v.weight = rootWeight
			v.rank = 0
			continue
		}
		v.weight = minWeight
		v.rank = 0
		for _, p := range pred[v] {
			if w := edgeWeight(p.weight); w > v.weight {
				v.weight = w
			}
			if p.rank+1 > v.rank {
				v.rank = p.rank + 1
			}
		}
	}

	maxRank := 0
	for _, v := range verts {
		if v.rank > maxRank {
			maxRank = v.rank
		}
	}
	ranks := make([][]*vertex, maxRank+1)
	for _, v := range topo {
		ranks[v.rank] = append(ranks[v.rank], v)
	}

	// Cross-axis ordering: rank 0 by id, deeper ranks by the weighted
	// barycenter of their predecessors' orders. Heavier edges dominate
	// the average, pulling the node toward its most-rooted parent.
	sortByID(ranks[0])
	for i, v := range ranks[0] {
		v.order = i
	}
	for r := 1; r <= maxRank; r++ {
		for _, v := range ranks[r] {
			var weightSum, posSum float64
			for _, p := range pred[v] {
				w := edgeWeight(p.weight)
				weightSum += w
				posSum += w * float64(p.order)
			}
			if weightSum > 0 {
				v.barycenter = posSum / weightSum
			}
		}
		sort.SliceStable(ranks[r], func(i, j int) bool {
			a, b := ranks[r][i], ranks[r][j]
			if a.barycenter != b.barycenter {
				return a.barycenter < b.barycenter
			}
			return a.id < b.id
		})
		for i, v := range ranks[r] {
			v.order = i
		}
	}

	e.assignCoordinates(ranks)

	// Solver coordinates are node centers; canvas positions are
	// top-left corners.
	positions := make(map[string]canvasgraph.Position, len(verts))
	for _, v := range verts {
		x, y := e.orient(v)
		positions[v.id] = canvasgraph.Position{
			X: x - v.size.Width/2,
			Y: y - v.size.Height/2,
		}
	}
	return positions, nil
}

// assignCoordinates places rank centers along the rank axis, spaced by
// the thickest node of each rank, and stacks each rank's nodes on the
// cross axis centered around zero.
func (e *Engine) assignCoordinates(ranks [][]*vertex) {
	axis := 0.0
	for r, rank := range ranks {
		thickness := 0.0
		for _, v := range rank {
			if t := e.rankExtent(v.size); t > thickness {
				thickness = t
			}
		}
		if r > 0 {
			axis += thickness/2 + e.layerGap
		} else {
			axis = thickness / 2
		}

		total := 0.0
		for i, v := range rank {
			if i > 0 {
				total += e.nodeGap
			}
			total += e.crossExtent(v.size)
		}

		cursor := -total / 2
		for _, v := range rank {
			extent := e.crossExtent(v.size)
			v.axis = axis
			v.cross = cursor + extent/2
			cursor += extent + e.nodeGap
		}

		axis += thickness / 2
	}
}

// rankExtent is the node's size along the rank axis.
func (e *Engine) rankExtent(s canvasgraph.Size) float64 {
	if e.horizontal() {
		return s.Width
	}
	return s.Height
}

// crossExtent is the node's size across the rank axis.
func (e *Engine) crossExtent(s canvasgraph.Size) float64 {
	if e.horizontal() {
		return s.Height
	}
	return s.Width
}

func (e *Engine) horizontal() bool {
	return e.direction == LeftRight || e.direction == RightLeft
}

// orient maps (axis, cross) center coordinates onto canvas (x, y) for
// the configured direction.
func (e *Engine) orient(v *vertex) (x, y float64) {
	switch e.direction {
	case RightLeft:
		return -v.axis, v.cross
	case TopBottom:
		return v.cross, v.axis
	case BottomTop:
		return v.cross, -v.axis
	default:
		return v.axis, v.cross
	}
}

// edgeWeight is the weight an edge leaving a node of the given weight
// carries: half, floored at minWeight.
func edgeWeight(nodeWeight float64) float64 {
	w := nodeWeight / 2
	if w < minWeight {
		return minWeight
	}
	return w
}

// sizeOf returns the node's measured size, or the store's default.
func sizeOf(n canvasgraph.Node) canvasgraph.Size {
	if n.Measured != nil {
		return *n.Measured
	}
	return canvasgraph.DefaultSize
}

func sortByID(vs []*vertex) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].id < vs[j].id })
}

// mergeByID merges two id-sorted slices, preserving order.
func mergeByID(a, b []*vertex) []*vertex {
	if len(b) == 0 {
		return a
	}
	out := make([]*vertex, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].id <= b[j].id {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
