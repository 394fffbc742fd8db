// Package run coordinates partial workflow execution against an
// external run backend.
//
// A partial run executes a single node using cached outputs from
// earlier runs instead of re-running the whole graph. The coordinator
// assembles the request from the store's workflow input variables and
// each node's last stored output, dispatches it to the backend, and
// polls the run's status until it reaches a terminal state. Completed
// outputs are written back into the store and the run node is selected
// so its output is visible.
//
// Starting a new run supersedes any run still polling: late responses
// for superseded runs are discarded, never applied.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/condition"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/observability"
)

var (
	// ErrRunFailed indicates the backend reported a terminal failure.
	// The graph is not mutated.
	ErrRunFailed = errors.New("run failed")

	// ErrSuperseded indicates a newer run started while this one was
	// polling; its responses were discarded.
	ErrSuperseded = errors.New("run superseded by a newer run")

	// ErrNotARouter indicates a branch query against a non-router node.
	ErrNotARouter = errors.New("node is not a router")
)

// StartRequest is the payload of a partial-run dispatch.
type StartRequest struct {
	// NodeID is the node to execute.
	NodeID string `json:"node_id"`

	// InitialInputs are the workflow input variable values.
	InitialInputs map[string]any `json:"initial_inputs"`

	// PartialOutputs are cached outputs by node id from earlier runs,
	// letting the backend skip already-computed predecessors.
	PartialOutputs map[string]map[string]any `json:"partial_outputs"`

	// RerunPredecessors forces upstream nodes to re-execute even when
	// cached outputs exist.
	RerunPredecessors bool `json:"rerun_predecessors"`
}

// NodeResult is one node's outcome within a run.
type NodeResult struct {
	Status canvasgraph.RunStatus `json:"status"`
	Output map[string]any        `json:"output"`
}

// StatusResponse is the backend's answer to a status poll.
type StatusResponse struct {
	Status  canvasgraph.RunStatus `json:"status"`
	Outputs map[string]NodeResult `json:"outputs"`
}

// Backend is the external run service.
type Backend interface {
	// StartRun dispatches a partial run and returns its run id.
	StartRun(ctx context.Context, workflowID string, req StartRequest) (string, error)

	// RunStatus fetches the current status of a run.
	RunStatus(ctx context.Context, runID string) (StatusResponse, error)
}

// Coordinator orchestrates partial runs for one editor session.
type Coordinator struct {
	store      *canvasgraph.Store
	backend    Backend
	workflowID string

	pollInterval time.Duration
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
	evaluator    *condition.Evaluator

	// genToken identifies the latest run. Replaced (and the old token
	// invalidated) whenever a new run starts, so in-flight polls for
	// older runs discard their responses.
	genMu    sync.Mutex
	genToken *generationToken
}

// generationToken identifies one run attempt.
type generationToken struct {
	cancelled chan struct{}
	once      sync.Once
}

func (t *generationToken) invalidate() {
	t.once.Do(func() { close(t.cancelled) })
}

func (t *generationToken) stale() bool {
	select {
	case <-t.cancelled:
		return true
	default:
		return false
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPollInterval sets the status polling period.
// Default: 1 second.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpans sets the span manager. Default: no-op.
func WithSpans(s observability.SpanManager) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.spans = s
		}
	}
}

// NewCoordinator creates a coordinator for the workflow.
func NewCoordinator(store *canvasgraph.Store, backend Backend, workflowID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		backend:      backend,
		workflowID:   workflowID,
		pollInterval: time.Second,
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
		evaluator:    condition.NewEvaluator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunPartial executes a single node with cached upstream outputs and
// blocks until the run reaches a terminal status, the context is
// cancelled, or a newer run supersedes it.
//
// On completion every returned node output is merged into the store
// and the run node is selected. On failure the graph is left
// untouched and the error is surfaced.
func (c *Coordinator) RunPartial(ctx context.Context, nodeID string, rerunPredecessors bool) (map[string]NodeResult, error) {
	if _, ok := c.store.Node(nodeID); !ok {
		return nil, canvasgraph.ErrNodeNotFound
	}

	token := c.supersede()

	ctx, span := c.spans.StartRunSpan(ctx, c.workflowID, nodeID)
	var err error
	defer func() { c.spans.EndSpanWithError(span, err) }()

	req := StartRequest{
		NodeID:            nodeID,
		InitialInputs:     c.store.WorkflowInputVariables(),
		PartialOutputs:    c.cachedOutputs(),
		RerunPredecessors: rerunPredecessors,
	}

	var runID string
	runID, err = c.backend.StartRun(ctx, c.workflowID, req)
	if err != nil {
		err = fmt.Errorf("start run: %w", err)
		return nil, err
	}
	observability.LogRunStart(c.logger, runID, nodeID)
	start := time.Now()

	var resp StatusResponse
	resp, err = c.poll(ctx, runID, token)
	if err != nil {
		observability.LogRunError(c.logger, runID, err)
		return nil, err
	}

	if resp.Status == canvasgraph.RunStatusFailed {
		err = fmt.Errorf("%w: run %s", ErrRunFailed, runID)
		observability.LogRunError(c.logger, runID, err)
		return nil, err
	}

	c.applyOutputs(nodeID, resp.Outputs)
	observability.LogRunComplete(c.logger, runID,
		float64(time.Since(start).Microseconds())/1000.0, len(resp.Outputs))
	return resp.Outputs, nil
}

// Supersede invalidates the in-flight run, if any, without starting a
// new one. Use on editor teardown so no late poll mutates state.
func (c *Coordinator) Supersede() {
	c.supersede()
}

func (c *Coordinator) supersede() *generationToken {
	c.genMu.Lock()
	defer c.genMu.Unlock()

	if c.genToken != nil {
		c.genToken.invalidate()
	}
	c.genToken = &generationToken{cancelled: make(chan struct{})}
	return c.genToken
}

// poll queries the backend until a terminal status. Each response is
// checked against the run's generation token: responses arriving after
// a newer run started are discarded.
func (c *Coordinator) poll(ctx context.Context, runID string, token *generationToken) (StatusResponse, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.backend.RunStatus(ctx, runID)
		stale := token.stale()
		c.metrics.RecordRunPoll(ctx, stale)
		if stale {
			observability.LogStaleRunResponse(c.logger, runID)
			return StatusResponse{}, ErrSuperseded
		}
		if err != nil {
			return StatusResponse{}, fmt.Errorf("poll run %s: %w", runID, err)
		}
		if resp.Status.Terminal() {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return StatusResponse{}, ctx.Err()
		case <-token.cancelled:
			observability.LogStaleRunResponse(c.logger, runID)
			return StatusResponse{}, ErrSuperseded
		case <-ticker.C:
		}
	}
}

// ActiveRoute evaluates a router node's branch predicates against the
// workflow inputs and every cached run output, returning the id of the
// taken branch. The environment exposes each node's output under both
// its id and its title, plus the workflow input variables at top
// level. Returns ok=false when no branch matches.
func (c *Coordinator) ActiveRoute(nodeID string) (string, bool, error) {
	n, ok := c.store.Node(nodeID)
	if !ok {
		return "", false, canvasgraph.ErrNodeNotFound
	}
	if n.Type != canvasgraph.RouterNodeType {
		return "", false, fmt.Errorf("%w: %s is %s", ErrNotARouter, nodeID, n.Type)
	}

	env := make(map[string]any)
	for k, v := range c.store.WorkflowInputVariables() {
		env[k] = v
	}
	for _, node := range c.store.Nodes() {
		if len(node.Data.Run) == 0 {
			continue
		}
		env[node.ID] = node.Data.Run
		if node.Data.Title != "" {
			env[node.Data.Title] = node.Data.Run
		}
	}
	return c.evaluator.ActiveRoute(n.Data.Config.Routes, env)
}

// cachedOutputs collects every node's last stored run output.
func (c *Coordinator) cachedOutputs() map[string]map[string]any {
	outputs := make(map[string]map[string]any)
	for _, n := range c.store.Nodes() {
		if len(n.Data.Run) > 0 {
			outputs[n.ID] = n.Data.Run
		}
	}
	return outputs
}

// applyOutputs writes fresh outputs into the store and selects the run
// node so its output is visible.
func (c *Coordinator) applyOutputs(runNodeID string, outputs map[string]NodeResult) {
	for id, result := range outputs {
		status := result.Status
		if status == "" {
			status = canvasgraph.RunStatusCompleted
		}
		_ = c.store.UpdateNodeData(id, canvasgraph.DataPatch{
			Run:    result.Output,
			Status: canvasgraph.Status(status),
		})
	}
	_ = c.store.Select(runNodeID)
}
