// Package observability provides structured logging, metrics, and
// tracing for canvasgraph: store mutations, layout runs, partial
// executions, and autosave flushes.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every helper tolerates a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// LogMutation logs an applied store mutation.
func LogMutation(logger *slog.Logger, op, nodeID, edgeID string) {
	if logger == nil {
		return
	}
	logger.Debug("mutation applied",
		slog.String("op", op),
		slog.String("node_id", nodeID),
		slog.String("edge_id", edgeID),
	)
}

// LogMutationRejected logs a mutation that failed validation and was
// applied as a no-op.
func LogMutationRejected(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("mutation rejected",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

// LogEdgePruned logs defensive removal of an inconsistent edge.
func LogEdgePruned(logger *slog.Logger, edgeID, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("dangling edge pruned",
		slog.String("edge_id", edgeID),
		slog.String("reason", reason),
	)
}

// LogLayoutComplete logs a successful auto-layout pass.
func LogLayoutComplete(logger *slog.Logger, nodeCount int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("layout completed",
		slog.Int("nodes", nodeCount),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogLayoutError logs an auto-layout failure.
func LogLayoutError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("layout failed",
		slog.String("error", err.Error()),
	)
}

// LogRunStart logs the start of a partial run.
func LogRunStart(logger *slog.Logger, runID, nodeID string) {
	if logger == nil {
		return
	}
	logger.Info("partial run starting",
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
	)
}

// LogRunComplete logs successful partial run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, outputCount int) {
	if logger == nil {
		return
	}
	logger.Info("partial run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("node_outputs", outputCount),
	)
}

// LogRunError logs partial run failure.
func LogRunError(logger *slog.Logger, runID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("partial run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
	)
}

// LogStaleRunResponse logs a poll response discarded because a newer
// run superseded it.
func LogStaleRunResponse(logger *slog.Logger, runID string) {
	if logger == nil {
		return
	}
	logger.Debug("stale run response discarded",
		slog.String("run_id", runID),
	)
}

// LogAutosave logs an autosave flush attempt.
func LogAutosave(logger *slog.Logger, workflowID string, duration time.Duration, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("autosave failed",
			slog.String("workflow_id", workflowID),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("autosave flushed",
		slog.String("workflow_id", workflowID),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}
