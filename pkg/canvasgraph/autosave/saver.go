package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/event"
	"github.com/randalmurphal/canvasgraph/pkg/canvasgraph/observability"
)

// DefaultInterval is the debounce idle window before edits flush.
const DefaultInterval = 3 * time.Second

// Saver flushes the graph to the persistence service after edits go
// idle. Wire it to the store's event bus with Watch, or drive it
// manually with Trigger/Flush. Persistence failures are logged and
// surfaced on explicit Flush; in-memory state is never rolled back.
type Saver struct {
	store      *canvasgraph.Store
	persister  Persister
	workflowID string

	interval time.Duration
	drafts   DraftStore
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager

	debouncer *Debouncer
	watchWG   sync.WaitGroup
	watchSub  *event.Subscription
	closeOnce sync.Once
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithInterval sets the debounce idle window. Default: DefaultInterval.
func WithInterval(d time.Duration) SaverOption {
	return func(s *Saver) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithDraftStore also saves a local draft revision on every flush.
func WithDraftStore(ds DraftStore) SaverOption {
	return func(s *Saver) { s.drafts = ds }
}

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) SaverOption {
	return func(s *Saver) { s.logger = logger }
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) SaverOption {
	return func(s *Saver) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSpans sets the span manager. Default: no-op.
func WithSpans(sm observability.SpanManager) SaverOption {
	return func(s *Saver) {
		if sm != nil {
			s.spans = sm
		}
	}
}

// NewSaver creates a saver for the workflow.
func NewSaver(store *canvasgraph.Store, persister Persister, workflowID string, opts ...SaverOption) *Saver {
	s := &Saver{
		store:      store,
		persister:  persister,
		workflowID: workflowID,
		interval:   DefaultInterval,
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debouncer = NewDebouncer(s.interval, func() {
		_ = s.flush(context.Background())
	})
	return s
}

// Watch subscribes to the bus and triggers the debouncer on every
// graph change until Close.
func (s *Saver) Watch(bus *event.Bus) {
	s.watchSub = bus.Subscribe()
	s.watchWG.Add(1)
	go func() {
		defer s.watchWG.Done()
		for range s.watchSub.C {
			s.debouncer.Trigger()
		}
	}()
}

// Trigger schedules a flush after the idle window, resetting any
// pending schedule.
func (s *Saver) Trigger() {
	s.debouncer.Trigger()
}

// Pending reports whether a flush is scheduled.
func (s *Saver) Pending() bool {
	return s.debouncer.Pending()
}

// Flush saves immediately, cancelling any pending schedule, and
// returns the persistence error, if any.
func (s *Saver) Flush(ctx context.Context) error {
	s.debouncer.Cancel()
	return s.flush(ctx)
}

// Close cancels pending flushes and stops watching. No background work
// mutates state after Close returns (a flush already in flight may
// still complete).
func (s *Saver) Close() {
	s.closeOnce.Do(func() {
		s.debouncer.Close()
		if s.watchSub != nil {
			s.watchSub.Unsubscribe()
		}
		s.watchWG.Wait()
	})
}

// flush serializes the graph and writes it to the persistence service
// and the draft store.
func (s *Saver) flush(ctx context.Context) error {
	ctx, span := s.spans.StartFlushSpan(ctx, s.workflowID)
	start := time.Now()

	doc := s.store.Serialize()
	err := s.persister.Persist(ctx, s.workflowID, doc)
	if err == nil && s.drafts != nil {
		_, err = s.drafts.Save(s.workflowID, doc)
	}

	elapsed := time.Since(start)
	s.metrics.RecordAutosave(ctx, elapsed, err)
	observability.LogAutosave(s.logger, s.workflowID, elapsed, err)
	s.spans.EndSpanWithError(span, err)
	return err
}
