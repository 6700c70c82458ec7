package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"recibo/internal/logger"
	"recibo/pkg/errors"
	"recibo/pkg/logging"
	"recibo/pkg/metrics"
)

// Processor runs one raw payload to its terminal outcome.
type Processor interface {
	Process(ctx context.Context, raw map[string]interface{}) string
}

// Dispatcher runs pipelines in the background so the webhook handler can
// acknowledge immediately. Capacity is bounded; when all slots are taken,
// Submit refuses instead of queueing, and the gateway retries later.
type Dispatcher struct {
	processor    Processor
	slots        *semaphore.Weighted
	eventTimeout time.Duration
	logger       logger.Logger
	wg           sync.WaitGroup
}

func NewDispatcher(processor Processor, maxInFlight int64, eventTimeout time.Duration, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		processor:    processor,
		slots:        semaphore.NewWeighted(maxInFlight),
		eventTimeout: eventTimeout,
		logger:       log,
	}
}

// Submit starts a background pipeline for the payload. It returns false when
// every slot is busy; the payload is not processed in that case.
func (d *Dispatcher) Submit(raw map[string]interface{}) bool {
	if !d.slots.TryAcquire(1) {
		return false
	}

	d.wg.Add(1)
	go d.run(raw)
	return true
}

func (d *Dispatcher) run(raw map[string]interface{}) {
	defer d.wg.Done()
	defer d.slots.Release(1)

	// Pipelines outlive the webhook request, so they get their own context
	// bounded only by the per-event deadline.
	ctx, cancel := context.WithTimeout(context.Background(), d.eventTimeout)
	defer cancel()

	ctx = logging.WithEventID(ctx, uuid.NewString())

	metrics.PipelinesInFlight.Inc()
	defer metrics.PipelinesInFlight.Dec()

	start := time.Now()
	outcome := "panic"

	defer func() {
		if err := errors.RecoverPanic(recover()); err != nil {
			d.logger.ErrorwCtx(ctx, "Pipeline panicked", "error", err)
		}
		metrics.PipelineOutcomesTotal.WithLabelValues(outcome).Inc()
		metrics.ObservePipelineDuration(time.Since(start), outcome)
		d.logger.InfowCtx(ctx, "Pipeline finished", "outcome", outcome, "duration_ms", time.Since(start).Milliseconds())
	}()

	outcome = d.processor.Process(ctx, raw)
}

// Drain waits for in-flight pipelines to finish or the context to expire.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
