package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gate/internal/events"
	"github.com/spec-kit/auth-gate/internal/service"
)

var (
	// ErrQueueFull is returned to the publisher when an event is dropped.
	ErrQueueFull = errors.New("audit queue full")
	// ErrWorkerStopped is returned for events published after shutdown began.
	ErrWorkerStopped = errors.New("audit worker stopped")
)

const defaultQueueSize = 256

// AuditWorker delivers audit events off the request path. Publishing only
// enqueues; a single goroutine writes them to the audit service in order.
type AuditWorker struct {
	audit  *service.AuditService
	logger *zap.Logger
	queue  chan events.Event
	done   chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// NewAuditWorker creates a worker with room for queueSize pending events.
func NewAuditWorker(audit *service.AuditService, logger *zap.Logger, queueSize int) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &AuditWorker{
		audit:  audit,
		logger: logger,
		queue:  make(chan events.Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Start subscribes to the audited events and runs delivery until ctx ends.
// Events already queued at that point are still delivered before Done closes.
func (w *AuditWorker) Start(ctx context.Context, dispatcher events.Dispatcher) {
	for _, eventType := range w.audit.EventTypes() {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
	go w.run(ctx)
}

// Done is closed once the worker has drained its queue after shutdown.
func (w *AuditWorker) Done() <-chan struct{} {
	return w.done
}

func (w *AuditWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrWorkerStopped
	}
	select {
	case w.queue <- event:
		return nil
	default:
		w.logger.Warn("audit event dropped", zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
		return ErrQueueFull
	}
}

func (w *AuditWorker) run(ctx context.Context) {
	defer close(w.done)
	deliveryCtx := context.WithoutCancel(ctx)

	for {
		select {
		case event := <-w.queue:
			w.deliver(deliveryCtx, event)
		case <-ctx.Done():
			w.mu.Lock()
			w.stopped = true
			w.mu.Unlock()

			for {
				select {
				case event := <-w.queue:
					w.deliver(deliveryCtx, event)
				default:
					return
				}
			}
		}
	}
}

func (w *AuditWorker) deliver(ctx context.Context, event events.Event) {
	if err := w.audit.Handle(ctx, event); err != nil {
		w.logger.Error("audit delivery failed", zap.String("event_id", event.ID), zap.Error(err))
	}
}
