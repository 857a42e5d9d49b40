package dispatcher

import (
	"context"

	"go.uber.org/zap"

	"invitegate/internal/model"
	"invitegate/internal/pkg/logger"
	"invitegate/internal/pkg/workerpool"
)

// HandlerFunc processes one event. Handlers run on the worker pool and
// contain their own failures; a panic is recovered by the pool and the
// process continues.
type HandlerFunc func(ctx context.Context, ev model.Event)

// Dispatcher routes events from whichever source adapter is active to
// the handler registered for the event type, fanning work out on a
// bounded pool. The table is fixed at wiring time: On is not safe to
// call once sources start delivering.
type Dispatcher struct {
	handlers map[model.EventType]HandlerFunc
	pool     *workerpool.Pool
	logger   *logger.Logger
}

// New creates a dispatcher with an empty handler table.
func New(pool *workerpool.Pool, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[model.EventType]HandlerFunc),
		pool:     pool,
		logger:   log,
	}
}

// On registers the handler for an event type, replacing any previous one.
func (d *Dispatcher) On(t model.EventType, h HandlerFunc) {
	d.handlers[t] = h
}

// Dispatch hands the event to its handler on the pool. Every event gets
// its own trace ID so the log lines of one handling pass correlate.
// Events without a registered handler are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.Event) {
	handler, ok := d.handlers[ev.Type]
	if !ok {
		d.logger.Debug("no handler for event", zap.String("type", string(ev.Type)))
		return
	}

	ctx = logger.WithTraceID(ctx, "")
	d.pool.Submit(func() {
		handler(ctx, ev)
	})
}
