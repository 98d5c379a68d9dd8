package webhook

import (
	"context"
	"sync"

	"github.com/brizzai/insta-auth/internal/logger"
	"go.uber.org/zap"
)

// ChangeHandler processes one change of one entry.
type ChangeHandler func(ctx context.Context, entry Entry, change Change) error

// Dispatcher routes changes to the handlers registered for their field.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]ChangeHandler
	log      *zap.Logger
}

// NewDispatcher creates a dispatcher that logs every subscribed field.
func NewDispatcher(log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		handlers: map[string][]ChangeHandler{},
		log:      logger.OrNop(log).Named("webhook.events"),
	}
	for _, field := range SubscribedFields {
		d.Register(field, d.logChange)
	}
	return d
}

// Register adds h for field.
func (d *Dispatcher) Register(field string, h ChangeHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[field] = append(d.handlers[field], h)
}

// Dispatch runs the handlers for every change of n. Handler errors are
// logged and do not stop the remaining changes.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) {
	for _, entry := range n.Entry {
		d.log.Info("Processing entry", zap.String("user_id", entry.ID), zap.Int64("time", entry.Time))

		for _, change := range entry.Changes {
			d.mu.RLock()
			handlers := d.handlers[change.Field]
			d.mu.RUnlock()

			if len(handlers) == 0 {
				d.log.Warn("Unhandled webhook field", zap.String("field", change.Field))
				continue
			}
			for _, h := range handlers {
				if err := h(ctx, entry, change); err != nil {
					d.log.Error("Webhook handler failed",
						zap.String("field", change.Field),
						zap.String("user_id", entry.ID),
						zap.Error(err),
					)
				}
			}
		}
	}
}

func (d *Dispatcher) logChange(_ context.Context, entry Entry, change Change) error {
	d.log.Info("Change received",
		zap.String("field", change.Field),
		zap.String("user_id", entry.ID),
		zap.ByteString("value", change.Value),
	)
	return nil
}
