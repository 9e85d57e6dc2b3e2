package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/uptownstitch/storefront/internal/cart"
	"github.com/uptownstitch/storefront/internal/domain"
	"github.com/uptownstitch/storefront/internal/service"
)

const (
	streamBuffer      = 32
	heartbeatInterval = 15 * time.Second
)

// EventsHandler streams a session's cart over Server-Sent Events.
type EventsHandler struct {
	service   *service.CartService
	logger    *slog.Logger
	heartbeat time.Duration
	done      <-chan struct{}
}

// NewEventsHandler returns a handler whose streams end when done closes.
// A nil done keeps streams open until the client leaves.
func NewEventsHandler(svc *service.CartService, logger *slog.Logger, done <-chan struct{}) *EventsHandler {
	return &EventsHandler{service: svc, logger: logger, heartbeat: heartbeatInterval, done: done}
}

// Stream handles GET /api/v1/cart/events. It sends the current cart as the
// first event, then one "cart" event per change, in mutation order, until the
// client disconnects. A client too slow to keep up skips ahead to the latest
// cart rather than blocking mutations.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	// The server's write timeout would otherwise cut every stream short.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.WarnContext(ctx, "could not clear stream write deadline", slog.String("error", err.Error()))
	}

	store := h.service.Store(ctx, sessionIDFromContext(ctx))

	updates := make(chan domain.Snapshot, streamBuffer)
	var lagged atomic.Bool
	unsubscribe := store.Subscribe(func(_ context.Context, ch cart.Change) {
		select {
		case updates <- ch.Snapshot:
		default:
			lagged.Store(true)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var seq uint64
	send := func(snap domain.Snapshot) bool {
		seq++
		if err := writeEvent(w, seq, "cart", snap); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send(store.Snapshot()) {
		h.logger.DebugContext(ctx, "cart stream closed before first event")
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case snap := <-updates:
			if !send(snap) {
				return
			}
			if len(updates) == 0 && lagged.Swap(false) {
				if !send(store.Snapshot()) {
					return
				}
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, id uint64, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
	return err
}
