package cart

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uptownstitch/storefront/internal/domain"
)

// Operation names a store mutation.
type Operation string

const (
	OpAddItem        Operation = "add_item"
	OpRemoveItem     Operation = "remove_item"
	OpUpdateQuantity Operation = "update_quantity"
	OpClear          Operation = "clear"
)

// Change describes a mutation that altered the cart.
type Change struct {
	Operation Operation
	ProductID domain.ProductID // empty for OpClear
	State     domain.CartState
	Snapshot  domain.Snapshot

	store *Store
}

// Listener observes cart changes. Listeners run synchronously, in
// registration order, before the mutating call returns. A listener may call
// Snapshot but must not mutate the store it is attached to.
type Listener func(ctx context.Context, ch Change)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Store is the single source of truth for one session's cart.
//
// Mutations are serialized: each mutation and the notification of its
// listeners complete before the next mutation starts, so every listener sees
// every state in order. Snapshot only takes the state lock and never waits
// for listeners.
type Store struct {
	sessionID string
	logger    *slog.Logger
	now       func() time.Time

	mutateMu sync.Mutex

	stateMu   sync.RWMutex
	state     domain.CartState
	updatedAt time.Time

	listenersMu sync.Mutex
	listeners   []listenerEntry
	nextID      uint64
	watchers    atomic.Int32

	lastAccess atomic.Int64
	mutated    atomic.Bool
	unsaved    atomic.Bool
}

// NewStore creates a store for sessionID holding initial.
func NewStore(sessionID string, initial domain.CartState, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		sessionID: sessionID,
		logger:    logger,
		now:       time.Now,
		state:     initial,
	}
	s.updatedAt = s.now().UTC()
	s.touch()
	return s
}

func (s *Store) SessionID() string { return s.sessionID }

// Snapshot returns the current cart. It always reflects the most recently
// completed mutation.
func (s *Store) Snapshot() domain.Snapshot {
	s.touch()
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return domain.NewSnapshot(s.sessionID, s.state, s.updatedAt)
}

// State returns the current cart state.
func (s *Store) State() domain.CartState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// AddItem adds one unit of p. It always changes the cart.
func (s *Store) AddItem(ctx context.Context, p domain.Product) domain.Snapshot {
	return s.mutate(ctx, OpAddItem, p.ID, func(c domain.CartState) (domain.CartState, bool) {
		return c.AddItem(p), true
	})
}

// RemoveItem deletes id's line. Removing an absent id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, id domain.ProductID) domain.Snapshot {
	return s.mutate(ctx, OpRemoveItem, id, func(c domain.CartState) (domain.CartState, bool) {
		return c.RemoveItem(id)
	})
}

// UpdateQuantity sets id's quantity to n; n <= 0 removes the line. A positive
// n for an id that is not in the cart is ignored with a warning.
func (s *Store) UpdateQuantity(ctx context.Context, id domain.ProductID, n int) domain.Snapshot {
	return s.mutate(ctx, OpUpdateQuantity, id, func(c domain.CartState) (domain.CartState, bool) {
		if n > 0 && !c.Contains(id) {
			s.logger.WarnContext(ctx, "quantity update for product not in cart ignored",
				slog.String("session_id", s.sessionID),
				slog.String("product_id", id.String()),
				slog.Int("quantity", n),
			)
			return c, false
		}
		return c.UpdateQuantity(id, n)
	})
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context) domain.Snapshot {
	return s.mutate(ctx, OpClear, "", func(c domain.CartState) (domain.CartState, bool) {
		return c.Clear()
	})
}

// SubmitAndClear runs submit with the current state while holding the
// mutation lock, then clears the cart if submit succeeded. No mutation can
// slip in between the state submit saw and the clear.
func (s *Store) SubmitAndClear(ctx context.Context, submit func(context.Context, domain.CartState) error) (domain.Snapshot, error) {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	if err := submit(ctx, s.State()); err != nil {
		return s.Snapshot(), err
	}
	return s.applyLocked(ctx, OpClear, "", func(c domain.CartState) (domain.CartState, bool) {
		return c.Clear()
	}), nil
}

func (s *Store) mutate(ctx context.Context, op Operation, id domain.ProductID, fn func(domain.CartState) (domain.CartState, bool)) domain.Snapshot {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()
	return s.applyLocked(ctx, op, id, fn)
}

// applyLocked must be called with mutateMu held.
func (s *Store) applyLocked(ctx context.Context, op Operation, id domain.ProductID, fn func(domain.CartState) (domain.CartState, bool)) domain.Snapshot {
	s.touch()

	s.stateMu.Lock()
	next, changed := fn(s.state)
	if changed {
		s.state = next
		s.updatedAt = s.now().UTC()
	}
	state := s.state
	snap := domain.NewSnapshot(s.sessionID, s.state, s.updatedAt)
	s.stateMu.Unlock()

	if !changed {
		return snap
	}

	s.mutated.Store(true)
	MutationsTotal.WithLabelValues(string(op)).Inc()
	s.notify(ctx, Change{Operation: op, ProductID: id, State: state, Snapshot: snap, store: s})
	return snap
}

func (s *Store) notify(ctx context.Context, ch Change) {
	s.listenersMu.Lock()
	ls := make([]Listener, len(s.listeners))
	for i, e := range s.listeners {
		ls[i] = e.fn
	}
	s.listenersMu.Unlock()

	for _, l := range ls {
		l(ctx, ch)
	}
}

// Subscribe registers l for every later change and returns a func that
// removes it. Stores with subscribers are never evicted by the registry.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	id := s.addListener(l)
	s.watchers.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.removeListener(id)
			s.watchers.Add(-1)
		})
	}
}

// Watchers is the number of active subscribers.
func (s *Store) Watchers() int { return int(s.watchers.Load()) }

func (s *Store) addListener(l Listener) uint64 {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: s.nextID, fn: l})
	return s.nextID
}

func (s *Store) removeListener(id uint64) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for i, e := range s.listeners {
		if e.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Store) touch() {
	s.lastAccess.Store(s.now().UnixNano())
}

// emptied reports whether this process changed the cart and left it empty.
func (s *Store) emptied() bool {
	return s.mutated.Load() && s.State().IsEmpty()
}

func (s *Store) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastAccess.Load()))
}

// restore replaces the state without notifying anyone. Used for hydration
// before the store is handed out. A zero updatedAt keeps the creation time.
func (s *Store) restore(state domain.CartState, updatedAt time.Time) {
	s.stateMu.Lock()
	s.state = state
	if !updatedAt.IsZero() {
		s.updatedAt = updatedAt.UTC()
	}
	s.stateMu.Unlock()
}
