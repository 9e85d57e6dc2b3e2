package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/uptownstitch/storefront/internal/domain"
	"github.com/uptownstitch/storefront/internal/repository"
	apperrors "github.com/uptownstitch/storefront/pkg/errors"
)

const hydrateTimeout = 3 * time.Second

// ListenerFactory builds the listener the registry attaches to a new store.
type ListenerFactory func(sessionID string) Listener

type registryEntry struct {
	once  sync.Once
	store *Store
}

// Registry owns exactly one Store per session id in this process.
type Registry struct {
	repo   repository.SnapshotRepository
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	stores    map[string]*registryEntry
	factories []ListenerFactory
}

// NewRegistry creates a registry hydrating stores from repo.
func NewRegistry(repo repository.SnapshotRepository, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		stores: make(map[string]*registryEntry),
	}
}

// Use attaches f's listener to every store created after this call.
func (r *Registry) Use(f ListenerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, f)
}

// Get returns the session's store, creating and hydrating it on first use.
// Concurrent first calls for one session share a single hydration. Get never
// fails: an unreadable snapshot yields an empty cart.
func (r *Registry) Get(ctx context.Context, sessionID string) *Store {
	r.mu.Lock()
	e, ok := r.stores[sessionID]
	if !ok {
		s := NewStore(sessionID, domain.CartState{}, r.logger)
		s.now = r.now
		for _, f := range r.factories {
			s.addListener(f(sessionID))
		}
		e = &registryEntry{store: s}
		r.stores[sessionID] = e
		LiveStores.Set(float64(len(r.stores)))
	}
	// Touched under the lock so a concurrent Sweep cannot evict a store
	// that is about to be handed out.
	e.store.touch()
	r.mu.Unlock()

	e.once.Do(func() { r.hydrate(ctx, e.store) })
	return e.store
}

func (r *Registry) hydrate(ctx context.Context, s *Store) {
	// A caller that hangs up must not leave other waiters with an empty cart.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
	defer cancel()

	state, updatedAt, err := r.repo.Load(ctx, s.sessionID)
	switch {
	case err == nil:
		s.restore(state, updatedAt)
		HydrationsTotal.WithLabelValues(hydrateFound).Inc()
	case errors.Is(err, apperrors.ErrNotFound):
		HydrationsTotal.WithLabelValues(hydrateEmpty).Inc()
	case errors.Is(err, domain.ErrCorruptSnapshot), errors.Is(err, domain.ErrSnapshotVersion):
		HydrationsTotal.WithLabelValues(hydrateCorrupt).Inc()
		r.logger.WarnContext(ctx, "discarding unreadable cart snapshot",
			slog.String("session_id", s.sessionID),
			slog.String("error", err.Error()),
		)
	default:
		HydrationsTotal.WithLabelValues(hydrateError).Inc()
		r.logger.WarnContext(ctx, "cart snapshot load failed, starting empty",
			slog.String("session_id", s.sessionID),
			slog.String("error", err.Error()),
		)
	}
}

// Sweep evicts stores idle for at least idle and returns how many were
// evicted. Stores with subscribers stay. An evicted session re-hydrates
// from persistence on its next request, so a store whose last save failed is
// saved again first and kept if that fails too. Carts emptied in this
// process have their persisted snapshot deleted instead.
func (r *Registry) Sweep(ctx context.Context, idle time.Duration) int {
	now := r.now()

	r.mu.Lock()
	var pending []*Store
	evicted := 0
	for id, e := range r.stores {
		if !r.evictable(e.store, now, idle) {
			continue
		}
		if e.store.emptied() || e.store.unsaved.Load() {
			pending = append(pending, e.store)
			continue
		}
		delete(r.stores, id)
		evicted++
	}
	r.mu.Unlock()

	// Pending stores stay registered until persistence has caught up, so a
	// returning session keeps using them and cannot race the write.
	for _, s := range pending {
		if !r.settle(ctx, s) {
			continue
		}
		r.mu.Lock()
		if e, ok := r.stores[s.sessionID]; ok && e.store == s && r.evictable(s, r.now(), idle) {
			delete(r.stores, s.sessionID)
			evicted++
		}
		r.mu.Unlock()
	}

	if evicted > 0 {
		EvictionsTotal.Add(float64(evicted))
		LiveStores.Set(float64(r.Len()))
	}
	return evicted
}

func (r *Registry) evictable(s *Store, now time.Time, idle time.Duration) bool {
	return s.Watchers() == 0 && s.idleSince(now) >= idle
}

// settle brings the persisted cart of s in line with memory and reports
// whether s may be evicted. It holds the store's mutation lock so no save can
// interleave. An emptied cart is deleted; a failed delete still allows
// eviction unless the empty state itself was never saved. An unsaved cart is
// saved again.
func (r *Registry) settle(ctx context.Context, s *Store) bool {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, hydrateTimeout)
	defer cancel()

	state := s.State()
	if s.mutated.Load() && state.IsEmpty() {
		if err := r.repo.Delete(ctx, s.sessionID); err != nil {
			r.logger.WarnContext(ctx, "failed to delete empty cart snapshot",
				slog.String("session_id", s.sessionID),
				slog.String("error", err.Error()),
			)
			return !s.unsaved.Load()
		}
		s.unsaved.Store(false)
		return true
	}

	if !s.unsaved.Load() {
		return true
	}
	if err := r.repo.Save(ctx, s.sessionID, state); err != nil {
		PersistFailuresTotal.Inc()
		r.logger.ErrorContext(ctx, "unsaved cart kept in memory",
			slog.String("session_id", s.sessionID),
			slog.String("error", err.Error()),
		)
		return false
	}
	s.unsaved.Store(false)
	return true
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ctx, idle); n > 0 {
				r.logger.Debug("evicted idle cart stores",
					slog.Int("evicted", n),
					slog.Int("live", r.Len()),
				)
			}
		}
	}
}

// Len reports how many stores are held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
