// Package cache implements the read-through cache over the first page of the
// recent_tasks and my_tasks views, and the invalidation applied when tasks
// change.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/config"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/visibility"
)

// Outcome reports how a read was served. Its string value is sent in the
// X-Cache response header.
type Outcome string

// Read outcomes.
const (
	Hit    Outcome = "HIT"
	Miss   Outcome = "MISS"
	Bypass Outcome = "BYPASS"
)

// Loader produces the payload for a key from the primary store.
type Loader func(ctx context.Context) ([]byte, error)

// Key builds the cache key for a view and a resolver scope fragment, e.g.
// "recent_tasks:ADMIN" or "my_tasks:<userId>".
func Key(view visibility.View, scope string) string {
	return string(view) + ":" + scope
}

// Mutation describes a task write for invalidation purposes.
type Mutation struct {
	// CreatorID is the task's creator.
	CreatorID uuid.UUID
	// AssigneeIDs are the assignees whose my_tasks lists are affected.
	AssigneeIDs []uuid.UUID
	// AssigneeDepartmentIDs are the departments of AssigneeIDs. Only used when
	// scoped key invalidation is enabled.
	AssigneeDepartmentIDs []uuid.UUID
}

// Layer wraps a Store with the cacheability rules, TTL and failure policy.
// A Layer never returns a store error to its caller.
type Layer struct {
	store      Store
	ttl        time.Duration
	pageSize   int
	opTimeout  time.Duration
	scopedKeys bool
	logger     *slog.Logger
}

// NewLayer creates a Layer.
func NewLayer(store Store, cfg config.CacheConfig, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{
		store:      store,
		ttl:        cfg.TTL,
		pageSize:   cfg.PageSize,
		opTimeout:  cfg.OpTimeout,
		scopedKeys: cfg.InvalidateScopedKeys,
		logger:     logger.With("component", "cache"),
	}
}

// ScopedKeys reports whether mutations also drop the manager and user scoped
// recent_tasks keys.
func (l *Layer) ScopedKeys() bool {
	return l.scopedKeys
}

// PageSize is the default listing limit, the only limit that is cached.
func (l *Layer) PageSize() int {
	return l.pageSize
}

// Cacheable reports whether a listing request may be served from cache: first
// page, default limit, no filters.
func (l *Layer) Cacheable(page, limit int, filtered bool) bool {
	return page == 1 && limit == l.pageSize && !filtered
}

// ReadThrough returns the cached payload for key, or loads it, stores it with
// the configured TTL and returns it. Store failures degrade to a direct load
// reported as Bypass. Only load errors are returned.
func (l *Layer) ReadThrough(ctx context.Context, key string, load Loader) ([]byte, Outcome, error) {
	log := logger.FromContextOrDefault(ctx, l.logger)
	view := viewOf(key)
	start := time.Now()

	getCtx, cancel := context.WithTimeout(ctx, l.opTimeout)
	data, err := l.store.Get(getCtx, key)
	cancel()

	switch {
	case err == nil:
		l.observe(log, view, key, Hit, start)
		return data, Hit, nil

	case errors.Is(err, ErrMiss):
		data, err = load(ctx)
		if err != nil {
			return nil, Miss, err
		}
		setCtx, cancel := context.WithTimeout(ctx, l.opTimeout)
		if setErr := l.store.Set(setCtx, key, data, l.ttl); setErr != nil {
			storeErrorsTotal.WithLabelValues("set").Inc()
			log.Warn("cache set failed", "key", key, "error", setErr)
		}
		cancel()
		l.observe(log, view, key, Miss, start)
		return data, Miss, nil

	default:
		storeErrorsTotal.WithLabelValues("get").Inc()
		log.Warn("cache unavailable, reading through to store", "key", key, "error", err)
		data, err = load(ctx)
		if err != nil {
			return nil, Bypass, err
		}
		l.observe(log, view, key, Bypass, start)
		return data, Bypass, nil
	}
}

// Invalidate deletes keys synchronously within the op timeout. Failures are
// logged and otherwise ignored.
func (l *Layer) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	log := logger.FromContextOrDefault(ctx, l.logger)

	delCtx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()
	if err := l.store.Delete(delCtx, keys...); err != nil {
		storeErrorsTotal.WithLabelValues("delete").Inc()
		log.Error("cache invalidation failed", "keys", keys, "error", err)
		return
	}
	log.Debug("cache invalidated", "keys", keys)
}

// MutationKeys lists the keys a task write must invalidate:
// recent_tasks:ADMIN plus my_tasks for every affected assignee. With scoped
// key invalidation enabled it also includes the creator's USER key and the
// MANAGER key of every assignee department.
func (l *Layer) MutationKeys(m Mutation) []string {
	keys := []string{Key(visibility.ViewRecent, visibility.ScopeAdmin)}
	seen := map[string]struct{}{keys[0]: {}}
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	for _, id := range m.AssigneeIDs {
		add(Key(visibility.ViewMine, id.String()))
	}

	if l.scopedKeys {
		if m.CreatorID != uuid.Nil {
			add(Key(visibility.ViewRecent, visibility.UserScope(m.CreatorID)))
		}
		for _, dept := range m.AssigneeDepartmentIDs {
			add(Key(visibility.ViewRecent, visibility.ManagerScope(dept)))
		}
	}
	return keys
}

func (l *Layer) observe(log *slog.Logger, view, key string, outcome Outcome, start time.Time) {
	elapsed := time.Since(start)
	lookupsTotal.WithLabelValues(view, string(outcome)).Inc()
	lookupSeconds.WithLabelValues(view, string(outcome)).Observe(elapsed.Seconds())
	log.Debug("cache read",
		"key", key,
		"outcome", string(outcome),
		"duration_ms", elapsed.Milliseconds())
}

func viewOf(key string) string {
	view, _, _ := strings.Cut(key, ":")
	return view
}
