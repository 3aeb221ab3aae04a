package pref

import (
	"context"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vango-dev/datatable/internal/errors"
)

// Config configures a Controller.
type Config[V any] struct {
	// Key is the storage key. Required.
	Key string

	// Storage persists the preference. Required.
	Storage Storage[V]

	// SchemaVersion is the version written with every envelope. Default: 1.
	SchemaVersion int

	// Migrate upgrades envelopes stored at another version. Storages that
	// implement RawReader hand it the value as written; for the others the
	// decoded value is re-encoded first.
	Migrate Migration[V]

	// Defaults computes the default value. It is called on every merge so
	// that defaults may follow changing inputs such as column definitions.
	Defaults func() V

	// Merge combines a stored value with defaults and normalizes the result.
	// Default: the stored value wins as is.
	Merge func(defaults, stored V) V

	// Equal suppresses updates that do not change the merged value.
	// Default: never equal.
	Equal func(a, b V) bool

	// OnChange is called, outside any lock, whenever the value or readiness changes.
	OnChange func()

	// WriteTimeout bounds each background write. Default: 10 seconds.
	WriteTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

type writeOp[V any] struct {
	remove bool
	env    Envelope[V]
}

// Controller runs the load, merge, change and reset stages of one preference.
//
// Reads of Value never block on storage. When the storage is a SyncReader the
// stored value is applied during NewController and the controller is ready
// immediately; otherwise Load must be called and Ready flips when it returns,
// whether it succeeded or not.
type Controller[V any] struct {
	cfg Config[V]

	mu        sync.Mutex
	value     V
	stored    *V // last value persisted or loaded, nil means "use defaults"
	updatedAt int64
	ready     bool
	closed    bool
	gen       uint64

	pending *writeOp[V]
	writing bool
	idle    *sync.Cond
}

// NewController creates a controller and performs the synchronous load when
// the storage supports it.
func NewController[V any](cfg Config[V]) *Controller[V] {
	if cfg.SchemaVersion <= 0 {
		cfg.SchemaVersion = 1
	}
	if cfg.Merge == nil {
		cfg.Merge = func(_, stored V) V { return stored }
	}
	if cfg.Equal == nil {
		cfg.Equal = func(_, _ V) bool { return false }
	}
	if cfg.Defaults == nil {
		cfg.Defaults = func() V {
			var zero V
			return zero
		}
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Controller[V]{cfg: cfg}
	c.idle = sync.NewCond(&c.mu)
	c.value = cfg.Defaults()

	if sr, ok := cfg.Storage.(SyncReader[V]); ok {
		env, err := c.readSync(sr)
		if err != nil {
			c.logReadError(err)
			env = nil
		}
		c.applyLoaded(env)
		c.ready = true
	}
	return c
}

// Key returns the storage key.
func (c *Controller[V]) Key() string {
	return c.cfg.Key
}

// Value returns the current merged value.
func (c *Controller[V]) Value() V {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Ready reports whether the stored preference has been applied or given up on.
func (c *Controller[V]) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Load reads the stored preference. A read failure degrades to "no stored
// preference". The result is discarded if the controller was closed, or if the
// user changed the value, while the read was in flight.
func (c *Controller[V]) Load(ctx context.Context) {
	c.mu.Lock()
	if c.ready || c.closed {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	c.mu.Unlock()

	env, err := c.read(ctx)
	if err != nil {
		c.logReadError(err)
		env = nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	changed := !c.ready
	c.ready = true
	if gen == c.gen && c.applyLoaded(env) {
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// read fetches the stored envelope at the current schema version.
func (c *Controller[V]) read(ctx context.Context) (*Envelope[V], error) {
	if rr, ok := c.cfg.Storage.(RawReader); ok {
		raw, err := rr.GetRaw(ctx, c.cfg.Key)
		if err != nil || raw == nil {
			return nil, err
		}
		return c.migrate(*raw)
	}
	env, err := c.cfg.Storage.Get(ctx, c.cfg.Key)
	if err != nil || env == nil {
		return nil, err
	}
	return c.upgrade(*env)
}

func (c *Controller[V]) readSync(sr SyncReader[V]) (*Envelope[V], error) {
	if rr, ok := c.cfg.Storage.(SyncRawReader); ok {
		raw, err := rr.GetRawSync(c.cfg.Key)
		if err != nil || raw == nil {
			return nil, err
		}
		return c.migrate(*raw)
	}
	env, err := sr.GetSync(c.cfg.Key)
	if err != nil || env == nil {
		return nil, err
	}
	return c.upgrade(*env)
}

// upgrade migrates an envelope that was decoded into V already.
func (c *Controller[V]) upgrade(env Envelope[V]) (*Envelope[V], error) {
	if env.SchemaVersion == c.cfg.SchemaVersion || c.cfg.Migrate == nil {
		env.SchemaVersion = c.cfg.SchemaVersion
		return &env, nil
	}
	data, err := json.Marshal(env.Value)
	if err != nil {
		return nil, errors.New("DT015").WithSubject(c.cfg.Key).Wrap(err)
	}
	return c.migrate(Envelope[json.RawMessage]{
		SchemaVersion: env.SchemaVersion,
		UpdatedAt:     env.UpdatedAt,
		Value:         data,
	})
}

func (c *Controller[V]) migrate(raw Envelope[json.RawMessage]) (*Envelope[V], error) {
	env, err := Migrate(raw, c.cfg.SchemaVersion, c.cfg.Migrate, MigrationContext{
		Key: c.cfg.Key,
		Now: c.cfg.Now(),
	})
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// applyLoaded merges an envelope at the current version. Caller holds mu or
// owns c exclusively.
func (c *Controller[V]) applyLoaded(env *Envelope[V]) bool {
	if env == nil {
		return false
	}
	stored := env.Value
	c.stored = &stored
	c.updatedAt = env.UpdatedAt
	return c.recompute()
}

func (c *Controller[V]) recompute() bool {
	defaults := c.cfg.Defaults()
	next := defaults
	if c.stored != nil {
		next = c.cfg.Merge(defaults, *c.stored)
	}
	if c.cfg.Equal(c.value, next) {
		return false
	}
	c.value = next
	return true
}

// Refresh re-merges the current preference over freshly computed defaults.
func (c *Controller[V]) Refresh() {
	c.mu.Lock()
	changed := c.recompute()
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Set replaces the value.
func (c *Controller[V]) Set(next V) {
	c.Update(func(V) V { return next })
}

// Update derives the next value from the current one, applies it in memory
// and queues a write of the merged value at the current schema version.
func (c *Controller[V]) Update(fn func(prev V) V) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	merged := c.cfg.Merge(c.cfg.Defaults(), fn(c.value))
	if c.cfg.Equal(c.value, merged) {
		c.mu.Unlock()
		return
	}
	c.gen++
	env := NewEnvelope(c.cfg.SchemaVersion, merged, c.cfg.Now())
	c.value = merged
	c.stored = &merged
	c.updatedAt = env.UpdatedAt
	c.enqueue(writeOp[V]{env: env})
	c.mu.Unlock()

	c.notify()
}

// Reset restores defaults in memory and clears the stored preference.
func (c *Controller[V]) Reset() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	defaults := c.cfg.Defaults()
	changed := !c.cfg.Equal(c.value, defaults)
	c.value = defaults
	c.stored = nil
	c.updatedAt = c.cfg.Now().UnixMilli()
	if _, ok := c.cfg.Storage.(Remover); ok {
		c.enqueue(writeOp[V]{remove: true})
	} else {
		c.enqueue(writeOp[V]{env: NewEnvelope(c.cfg.SchemaVersion, defaults, c.cfg.Now())})
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// ApplyRemote applies an envelope written elsewhere (another tab or device)
// when it is newer than the local value. Envelopes at another schema version
// are migrated first. Nothing is written back.
func (c *Controller[V]) ApplyRemote(env Envelope[V]) {
	migrated, err := c.upgrade(env)
	if err != nil {
		c.logRemoteError(err)
		return
	}
	c.applyRemote(migrated)
}

// ApplyRemoteJSON is ApplyRemote for an envelope whose value is still
// encoded, such as one received over the wire.
func (c *Controller[V]) ApplyRemoteJSON(raw Envelope[json.RawMessage]) {
	migrated, err := c.migrate(raw)
	if err != nil {
		c.logRemoteError(err)
		return
	}
	c.applyRemote(migrated)
}

func (c *Controller[V]) applyRemote(env *Envelope[V]) {
	c.mu.Lock()
	if c.closed || env.UpdatedAt <= c.updatedAt {
		c.mu.Unlock()
		return
	}
	c.gen++
	changed := c.applyLoaded(env)
	if !c.ready {
		c.ready = true
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// Flush blocks until every queued write has been attempted.
func (c *Controller[V]) Flush() {
	c.mu.Lock()
	for c.writing {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Close stops applying loads and accepting changes. Queued writes still run.
func (c *Controller[V]) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	c.mu.Unlock()
}

// enqueue replaces any not-yet-started write; the latest value wins.
// Caller holds mu.
func (c *Controller[V]) enqueue(op writeOp[V]) {
	c.pending = &op
	if c.writing {
		return
	}
	c.writing = true
	go c.drain()
}

func (c *Controller[V]) drain() {
	for {
		c.mu.Lock()
		op := c.pending
		c.pending = nil
		if op == nil {
			c.writing = false
			c.idle.Broadcast()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.write(*op)
	}
}

func (c *Controller[V]) write(op writeOp[V]) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	defer cancel()

	if op.remove {
		r, _ := c.cfg.Storage.(Remover)
		if err := r.Remove(ctx, c.cfg.Key); err != nil {
			c.cfg.Logger.Warn("preference remove failed",
				slog.String("key", c.cfg.Key),
				slog.Any("error", errors.New("DT012").WithSubject(c.cfg.Key).Wrap(err)))
		}
		return
	}
	if err := c.cfg.Storage.Set(ctx, c.cfg.Key, op.env); err != nil {
		c.cfg.Logger.Warn("preference write failed",
			slog.String("key", c.cfg.Key),
			slog.Any("error", errors.New("DT011").WithSubject(c.cfg.Key).Wrap(err)))
	}
}

func (c *Controller[V]) logReadError(err error) {
	c.cfg.Logger.Warn("preference read failed, using defaults",
		slog.String("key", c.cfg.Key),
		slog.Any("error", errors.New("DT010").WithSubject(c.cfg.Key).Wrap(err)))
}

func (c *Controller[V]) logRemoteError(err error) {
	c.cfg.Logger.Warn("remote preference ignored",
		slog.String("key", c.cfg.Key),
		slog.Any("error", err))
}

func (c *Controller[V]) notify() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange()
	}
}
