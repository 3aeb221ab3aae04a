package pref

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/datatable/internal/errors"
)

// memStorage is a minimal async Storage with optional failure injection and
// an optional gate that holds Get until released.
type memStorage[V any] struct {
	mu      sync.Mutex
	data    map[string]Envelope[V]
	getErr  error
	setErr  error
	gate    chan struct{}
	entered chan struct{}
	sets    []Envelope[V]
	removes int
}

func newMemStorage[V any]() *memStorage[V] {
	return &memStorage[V]{data: map[string]Envelope[V]{}}
}

func (m *memStorage[V]) Get(ctx context.Context, key string) (*Envelope[V], error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	env, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &env, nil
}

func (m *memStorage[V]) Set(ctx context.Context, key string, env Envelope[V]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = append(m.sets, env)
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = env
	return nil
}

func (m *memStorage[V]) stored(key string) (Envelope[V], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	env, ok := m.data[key]
	return env, ok
}

// removableStorage adds Remove.
type removableStorage[V any] struct {
	*memStorage[V]
}

func (r removableStorage[V]) Remove(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removes++
	delete(r.data, key)
	return nil
}

// syncStorage adds GetSync.
type syncStorage[V any] struct {
	*memStorage[V]
}

func (s syncStorage[V]) GetSync(key string) (*Envelope[V], error) {
	return s.Get(context.Background(), key)
}

type widths = map[string]int

func widthConfig(storage Storage[widths]) Config[widths] {
	return Config[widths]{
		Key:     "users.sizing",
		Storage: storage,
		Defaults: func() widths {
			return widths{"id": 150, "email": 200}
		},
		Merge: func(defaults, stored widths) widths {
			return MergeRecord(defaults, stored, func(_ string, v int) int {
				return max(80, min(v, 300))
			})
		},
		Equal: RecordEqual[widths],
		Now:   func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	}
}

func TestMergeRecord(t *testing.T) {
	defaults := widths{"id": 150, "email": 200, "name": 120}
	clamp := func(_ string, v int) int { return max(80, min(v, 300)) }

	t.Run("drops stale keys and fills missing ones", func(t *testing.T) {
		got := MergeRecord(defaults, widths{"id": 90, "removed": 400}, clamp)
		want := widths{"id": 90, "email": 200, "name": 120}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("MergeRecord mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("normalizes stored values", func(t *testing.T) {
		got := MergeRecord(widths{"id": 150}, widths{"id": 50}, clamp)
		if got["id"] != 80 {
			t.Errorf("id = %d, want 80", got["id"])
		}
	})

	t.Run("idempotent for every subset of stored keys", func(t *testing.T) {
		stored := widths{"id": 10, "email": 999, "name": 100}
		keys := []string{"id", "email", "name"}
		for mask := 0; mask < 1<<len(keys); mask++ {
			subset := widths{}
			for i, k := range keys {
				if mask&(1<<i) != 0 {
					subset[k] = stored[k]
				}
			}
			once := MergeRecord(defaults, subset, clamp)
			twice := MergeRecord(defaults, once, clamp)
			if !RecordEqual(once, twice) {
				t.Errorf("subset %v: merge not idempotent: %v vs %v", subset, once, twice)
			}
		}
	})
}

func TestMigrate(t *testing.T) {
	// v1 stored widths in tenths of the v2 unit.
	scale := func(env Envelope[json.RawMessage], target int, _ MigrationContext) (widths, error) {
		var old widths
		if err := json.Unmarshal(env.Value, &old); err != nil {
			return nil, err
		}
		out := widths{}
		for k, v := range old {
			out[k] = v * 10
		}
		return out, nil
	}
	v1 := Envelope[json.RawMessage]{SchemaVersion: 1, UpdatedAt: 5, Value: json.RawMessage(`{"id":15}`)}
	mctx := MigrationContext{Key: "users.sizing"}

	once, err := Migrate(v1, 2, scale, mctx)
	if err != nil || once.SchemaVersion != 2 || once.UpdatedAt != 5 || once.Value["id"] != 150 {
		t.Fatalf("Migrate(v1) = %+v, %v", once, err)
	}

	encoded, err := json.Marshal(once.Value)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Migrate(Envelope[json.RawMessage]{SchemaVersion: 2, UpdatedAt: 5, Value: encoded}, 2, scale, mctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second migration is not a no-op (-once +twice):\n%s", diff)
	}

	raw, err := Migrate[widths](v1, 2, nil, mctx)
	if err != nil || raw.SchemaVersion != 2 || raw.Value["id"] != 15 {
		t.Errorf("Migrate without a migration = %+v, %v; want raw value at v2", raw, err)
	}

	failing := func(Envelope[json.RawMessage], int, MigrationContext) (widths, error) {
		return nil, fmt.Errorf("unknown layout")
	}
	if _, err := Migrate(v1, 2, failing, mctx); !errors.HasCode(err, "DT015") {
		t.Errorf("failed migration err = %v, want DT015", err)
	}
}

func TestControllerMigratesChangedShape(t *testing.T) {
	// v1 stored the list of hidden column ids, v2 stores visibility per id.
	raw := bytesStore{"users.visibility": []byte(`{"schemaVersion":1,"updatedAt":7,"value":["email"]}`)}

	called := false
	c := NewController(Config[map[string]bool]{
		Key:           "users.visibility",
		Storage:       JSON[map[string]bool](syncBytesStore{raw}),
		SchemaVersion: 2,
		Defaults: func() map[string]bool {
			return map[string]bool{"id": true, "email": true}
		},
		Merge: func(defaults, stored map[string]bool) map[string]bool {
			return MergeRecord(defaults, stored, nil)
		},
		Migrate: func(env Envelope[json.RawMessage], _ int, _ MigrationContext) (map[string]bool, error) {
			called = true
			var hidden []string
			if err := json.Unmarshal(env.Value, &hidden); err != nil {
				return nil, err
			}
			out := make(map[string]bool, len(hidden))
			for _, id := range hidden {
				out[id] = false
			}
			return out, nil
		},
	})

	if !called {
		t.Fatal("migration was not called for a v1 value")
	}
	want := map[string]bool{"id": true, "email": false}
	if diff := cmp.Diff(want, c.Value()); diff != "" {
		t.Errorf("Value mismatch (-want +got):\n%s", diff)
	}

	c.Set(map[string]bool{"id": false, "email": false})
	c.Flush()
	if got := string(raw["users.visibility"]); !strings.Contains(got, `"schemaVersion":2`) {
		t.Errorf("written envelope = %s, want schemaVersion 2", got)
	}
}

func TestControllerMigratesTypedStorage(t *testing.T) {
	mem := newMemStorage[widths]()
	mem.data["users.sizing"] = Envelope[widths]{SchemaVersion: 1, UpdatedAt: 1, Value: widths{"id": 10}}

	cfg := widthConfig(mem)
	cfg.SchemaVersion = 2
	cfg.Migrate = func(env Envelope[json.RawMessage], _ int, _ MigrationContext) (widths, error) {
		var old widths
		err := json.Unmarshal(env.Value, &old)
		return widths{"id": old["id"] * 10}, err
	}
	c := NewController(cfg)
	c.Load(context.Background())

	if got := c.Value()["id"]; got != 100 {
		t.Errorf("id = %d, want migrated 100", got)
	}
}

func TestControllerSyncLoad(t *testing.T) {
	mem := newMemStorage[widths]()
	mem.data["users.sizing"] = Envelope[widths]{SchemaVersion: 1, UpdatedAt: 1, Value: widths{"id": 50, "gone": 500}}

	c := NewController(widthConfig(syncStorage[widths]{mem}))

	if !c.Ready() {
		t.Error("sync storage should be ready from construction")
	}
	want := widths{"id": 80, "email": 200}
	if diff := cmp.Diff(want, c.Value()); diff != "" {
		t.Errorf("Value mismatch (-want +got):\n%s", diff)
	}
}

func TestControllerAsyncLoad(t *testing.T) {
	t.Run("applies stored value", func(t *testing.T) {
		mem := newMemStorage[widths]()
		mem.data["users.sizing"] = Envelope[widths]{SchemaVersion: 1, UpdatedAt: 1, Value: widths{"email": 260}}

		changes := 0
		cfg := widthConfig(mem)
		cfg.OnChange = func() { changes++ }
		c := NewController(cfg)

		if c.Ready() {
			t.Fatal("async storage should not be ready before Load")
		}
		if c.Value()["email"] != 200 {
			t.Errorf("before Load email = %d, want default 200", c.Value()["email"])
		}

		c.Load(context.Background())

		if !c.Ready() {
			t.Error("Ready() = false after Load")
		}
		if c.Value()["email"] != 260 {
			t.Errorf("email = %d, want 260", c.Value()["email"])
		}
		if changes != 1 {
			t.Errorf("OnChange called %d times, want 1", changes)
		}
	})

	t.Run("read failure degrades to defaults", func(t *testing.T) {
		mem := newMemStorage[widths]()
		mem.getErr = fmt.Errorf("storage offline")
		c := NewController(widthConfig(mem))

		c.Load(context.Background())

		if !c.Ready() {
			t.Error("Ready() must flip even when the read fails")
		}
		if c.Value()["id"] != 150 {
			t.Errorf("id = %d, want default 150", c.Value()["id"])
		}
	})

	t.Run("result after Close is discarded", func(t *testing.T) {
		mem := newMemStorage[widths]()
		mem.data["users.sizing"] = Envelope[widths]{SchemaVersion: 1, Value: widths{"id": 222}}
		mem.gate = make(chan struct{})
		c := NewController(widthConfig(mem))

		done := make(chan struct{})
		go func() {
			c.Load(context.Background())
			close(done)
		}()
		c.Close()
		close(mem.gate)
		<-done

		if c.Value()["id"] != 150 {
			t.Errorf("id = %d, stale load applied after Close", c.Value()["id"])
		}
	})

	t.Run("unchanged user value during load keeps the stored one", func(t *testing.T) {
		mem := newMemStorage[widths]()
		mem.data["users.sizing"] = Envelope[widths]{SchemaVersion: 1, UpdatedAt: 1, Value: widths{"id": 222}}
		mem.gate = make(chan struct{})
		mem.entered = make(chan struct{}, 1)
		c := NewController(widthConfig(mem))

		done := make(chan struct{})
		go func() {
			c.Load(context.Background())
			close(done)
		}()
		<-mem.entered
		c.Set(widths{"id": 150, "email": 200})
		close(mem.gate)
		<-done

		if c.Value()["id"] != 222 {
			t.Errorf("id = %d, want stored 222", c.Value()["id"])
		}
	})

	t.Run("user change during load wins", func(t *testing.T) {
		mem := newMemStorage[widths]()
		mem.data["users.sizing"] = Envelope[widths]{SchemaVersion: 1, Value: widths{"id": 222}}
		mem.gate = make(chan struct{})
		mem.entered = make(chan struct{}, 1)
		c := NewController(widthConfig(mem))

		done := make(chan struct{})
		go func() {
			c.Load(context.Background())
			close(done)
		}()
		<-mem.entered
		c.Update(func(prev widths) widths {
			next := widths{"id": 100, "email": prev["email"]}
			return next
		})
		close(mem.gate)
		<-done
		c.Flush()

		if c.Value()["id"] != 100 {
			t.Errorf("id = %d, want the user's 100", c.Value()["id"])
		}
		if !c.Ready() {
			t.Error("Ready() = false after Load returned")
		}
	})
}

func TestControllerUpdate(t *testing.T) {
	t.Run("writes merged value at current version", func(t *testing.T) {
		mem := newMemStorage[widths]()
		cfg := widthConfig(mem)
		cfg.SchemaVersion = 3
		c := NewController(cfg)

		c.Update(func(prev widths) widths {
			next := widths{"id": 1000, "email": prev["email"], "extra": 5}
			return next
		})
		if c.Value()["id"] != 300 {
			t.Errorf("in-memory id = %d, want clamped 300", c.Value()["id"])
		}
		c.Flush()

		env, ok := mem.stored("users.sizing")
		if !ok {
			t.Fatal("nothing persisted")
		}
		want := Envelope[widths]{SchemaVersion: 3, UpdatedAt: 1_700_000_000_000, Value: widths{"id": 300, "email": 200}}
		if diff := cmp.Diff(want, env); diff != "" {
			t.Errorf("stored envelope mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unchanged value is not written", func(t *testing.T) {
		mem := newMemStorage[widths]()
		changes := 0
		cfg := widthConfig(mem)
		cfg.OnChange = func() { changes++ }
		c := NewController(cfg)

		c.Set(widths{"id": 150, "email": 200})
		c.Flush()

		if changes != 0 || len(mem.sets) != 0 {
			t.Errorf("changes=%d sets=%d, want 0/0", changes, len(mem.sets))
		}
	})

	t.Run("write failure keeps in-memory value", func(t *testing.T) {
		mem := newMemStorage[widths]()
		mem.setErr = fmt.Errorf("quota exceeded")
		c := NewController(widthConfig(mem))

		c.Set(widths{"id": 120, "email": 200})
		c.Flush()

		if c.Value()["id"] != 120 {
			t.Errorf("id = %d, want 120", c.Value()["id"])
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		mem := newMemStorage[widths]()
		c := NewController(widthConfig(mem))

		for i := 0; i < 50; i++ {
			c.Set(widths{"id": 100 + i, "email": 200})
		}
		c.Flush()

		env, _ := mem.stored("users.sizing")
		if env.Value["id"] != 149 {
			t.Errorf("stored id = %d, want 149", env.Value["id"])
		}
	})
}

func TestControllerReset(t *testing.T) {
	t.Run("removes when supported", func(t *testing.T) {
		mem := newMemStorage[widths]()
		storage := removableStorage[widths]{mem}
		c := NewController(widthConfig(storage))

		c.Set(widths{"id": 90, "email": 200})
		c.Reset()
		c.Flush()

		if _, ok := mem.stored("users.sizing"); ok {
			t.Error("key still stored after Reset")
		}
		if mem.removes != 1 {
			t.Errorf("removes = %d, want 1", mem.removes)
		}
		if c.Value()["id"] != 150 {
			t.Errorf("id = %d, want default", c.Value()["id"])
		}
	})

	t.Run("overwrites with defaults otherwise", func(t *testing.T) {
		mem := newMemStorage[widths]()
		c := NewController(widthConfig(mem))

		c.Set(widths{"id": 90, "email": 200})
		c.Reset()
		c.Flush()

		env, ok := mem.stored("users.sizing")
		if !ok {
			t.Fatal("expected a default envelope")
		}
		if diff := cmp.Diff(widths{"id": 150, "email": 200}, env.Value); diff != "" {
			t.Errorf("default envelope mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestControllerApplyRemote(t *testing.T) {
	mem := newMemStorage[widths]()
	now := int64(1_000)
	cfg := widthConfig(mem)
	cfg.Now = func() time.Time { return time.UnixMilli(now) }
	c := NewController(cfg)

	c.Set(widths{"id": 100, "email": 200})
	c.Flush()
	writes := len(mem.sets)

	c.ApplyRemote(Envelope[widths]{SchemaVersion: 1, UpdatedAt: 500, Value: widths{"id": 110}})
	if c.Value()["id"] != 100 {
		t.Errorf("older remote applied: id = %d", c.Value()["id"])
	}

	c.ApplyRemote(Envelope[widths]{SchemaVersion: 1, UpdatedAt: 2_000, Value: widths{"id": 120}})
	if c.Value()["id"] != 120 {
		t.Errorf("newer remote not applied: id = %d", c.Value()["id"])
	}
	c.Flush()
	if len(mem.sets) != writes {
		t.Error("ApplyRemote must not write back")
	}
}

func TestControllerRefresh(t *testing.T) {
	cols := widths{"id": 150}
	cfg := widthConfig(newMemStorage[widths]())
	cfg.Defaults = func() widths { return widths(cols) }
	c := NewController(cfg)
	c.Set(widths{"id": 99})

	cols = widths{"id": 150, "created": 180}
	c.Refresh()

	want := widths{"id": 99, "created": 180}
	if diff := cmp.Diff(want, c.Value()); diff != "" {
		t.Errorf("Refresh mismatch (-want +got):\n%s", diff)
	}
	c.Flush()
}

func TestEnvelopeTime(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	env := NewEnvelope(2, "compact", at)
	if env.SchemaVersion != 2 || !env.Time().Equal(at) {
		t.Errorf("envelope = %+v, time %v", env, env.Time())
	}
}
