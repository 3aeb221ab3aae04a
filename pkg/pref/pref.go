// Package pref provides schema-versioned preference persistence for table features.
//
// Preferences are persisted values that:
//   - Are stored as an Envelope{schemaVersion, updatedAt, value}
//   - Are migrated when the stored schema version differs from the current one
//   - Are merged over computed defaults, dropping stale keys
//   - Update in memory synchronously and persist in the background
//
// Example:
//
//	ctrl := pref.NewController(pref.Config[table.Density]{
//	    Key:      "users.density",
//	    Storage:  pref.JSON[table.Density](store.NewMemory()),
//	    Defaults: func() table.Density { return table.DensityCompact },
//	})
//	ctrl.Set(table.DensityComfortable)
//	ctrl.Reset()
package pref

import (
	"context"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vango-dev/datatable/internal/errors"
)

// Envelope is the unit of persistence.
// UpdatedAt is in Unix milliseconds.
type Envelope[V any] struct {
	SchemaVersion int   `json:"schemaVersion"`
	UpdatedAt     int64 `json:"updatedAt"`
	Value         V     `json:"value"`
}

// NewEnvelope stamps value with version and now.
func NewEnvelope[V any](version int, value V, now time.Time) Envelope[V] {
	return Envelope[V]{
		SchemaVersion: version,
		UpdatedAt:     now.UnixMilli(),
		Value:         value,
	}
}

// Time returns UpdatedAt as a time.Time.
func (e Envelope[V]) Time() time.Time {
	return time.UnixMilli(e.UpdatedAt)
}

// Storage persists envelopes by key. Get returns (nil, nil) when the key is absent.
// Implementations must be safe for concurrent use.
type Storage[V any] interface {
	Get(ctx context.Context, key string) (*Envelope[V], error)
	Set(ctx context.Context, key string, env Envelope[V]) error
}

// SyncReader is implemented by storages that can answer without blocking,
// which lets a feature be ready from its first render.
type SyncReader[V any] interface {
	GetSync(key string) (*Envelope[V], error)
}

// Remover is implemented by storages that can delete a key.
// Storages without it are reset by writing a default-valued envelope.
type Remover interface {
	Remove(ctx context.Context, key string) error
}

// MigrationContext is passed to migrations.
type MigrationContext struct {
	Key string
	Now time.Time
}

// RawReader is implemented by storages that can return a stored envelope
// with its value still encoded. Migrations then see the value in the shape
// it was written in, even when that shape no longer decodes into V.
type RawReader interface {
	GetRaw(ctx context.Context, key string) (*Envelope[json.RawMessage], error)
}

// SyncRawReader is the non-blocking form of RawReader.
type SyncRawReader interface {
	GetRawSync(key string) (*Envelope[json.RawMessage], error)
}

// Migration rebuilds a value stored at another schema version. env.Value is
// the stored JSON, not yet decoded.
type Migration[V any] func(env Envelope[json.RawMessage], targetVersion int, mctx MigrationContext) (V, error)

// Migrate decodes env into V at targetVersion. When env is at another version
// and m is set, m produces the value; otherwise the stored JSON is decoded as
// is. The result is always stamped with targetVersion, so migrating the
// re-encoded output again is a no-op.
func Migrate[V any](env Envelope[json.RawMessage], targetVersion int, m Migration[V], mctx MigrationContext) (Envelope[V], error) {
	out := Envelope[V]{SchemaVersion: targetVersion, UpdatedAt: env.UpdatedAt}
	if env.SchemaVersion != targetVersion && m != nil {
		v, err := m(env, targetVersion, mctx)
		if err != nil {
			return out, errors.New("DT015").WithSubject(mctx.Key).Wrap(err)
		}
		out.Value = v
		return out, nil
	}
	if len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, &out.Value); err != nil {
			return out, errors.New("DT013").WithSubject(mctx.Key).Wrap(err)
		}
	}
	return out, nil
}
