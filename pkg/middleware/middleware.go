package middleware

import (
	"context"

	"github.com/vango-dev/datatable/pkg/pref"
)

// Middleware decorates a raw preference store.
type Middleware func(pref.RawStorage) pref.RawStorage

// Chain applies middlewares so that the first one is outermost.
func Chain(raw pref.RawStorage, mws ...Middleware) pref.RawStorage {
	for i := len(mws) - 1; i >= 0; i-- {
		raw = mws[i](raw)
	}
	return raw
}

// Operation names reported by the middlewares.
const (
	OpGet     = "get"
	OpGetSync = "get_sync"
	OpSet     = "set"
	OpRemove  = "remove"
)

// aroundFunc runs call on behalf of op and may observe it.
type aroundFunc func(ctx context.Context, op, key string, call func(context.Context) error) error

// wrap builds a store whose every operation goes through around.
func wrap(raw pref.RawStorage, around aroundFunc) pref.RawStorage {
	w := &wrapped{raw: raw, around: around}
	if sr, ok := raw.(pref.SyncRawStorage); ok {
		return &syncWrapped{wrapped: w, sync: sr}
	}
	return w
}

type wrapped struct {
	raw    pref.RawStorage
	around aroundFunc
}

func (w *wrapped) Get(ctx context.Context, key string) (data []byte, err error) {
	err = w.around(ctx, OpGet, key, func(ctx context.Context) error {
		var e error
		data, e = w.raw.Get(ctx, key)
		return e
	})
	return data, err
}

func (w *wrapped) Set(ctx context.Context, key string, data []byte) error {
	return w.around(ctx, OpSet, key, func(ctx context.Context) error {
		return w.raw.Set(ctx, key, data)
	})
}

func (w *wrapped) Remove(ctx context.Context, key string) error {
	return w.around(ctx, OpRemove, key, func(ctx context.Context) error {
		return w.raw.Remove(ctx, key)
	})
}

type syncWrapped struct {
	*wrapped
	sync pref.SyncRawStorage
}

func (w *syncWrapped) GetSync(key string) (data []byte, err error) {
	err = w.around(context.Background(), OpGetSync, key, func(context.Context) error {
		var e error
		data, e = w.sync.GetSync(key)
		return e
	})
	return data, err
}
