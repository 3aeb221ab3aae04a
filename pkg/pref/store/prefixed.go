package store

import (
	"context"

	"github.com/vango-dev/datatable/pkg/pref"
)

// WithPrefix namespaces every key of raw. The result stays a
// pref.SyncRawStorage when raw is one.
func WithPrefix(raw pref.RawStorage, prefix string) pref.RawStorage {
	if prefix == "" {
		return raw
	}
	p := &prefixed{raw: raw, prefix: prefix}
	if sr, ok := raw.(pref.SyncRawStorage); ok {
		return &syncPrefixed{prefixed: p, sync: sr}
	}
	return p
}

type prefixed struct {
	raw    pref.RawStorage
	prefix string
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.raw.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, data []byte) error {
	return p.raw.Set(ctx, p.prefix+key, data)
}

func (p *prefixed) Remove(ctx context.Context, key string) error {
	return p.raw.Remove(ctx, p.prefix+key)
}

type syncPrefixed struct {
	*prefixed
	sync pref.SyncRawStorage
}

func (p *syncPrefixed) GetSync(key string) ([]byte, error) {
	return p.sync.GetSync(p.prefix + key)
}
