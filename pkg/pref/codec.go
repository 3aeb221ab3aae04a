package pref

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/vango-dev/datatable/internal/errors"
)

// RawStorage persists opaque bytes by key. Get returns (nil, nil) when the key
// is absent; Remove of an absent key is not an error.
type RawStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// SyncRawStorage is a RawStorage that can also read without blocking.
type SyncRawStorage interface {
	RawStorage
	GetSync(key string) ([]byte, error)
}

// JSON adapts a byte store to a typed Storage using the
// {"schemaVersion","updatedAt","value"} wire format. The result implements
// SyncReader when raw implements SyncRawStorage, and always implements Remover
// and RawReader.
func JSON[V any](raw RawStorage) Storage[V] {
	base := &jsonStorage[V]{raw: raw}
	if sr, ok := raw.(SyncRawStorage); ok {
		return &syncJSONStorage[V]{jsonStorage: base, sync: sr}
	}
	return base
}

type jsonStorage[V any] struct {
	raw RawStorage
}

func (s *jsonStorage[V]) Get(ctx context.Context, key string) (*Envelope[V], error) {
	data, err := s.raw.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope[V](key, data)
}

func (s *jsonStorage[V]) GetRaw(ctx context.Context, key string) (*Envelope[json.RawMessage], error) {
	data, err := s.raw.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope[json.RawMessage](key, data)
}

func (s *jsonStorage[V]) Set(ctx context.Context, key string, env Envelope[V]) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.raw.Set(ctx, key, data)
}

func (s *jsonStorage[V]) Remove(ctx context.Context, key string) error {
	return s.raw.Remove(ctx, key)
}

type syncJSONStorage[V any] struct {
	*jsonStorage[V]
	sync SyncRawStorage
}

func (s *syncJSONStorage[V]) GetSync(key string) (*Envelope[V], error) {
	data, err := s.sync.GetSync(key)
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope[V](key, data)
}

func (s *syncJSONStorage[V]) GetRawSync(key string) (*Envelope[json.RawMessage], error) {
	data, err := s.sync.GetSync(key)
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope[json.RawMessage](key, data)
}

// DecodeEnvelope parses a stored envelope. Empty input decodes to nil.
func DecodeEnvelope[V any](key string, data []byte) (*Envelope[V], error) {
	if len(data) == 0 {
		return nil, nil
	}
	var env Envelope[V]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.New("DT013").WithSubject(key).Wrap(err)
	}
	return &env, nil
}
