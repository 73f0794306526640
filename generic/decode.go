package generic

import (
	"context"
	"encoding/json"
)

// Decoded is the result of reading a persisted value with a fallback.
// Value is always usable: on a missing key or a corrupt document it holds
// the default. Err is set only when a present document failed to decode.
type Decoded[T any] struct {
	Value T
	Found bool
	Err   error
}

// Defaulted reports whether Value came from the default.
func (d Decoded[T]) Defaulted() bool { return !d.Found || d.Err != nil }

// Decode unmarshals raw into a T, falling back to def() when raw is absent,
// JSON null, or malformed.
func Decode[T any](key string, raw []byte, found bool, def func() T) Decoded[T] {
	if !found || len(raw) == 0 || string(raw) == "null" {
		return Decoded[T]{Value: def()}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return Decoded[T]{Value: def(), Found: true, Err: &DecodeError{Key: key, Err: err}}
	}
	return Decoded[T]{Value: v, Found: true}
}

// Load reads key from kv and decodes it. Storage errors are returned; decode
// failures are reported in the result, not as an error.
func Load[T any](ctx context.Context, kv KV, key string, def func() T) (Decoded[T], error) {
	raw, found, err := kv.Get(ctx, key)
	if err != nil {
		return Decoded[T]{Value: def()}, err
	}
	return Decode(key, raw, found, def), nil
}

// Encode marshals v for storage.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
