package cache

import (
	"context"
	"encoding"
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("key not found in cache")
	ErrInvalidValue = errors.New("invalid value for cache")
	ErrClosed       = errors.New("cache is closed")
	ErrInvalidKey   = errors.New("invalid cache key")
)

// Cache is the durable key/value storage the client keeps its local state in.
// Values passed to Set are strings, byte slices or encoding.BinaryMarshaler;
// values passed to Get are *string or encoding.BinaryUnmarshaler.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Get(ctx context.Context, key string, value interface{}) error

	Delete(ctx context.Context, key string) error

	Close() error
}

type Options struct {
	DefaultTTL time.Duration

	Dir string

	RedisURL string

	RedisPassword string

	RedisDB int

	// Logger receives backend warnings. Nil discards them.
	Logger *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		DefaultTTL: 24 * time.Hour,
	}
}

// Encode turns a value accepted by Set into bytes.
func Encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case encoding.BinaryMarshaler:
		return v.MarshalBinary()
	default:
		return nil, ErrInvalidValue
	}
}

// Decode stores raw bytes into a value accepted by Get.
func Decode(data []byte, value interface{}) error {
	switch v := value.(type) {
	case *string:
		*v = string(data)
	case encoding.BinaryUnmarshaler:
		return v.UnmarshalBinary(data)
	default:
		return ErrInvalidValue
	}
	return nil
}
