// Package file keeps cache entries as one file per key inside a directory,
// the on-disk counterpart of browser local storage.
package file

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"jobtracker/client/internal/cache"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var (
	json       = jsoniter.ConfigCompatibleWithStandardLibrary
	keyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)
)

type entry struct {
	ExpiresAt time.Time `json:"expires_at"`
	Data      []byte    `json:"data"`
}

type Cache struct {
	dir        string
	defaultTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger

	mu     sync.Mutex
	closed bool
}

func New(opts cache.Options) (*Cache, error) {
	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		dir:        opts.Dir,
		defaultTTL: opts.DefaultTTL,
		now:        time.Now,
		logger:     logger,
	}, nil
}

func (c *Cache) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", cache.ErrInvalidKey
	}
	return filepath.Join(c.dir, key+".json"), nil
}

// Set writes through a temporary file and a rename so readers never observe a
// partially written entry. A zero ttl falls back to the default; a zero
// default means the entry never expires.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	data, err := cache.Encode(value)
	if err != nil {
		return err
	}

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	e := entry{Data: data}
	if ttl > 0 {
		e.ExpiresAt = c.now().Add(ttl)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cache.ErrClosed
	}

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (c *Cache) Get(ctx context.Context, key string, value interface{}) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return cache.ErrClosed
	}
	raw, err := os.ReadFile(path)
	c.mu.Unlock()
	if os.IsNotExist(err) {
		return cache.ErrNotFound
	}
	if err != nil {
		return err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return cache.ErrInvalidValue
	}
	if !e.ExpiresAt.IsZero() && c.now().After(e.ExpiresAt) {
		if err := c.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to remove expired cache entry",
				zap.String("key", key),
				zap.Error(err))
		}
		return cache.ErrNotFound
	}

	return cache.Decode(e.Data, value)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cache.ErrClosed
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
