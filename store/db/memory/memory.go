// Package memory implements an in-process store driver, used for tests and ephemeral sessions.
package memory

import (
	"context"
	"sync"

	"github.com/hrygo/nova/store"
)

type DB struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewDB creates an empty in-memory driver.
func NewDB() *DB {
	return &DB{values: make(map[string][]byte)}
}

func (d *DB) Get(_ context.Context, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (d *DB) Set(_ context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	d.values[key] = v
	return nil
}

func (d *DB) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.values, key)
	return nil
}

func (d *DB) Usage(_ context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var total int64
	for k, v := range d.values {
		total += int64(len(k) + len(v))
	}
	return total, nil
}

func (*DB) Close() error {
	return nil
}

var _ store.Driver = (*DB)(nil)
