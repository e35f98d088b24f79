package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/hrygo/nova/internal/profile"
)

// Persisted entry keys.
const (
	KeyUserEvents   = "nova_user_events"
	KeyUserMemory   = "nova_user_memory"
	KeySystemErrors = "nova_system_errors"
	KeyMetrics      = "nova_metrics"
)

// DefaultQuotaBytes mirrors the per-origin budget of a browser local store.
const DefaultQuotaBytes int64 = 5 << 20

var (
	// ErrNotFound is returned when a key has no stored value.
	ErrNotFound = errors.New("store: key not found")
	// ErrQuotaExceeded is returned when a write would exceed the capacity ceiling.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
)

// Store provides key-value access on top of a Driver with a capacity ceiling.
type Store struct {
	profile *profile.Profile
	driver  Driver
	quota   int64

	// mu serializes quota accounting for writes.
	mu sync.Mutex
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	quota := DefaultQuotaBytes
	if profile != nil && profile.StorageQuotaBytes > 0 {
		quota = profile.StorageQuotaBytes
	}
	return &Store{
		driver:  driver,
		profile: profile,
		quota:   quota,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Quota returns the capacity ceiling in bytes.
func (s *Store) Quota() int64 {
	return s.quota
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return s.driver.Get(ctx, key)
}

// Set writes value under key, rejecting writes that would push usage past the quota.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage, err := s.driver.Usage(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read store usage")
	}
	var previous int64
	if old, err := s.driver.Get(ctx, key); err == nil {
		previous = int64(len(old))
	} else if !errors.Is(err, ErrNotFound) {
		return errors.Wrapf(err, "failed to read key %s", key)
	}
	if usage-previous+int64(len(value)) > s.quota {
		return errors.Wrapf(ErrQuotaExceeded, "writing %d bytes to %s", len(value), key)
	}
	return s.driver.Set(ctx, key, value)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Delete(ctx, key)
}

// GetJSON decodes the value under key into v. It reports false when the key is missing.
func (s *Store) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.driver.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to get %s", key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, errors.Wrapf(err, "failed to decode %s", key)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	return s.Set(ctx, key, raw)
}
