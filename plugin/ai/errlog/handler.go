package errlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/store"
)

// ErrRetryBudgetExhausted is returned when an error has used all of its retries.
var ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

// Reporter is the narrow surface components use to report non-fatal errors.
type Reporter interface {
	// HandleError records an error and returns its id.
	HandleError(ctx context.Context, errType ErrorType, message string, fields map[string]any, retryable bool) string
}

// Record is a persisted error entry.
type Record struct {
	ID         string         `json:"id"`
	Type       ErrorType      `json:"type"`
	Message    string         `json:"message"`
	Context    map[string]any `json:"context,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Retryable  bool           `json:"retryable"`
	RetryCount int            `json:"retryCount"`
	Resolved   bool           `json:"resolved"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
}

// Config configures the Handler.
type Config struct {
	MaxRecords int
	MaxRetries int
	// Retention is how long resolved errors are kept before Cleanup drops them.
	Retention time.Duration
}

// DefaultConfig returns the default handler configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRecords: 100,
		MaxRetries: 3,
		Retention:  7 * 24 * time.Hour,
	}
}

// Handler stores error records in a capped list persisted under nova_system_errors.
type Handler struct {
	mu      sync.Mutex
	store   *store.Store
	config  *Config
	clock   aitime.Clock
	logger  *slog.Logger
	records []Record
}

// NewHandler creates a Handler. A nil store keeps records in memory only.
func NewHandler(st *store.Store, cfg *Config, clock aitime.Clock) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &Handler{
		store:  st,
		config: cfg,
		clock:  aitime.OrSystem(clock),
		logger: slog.Default().With("component", "errlog"),
	}
}

// Load restores persisted records.
func (h *Handler) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	var records []Record
	found, err := h.store.GetJSON(ctx, store.KeySystemErrors, &records)
	if err != nil {
		return errors.Wrap(err, "failed to load error records")
	}
	if !found {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = trimRecords(records, h.config.MaxRecords)
	return nil
}

// HandleError implements Reporter.
func (h *Handler) HandleError(ctx context.Context, errType ErrorType, message string, fields map[string]any, retryable bool) string {
	rec := Record{
		ID:        "err_" + shortuuid.New(),
		Type:      errType,
		Message:   message,
		Context:   fields,
		Timestamp: h.clock.Now(),
		Retryable: retryable,
	}

	attrs := []any{"id", rec.ID, "type", errType, "retryable", retryable}
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	if errType == TypeValidation {
		h.logger.Warn(message, attrs...)
	} else {
		h.logger.Error(message, attrs...)
	}

	h.mu.Lock()
	h.records = trimRecords(append(h.records, rec), h.config.MaxRecords)
	h.persistLocked(ctx)
	h.mu.Unlock()
	return rec.ID
}

// Report classifies err and records it. Errors without a type are treated as fallbackType.
func (h *Handler) Report(ctx context.Context, err error, fallbackType ErrorType, retryable bool) string {
	fields := map[string]any{}
	var e *Error
	if errors.As(err, &e) {
		for k, v := range e.Context {
			fields[k] = v
		}
	}
	return h.HandleError(ctx, TypeOf(err, fallbackType), err.Error(), fields, retryable)
}

// RetryOperation re-invokes op for the error id until it succeeds or the retry budget runs out.
// Success marks the record resolved. Exhaustion leaves it unresolved.
func (h *Handler) RetryOperation(ctx context.Context, id string, op func(context.Context) error) error {
	var lastErr error
	for {
		h.mu.Lock()
		idx := h.indexLocked(id)
		if idx < 0 {
			h.mu.Unlock()
			return errors.Errorf("error record %s not found", id)
		}
		rec := &h.records[idx]
		if rec.Resolved {
			h.mu.Unlock()
			return nil
		}
		if rec.RetryCount >= h.config.MaxRetries {
			h.persistLocked(ctx)
			h.mu.Unlock()
			if lastErr != nil {
				return errors.Wrap(ErrRetryBudgetExhausted, lastErr.Error())
			}
			return ErrRetryBudgetExhausted
		}
		rec.RetryCount++
		attempt := rec.RetryCount
		h.mu.Unlock()

		lastErr = op(ctx)

		h.mu.Lock()
		if idx = h.indexLocked(id); idx >= 0 {
			if lastErr == nil {
				now := h.clock.Now()
				h.records[idx].Resolved = true
				h.records[idx].ResolvedAt = &now
			}
			h.persistLocked(ctx)
		}
		h.mu.Unlock()

		if lastErr == nil {
			h.logger.Info("retry succeeded", "id", id, "attempt", attempt)
			return nil
		}
		h.logger.Warn("retry failed", "id", id, "attempt", attempt, "error", lastErr)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Cleanup drops resolved records older than the retention window and returns how many were dropped.
func (h *Handler) Cleanup(ctx context.Context) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.clock.Now().Add(-h.config.Retention)
	kept := h.records[:0]
	dropped := 0
	for _, rec := range h.records {
		if rec.Resolved && rec.Timestamp.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	h.records = kept
	if dropped > 0 {
		h.persistLocked(ctx)
	}
	return dropped
}

// Records returns a copy of all records, oldest first.
func (h *Handler) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Get returns the record with id.
func (h *Handler) Get(id string) (Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if idx := h.indexLocked(id); idx >= 0 {
		return h.records[idx], true
	}
	return Record{}, false
}

func (h *Handler) indexLocked(id string) int {
	for i := range h.records {
		if h.records[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the records. Failures are logged only; memory stays authoritative.
func (h *Handler) persistLocked(ctx context.Context) {
	if h.store == nil {
		return
	}
	if err := h.store.SetJSON(ctx, store.KeySystemErrors, h.records); err != nil {
		h.logger.Error("failed to persist error records", "error", err)
	}
}

func trimRecords(records []Record, limit int) []Record {
	if len(records) <= limit {
		return records
	}
	return append([]Record(nil), records[len(records)-limit:]...)
}

var _ Reporter = (*Handler)(nil)
