package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/store"
)

// Service owns the MemoryProfile persisted under nova_user_memory.
type Service struct {
	mu       sync.Mutex
	store    *store.Store
	clock    aitime.Clock
	reporter errlog.Reporter
	logger   *slog.Logger

	// profile is authoritative for the session once loaded, even if a write fails.
	profile *MemoryProfile
}

// NewService creates a Service. A nil store keeps the profile in memory only.
func NewService(st *store.Store) *Service {
	return &Service{
		store:    st,
		clock:    aitime.SystemClock{},
		reporter: errlog.NopReporter{},
		logger:   slog.Default().With("component", "memory"),
	}
}

// WithClock sets the clock.
func (s *Service) WithClock(c aitime.Clock) *Service {
	s.clock = aitime.OrSystem(c)
	return s
}

// WithReporter sets the error reporter.
func (s *Service) WithReporter(r errlog.Reporter) *Service {
	s.reporter = errlog.OrNop(r)
	return s
}

// GetMemory returns a copy of the current profile. Missing, expired or
// version-mismatched profiles are replaced with defaults.
func (s *Service) GetMemory(ctx context.Context) *MemoryProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(ctx).Clone()
}

// RecordSearch appends a search to the bounded history.
func (s *Service) RecordSearch(ctx context.Context, query string, intents []string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.currentLocked(ctx)
	now := s.clock.Now()
	history := append(p.BehaviorPatterns.SearchHistory, SearchRecord{
		Query:     query,
		Intents:   append([]string{}, intents...),
		Timestamp: now,
	})
	if over := len(history) - MaxSearchHistory; over > 0 {
		history = append([]SearchRecord(nil), history[over:]...)
	}
	p.BehaviorPatterns.SearchHistory = history
	p.LastUpdated = now
	s.persistLocked(ctx)
}

// RecordVenueInteraction appends a venue interaction to the bounded history.
func (s *Service) RecordVenueInteraction(ctx context.Context, venueType string, ic InteractionContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.currentLocked(ctx)
	now := s.clock.Now()
	if ic.TimeOfDay == "" {
		ic.TimeOfDay = aitime.TimeOfDayAt(now)
	}
	if ic.DayOfWeek == "" {
		ic.DayOfWeek = aitime.DayOfWeek(now)
	}
	interactions := append(p.BehaviorPatterns.VenueInteractions, VenueInteraction{
		VenueType: venueType,
		Context:   ic,
		Timestamp: now,
	})
	if over := len(interactions) - MaxVenueInteractions; over > 0 {
		interactions = append([]VenueInteraction(nil), interactions[over:]...)
	}
	p.BehaviorPatterns.VenueInteractions = interactions
	p.LastUpdated = now
	s.persistLocked(ctx)
}

// SetVenuePreferences replaces the explicit venue preferences.
func (s *Service) SetVenuePreferences(ctx context.Context, prefs VenuePreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.currentLocked(ctx)
	p.VenuePreferences = prefs
	p.LastUpdated = s.clock.Now()
	s.persistLocked(ctx)
}

// ClearMemory deletes the persisted profile. The next read rebuilds defaults.
func (s *Service) ClearMemory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	if s.store == nil {
		return nil
	}
	return errors.Wrap(s.store.Delete(ctx, store.KeyUserMemory), "failed to clear memory")
}

// Expire drops the profile when it is no longer valid and reports whether it did.
func (s *Service) Expire(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.loadLocked(ctx)
	if p == nil || p.IsValid(s.clock.Now()) {
		return false
	}
	s.profile = nil
	if s.store != nil {
		if err := s.store.Delete(ctx, store.KeyUserMemory); err != nil {
			s.reporter.HandleError(ctx, errlog.TypeDataProcessing, "failed to delete expired memory",
				map[string]any{"error": err.Error()}, false)
		}
	}
	s.logger.Info("expired memory profile", "last_updated", p.LastUpdated)
	return true
}

func (s *Service) currentLocked(ctx context.Context) *MemoryProfile {
	now := s.clock.Now()
	p := s.loadLocked(ctx)
	if !p.IsValid(now) {
		if p != nil {
			s.logger.Debug("discarding memory profile", "version", p.Version, "last_updated", p.LastUpdated)
		}
		p = DefaultProfile(now)
	}
	s.profile = p
	return p
}

func (s *Service) loadLocked(ctx context.Context) *MemoryProfile {
	if s.profile != nil || s.store == nil {
		return s.profile
	}
	var p MemoryProfile
	found, err := s.store.GetJSON(ctx, store.KeyUserMemory, &p)
	if err != nil {
		s.reporter.HandleError(ctx, errlog.TypeDataProcessing, "failed to load memory profile",
			map[string]any{"error": err.Error()}, false)
		return nil
	}
	if !found {
		return nil
	}
	return &p
}

func (s *Service) persistLocked(ctx context.Context) {
	if s.store == nil || s.profile == nil {
		return
	}
	if err := s.store.SetJSON(ctx, store.KeyUserMemory, s.profile); err != nil {
		s.reporter.HandleError(ctx, errlog.TypeDataProcessing, "failed to persist memory profile",
			map[string]any{"error": err.Error()}, true)
	}
}
