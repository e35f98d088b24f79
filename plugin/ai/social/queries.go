package social

import (
	"sort"
	"time"
)

// GetActivities returns a friend's activity history within ActivityWindow, most recent first.
func (s *Intelligence) GetActivities(friendID string) []FriendActivity {
	cutoff := s.clock.Now().Add(-ActivityWindow)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []FriendActivity
	for _, a := range s.activities[friendID] {
		if a.Timestamp.After(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// RecentActivities returns activities across all friends within window, most recent first.
func (s *Intelligence) RecentActivities(window time.Duration) []FriendActivity {
	cutoff := s.clock.Now().Add(-window)
	s.mu.RLock()
	var out []FriendActivity
	for _, list := range s.activities {
		for _, a := range list {
			if a.Timestamp.After(cutoff) {
				out = append(out, a)
			}
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// GetFriendsAtVenue returns the latest activity of every friend currently placed at venueID,
// highest relevance first.
func (s *Intelligence) GetFriendsAtVenue(venueID string) []FriendActivity {
	now := s.clock.Now()
	s.mu.RLock()
	var out []FriendActivity
	for _, list := range s.activities {
		if len(list) == 0 {
			continue
		}
		latest := list[0]
		if latest.VenueID != venueID || now.Sub(latest.Timestamp) > ActivityWindow {
			continue
		}
		if latest.ActivityType == ActivityCheckIn || latest.ActivityType == ActivityHeadingTo {
			out = append(out, latest)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].RelevanceScore != out[j].RelevanceScore {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		return out[i].FriendID < out[j].FriendID
	})
	return out
}

// GetProximityAlerts returns alerts inside the 30-minute relevance window, most recent first.
func (s *Intelligence) GetProximityAlerts() []ProximityAlert {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ProximityAlert
	for _, a := range s.alerts {
		if now.Sub(a.Timestamp) <= AlertWindow {
			out = append(out, a)
		}
	}
	return out
}

// GetSocialTrends returns live trends, strongest first.
func (s *Intelligence) GetSocialTrends() []SocialTrend {
	s.mu.RLock()
	out := make([]SocialTrend, 0, len(s.trends))
	for _, t := range s.trends {
		out = append(out, cloneTrend(t))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetTrend returns the popularity trend for a venue.
func (s *Intelligence) GetTrend(venueID string) (SocialTrend, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trends[TrendKey(venueID)]
	if !ok {
		return SocialTrend{}, false
	}
	return cloneTrend(t), true
}

// GetGroupMovements returns pending group movements, most confident first.
func (s *Intelligence) GetGroupMovements() []GroupMovement {
	s.mu.RLock()
	out := make([]GroupMovement, 0, len(s.movements))
	for _, m := range s.movements {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].VenueID < out[j].VenueID
	})
	return out
}

// NearbyFriendCount counts distinct friends with a live proximity alert.
func (s *Intelligence) NearbyFriendCount() int {
	seen := map[string]bool{}
	for _, a := range s.GetProximityAlerts() {
		seen[a.FriendID] = true
	}
	return len(seen)
}

// HasGroupActivity reports whether any group movement is pending.
func (s *Intelligence) HasGroupActivity() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.movements) > 0
}
