// Package prediction turns live venue data, trends and friend movements into
// scored, validated predictions cached one per venue.
package prediction

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/livedata"
	"github.com/hrygo/nova/plugin/ai/loop"
	"github.com/hrygo/nova/plugin/ai/metrics"
	"github.com/hrygo/nova/plugin/ai/social"
	"github.com/hrygo/nova/plugin/ai/stream"
	"github.com/hrygo/nova/plugin/ai/timeout"
	"github.com/hrygo/nova/plugin/ai/trend"
	"github.com/hrygo/nova/plugin/ai/validator"
)

// Kind is the closed set of prediction kinds.
type Kind string

const (
	KindVenueRecommendation Kind = "venue_recommendation"
	KindTimingSuggestion    Kind = "timing_suggestion"
	KindSocialOpportunity   Kind = "social_opportunity"
)

// VenuePrediction is one validated prediction.
type VenuePrediction struct {
	ID             string    `json:"id"`
	VenueID        string    `json:"venueId"`
	VenueName      string    `json:"venueName,omitempty"`
	Kind           Kind      `json:"kind"`
	PredictionType string    `json:"predictionType,omitempty"`
	Prediction     Outcome   `json:"prediction"`
	Confidence     float64   `json:"confidence"`
	Timeframe      string    `json:"timeframe"`
	Message        string    `json:"message"`
	ActionLabel    string    `json:"actionLabel"`
	Rule           string    `json:"rule,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LiveSource is the read side of the live data aggregator.
type LiveSource interface {
	GetLiveVenues() []livedata.LiveVenueData
	Venue(id string) (livedata.VenueProfile, bool)
}

// TrendSource supplies per-venue momentum.
type TrendSource interface {
	AnalyzeTrends(ctx context.Context) *trend.Analysis
}

// SocialSource supplies friend positions and group movements.
type SocialSource interface {
	GetFriendsAtVenue(venueID string) []social.FriendActivity
	GetGroupMovements() []social.GroupMovement
}

// EventRecorder records events in the event log.
type EventRecorder interface {
	Track(ctx context.Context, eventType eventlog.EventType, data map[string]any, source eventlog.Source) eventlog.UserEvent
}

// Config configures the engine.
type Config struct {
	CheckInterval time.Duration // default: 60s
	MaxVenues     int           // live venues considered per run, default: 3
	MaxSocial     int           // social opportunities per run, default: 2
	EveningStart  int           // timing suggestions are offered in [EveningStart, EveningEnd), default: 17
	EveningEnd    int           // default: 22
	HistoryTTL    time.Duration // how long issued predictions accept feedback, default: 24h
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval: timeout.PredictionCheckInterval,
		MaxVenues:     3,
		MaxSocial:     2,
		EveningStart:  17,
		EveningEnd:    22,
		HistoryTTL:    24 * time.Hour,
	}
}

// Engine owns the prediction cache.
type Engine struct {
	cfg       Config
	live      LiveSource
	trends    TrendSource
	social    SocialSource
	generator *Generator
	validator *validator.Validator
	recorder  EventRecorder
	metrics   metrics.Recorder
	pub       stream.Publisher
	clock     aitime.Clock
	logger    *slog.Logger
	loop      *loop.Loop

	mu     sync.RWMutex
	cache  map[string]VenuePrediction // by venue id
	issued map[string]VenuePrediction // by prediction id
}

// NewEngine creates a stopped engine over live.
func NewEngine(live LiveSource, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.MaxVenues <= 0 {
		cfg.MaxVenues = def.MaxVenues
	}
	if cfg.MaxSocial <= 0 {
		cfg.MaxSocial = def.MaxSocial
	}
	if cfg.EveningStart == 0 && cfg.EveningEnd == 0 {
		cfg.EveningStart, cfg.EveningEnd = def.EveningStart, def.EveningEnd
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = def.HistoryTTL
	}

	e := &Engine{
		cfg:       cfg,
		live:      live,
		generator: MustDefaultGenerator(nil),
		validator: validator.New(nil),
		metrics:   metrics.NopRecorder{},
		pub:       stream.NopPublisher{},
		clock:     aitime.SystemClock{},
		logger:    slog.Default().With("component", "prediction"),
		cache:     map[string]VenuePrediction{},
		issued:    map[string]VenuePrediction{},
	}
	e.loop = loop.New("prediction", cfg.CheckInterval, func(ctx context.Context) { e.checkTriggers(ctx) })
	return e
}

// WithGenerator replaces the rule table.
func (e *Engine) WithGenerator(g *Generator) *Engine {
	if g != nil {
		e.generator = g
	}
	return e
}

// WithTrends sets the trend source.
func (e *Engine) WithTrends(t TrendSource) *Engine {
	e.trends = t
	return e
}

// WithSocial sets the social source.
func (e *Engine) WithSocial(s SocialSource) *Engine {
	e.social = s
	return e
}

// WithReporter sets where validation failures are reported.
func (e *Engine) WithReporter(r errlog.Reporter) *Engine {
	e.validator = validator.New(r)
	return e
}

// WithRecorder sets where accuracy feedback is tracked.
func (e *Engine) WithRecorder(r EventRecorder) *Engine {
	e.recorder = r
	return e
}

// WithMetrics sets the accuracy counters.
func (e *Engine) WithMetrics(m metrics.Recorder) *Engine {
	e.metrics = metrics.OrNop(m)
	return e
}

// WithPublisher sets the stream receiving prediction.updated messages.
func (e *Engine) WithPublisher(p stream.Publisher) *Engine {
	e.pub = stream.OrNop(p)
	return e
}

// WithClock sets the clock.
func (e *Engine) WithClock(c aitime.Clock) *Engine {
	e.clock = aitime.OrSystem(c)
	return e
}

// Start begins the trigger-check loop.
func (e *Engine) Start(ctx context.Context) {
	e.loop.Start(ctx)
}

// Stop halts the loop.
func (e *Engine) Stop() {
	e.loop.Stop()
}

// IsRunning returns whether the loop is running.
func (e *Engine) IsRunning() bool {
	return e.loop.IsRunning()
}

func (e *Engine) checkTriggers(ctx context.Context) {
	preds := e.GeneratePredictions(ctx)
	e.logger.Debug("prediction check completed", "predictions", len(preds))
}

// GeneratePredictions builds venue recommendations for the first live venues,
// a timing suggestion in the evening window, and social opportunities from
// group movements. Only validated predictions are returned and cached.
func (e *Engine) GeneratePredictions(ctx context.Context) []VenuePrediction {
	now := e.clock.Now()
	live := e.live.GetLiveVenues()
	directions := e.directions(ctx)

	var candidates []VenuePrediction
	for i, d := range live {
		if i >= e.cfg.MaxVenues {
			break
		}
		f := e.facts(d, now, directions)
		pt := selectType(f)
		g := e.generator.Generate(pt, f)
		candidates = append(candidates, e.newPrediction(f, KindVenueRecommendation, pt, g, now))
	}

	if aitime.InHourWindow(now.Hour(), e.cfg.EveningStart, e.cfg.EveningEnd) {
		if tp, ok := e.timingSuggestion(live, now, directions); ok {
			candidates = append(candidates, tp)
		}
	}

	candidates = append(candidates, e.socialOpportunities(now)...)

	var out []VenuePrediction
	for _, p := range candidates {
		if e.valid(ctx, p) {
			out = append(out, p)
		}
	}

	e.mu.Lock()
	for _, p := range out {
		e.cache[p.VenueID] = p
		e.issued[p.ID] = p
	}
	e.pruneLocked(now)
	e.mu.Unlock()

	if len(out) > 0 {
		if err := e.pub.Publish(ctx, stream.TopicPredictionsUpdated, out); err != nil {
			e.logger.Warn("failed to publish predictions", "error", err)
		}
	}
	return out
}

func (e *Engine) directions(ctx context.Context) map[string]trend.Direction {
	out := map[string]trend.Direction{}
	if e.trends == nil {
		return out
	}
	a := e.trends.AnalyzeTrends(ctx)
	if a == nil {
		return out
	}
	for _, v := range a.Venues {
		out[v.VenueID] = v.Direction
	}
	return out
}

func (e *Engine) facts(d livedata.LiveVenueData, now time.Time, directions map[string]trend.Direction) Facts {
	f := Facts{
		VenueID:    d.VenueID,
		VenueName:  d.VenueID,
		VenueType:  d.VenueType,
		CrowdLevel: d.CrowdLevel,
		WaitTime:   d.WaitTime,
		Energy:     d.Atmosphere.EnergyLevel,
		PriceLevel: string(d.Pricing.PriceLevel),
		Hour:       now.Hour(),
		Weekend:    aitime.IsWeekend(now),
		Trend:      string(directions[d.VenueID]),
	}
	if v, ok := e.live.Venue(d.VenueID); ok {
		if v.Name != "" {
			f.VenueName = v.Name
		}
		f.Popularity = v.Popularity
	}
	if e.social != nil {
		f.Friends = len(e.social.GetFriendsAtVenue(d.VenueID))
	}
	return f
}

// selectType picks the rule table for a venue.
func selectType(f Facts) string {
	switch {
	case f.Hour >= 18 && f.Hour < 22:
		return TypeEveningRush
	case f.Weekend || f.CrowdLevel >= 70 || f.Friends >= 2:
		return TypePeakHours
	default:
		return TypeWeeknightOptimal
	}
}

func (e *Engine) newPrediction(f Facts, kind Kind, pt string, g Generated, now time.Time) VenuePrediction {
	return VenuePrediction{
		ID:             uuid.NewString(),
		VenueID:        f.VenueID,
		VenueName:      f.VenueName,
		Kind:           kind,
		PredictionType: pt,
		Prediction:     g.Outcome,
		Confidence:     g.Confidence,
		Timeframe:      g.Timeframe,
		Message:        g.Message,
		ActionLabel:    g.ActionLabel,
		Rule:           g.Rule,
		CreatedAt:      now,
	}
}

// timingSuggestion recommends the live venue with the shortest wait, then lowest crowd.
func (e *Engine) timingSuggestion(live []livedata.LiveVenueData, now time.Time, directions map[string]trend.Direction) (VenuePrediction, bool) {
	if len(live) == 0 {
		return VenuePrediction{}, false
	}
	best := live[0]
	for _, d := range live[1:] {
		if d.WaitTime < best.WaitTime || (d.WaitTime == best.WaitTime && d.CrowdLevel < best.CrowdLevel) {
			best = d
		}
	}
	f := e.facts(best, now, directions)
	conf := 0.6
	if f.CrowdLevel < 50 {
		conf = 0.7
	}
	return e.newPrediction(f, KindTimingSuggestion, "", Generated{
		Outcome:     OutcomeOptimalTime,
		Confidence:  conf,
		Timeframe:   "next hour",
		Message:     "Now is a good time to head out. " + f.VenueName + " has the shortest wait.",
		ActionLabel: "Get directions",
		Rule:        "evening-window",
	}, now), true
}

func (e *Engine) socialOpportunities(now time.Time) []VenuePrediction {
	if e.social == nil {
		return nil
	}
	var out []VenuePrediction
	for _, m := range e.social.GetGroupMovements() {
		if len(out) >= e.cfg.MaxSocial {
			break
		}
		name := m.VenueName
		if v, ok := e.live.Venue(m.VenueID); ok && name == "" {
			name = v.Name
		}
		if name == "" {
			name = m.VenueID
		}
		out = append(out, e.newPrediction(Facts{VenueID: m.VenueID, VenueName: name}, KindSocialOpportunity, "", Generated{
			Outcome:     OutcomeFriendsGather,
			Confidence:  m.Confidence,
			Timeframe:   "next 20 minutes",
			Message:     "A group of your friends is heading to " + name + ".",
			ActionLabel: "Join them",
			Rule:        "group-movement",
		}, now))
	}
	return out
}

func (e *Engine) valid(ctx context.Context, p VenuePrediction) bool {
	conf := p.Confidence
	res := e.validator.ValidatePrediction(ctx, validator.PredictionSchema{
		VenueID:    p.VenueID,
		Prediction: string(p.Prediction),
		Confidence: &conf,
	})
	if !res.OK() {
		e.logger.Warn("dropping invalid prediction", "venue_id", p.VenueID, "kind", p.Kind, "error", res.Err)
		return false
	}
	return true
}

func (e *Engine) pruneLocked(now time.Time) {
	for id, p := range e.issued {
		if now.Sub(p.CreatedAt) > e.cfg.HistoryTTL {
			delete(e.issued, id)
		}
	}
}

// GetCachedPredictions returns the newest prediction per venue by confidence.
func (e *Engine) GetCachedPredictions() []VenuePrediction {
	e.mu.RLock()
	out := make([]VenuePrediction, 0, len(e.cache))
	for _, p := range e.cache {
		out = append(out, p)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].VenueID < out[j].VenueID
	})
	return out
}

// GetPrediction returns the cached prediction for a venue.
func (e *Engine) GetPrediction(venueID string) (VenuePrediction, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.cache[venueID]
	return p, ok
}

// UpdatePredictionAccuracy records feedback for an issued prediction.
// It does not change future confidence; it reports whether the id was known.
func (e *Engine) UpdatePredictionAccuracy(ctx context.Context, id string, wasAccurate bool) bool {
	e.mu.RLock()
	p, ok := e.issued[id]
	e.mu.RUnlock()
	if !ok {
		e.logger.Debug("accuracy feedback for unknown prediction", "prediction_id", id)
		return false
	}

	e.logger.Info("prediction accuracy feedback",
		"prediction_id", id,
		"venue_id", p.VenueID,
		"kind", p.Kind,
		"accurate", wasAccurate,
	)
	if e.recorder != nil {
		e.recorder.Track(ctx, eventlog.TypePredictionOutcome, eventlog.ToData(eventlog.PredictionOutcome{
			PredictionID: id,
			VenueID:      p.VenueID,
			WasAccurate:  wasAccurate,
		}, map[string]any{"kind": string(p.Kind)}), eventlog.SourceUserAction)
	}
	e.metrics.RecordPredictionOutcome(ctx, string(p.Kind), wasAccurate)
	return true
}
