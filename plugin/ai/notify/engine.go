package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/time/rate"

	"github.com/hrygo/nova/plugin/ai/aitime"
	novactx "github.com/hrygo/nova/plugin/ai/context"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/loop"
	"github.com/hrygo/nova/plugin/ai/prediction"
	"github.com/hrygo/nova/plugin/ai/social"
	"github.com/hrygo/nova/plugin/ai/timeout"
	"github.com/hrygo/nova/plugin/ai/validator"
)

// ContextSource supplies the local context snapshot.
type ContextSource interface {
	GetLocalContext(ctx context.Context) *novactx.LocalContext
}

// PredictionSource supplies cached predictions.
type PredictionSource interface {
	GetCachedPredictions() []prediction.VenuePrediction
}

// ProximitySource supplies recent proximity alerts.
type ProximitySource interface {
	GetProximityAlerts() []social.ProximityAlert
}

// EventRecorder records events in the event log.
type EventRecorder interface {
	Track(ctx context.Context, eventType eventlog.EventType, data map[string]any, source eventlog.Source) eventlog.UserEvent
}

// Config configures the engine.
type Config struct {
	Disabled      bool
	QuietHours    *QuietHours   // nil uses DefaultQuietHours
	DisabledTypes []Type        // types that never fire
	MaxPerHour    int           // global cap across triggers, 0 disables it
	CheckInterval time.Duration // default: 60s
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	q := DefaultQuietHours
	return Config{
		QuietHours:    &q,
		MaxPerHour:    3,
		CheckInterval: timeout.NotificationCheckInterval,
	}
}

// Engine owns the notification map and the per-trigger cooldowns.
type Engine struct {
	triggers    []Trigger
	contexts    ContextSource
	predictions PredictionSource
	proximity   ProximitySource
	recorder    EventRecorder
	dispatcher  *Dispatcher
	validator   *validator.Validator
	clock       aitime.Clock
	logger      *slog.Logger
	loop        *loop.Loop

	mu            sync.RWMutex
	enabled       bool
	quiet         QuietHours
	disabledTypes map[Type]bool
	limiter       *rate.Limiter
	lastFired     map[string]time.Time
	notifications map[string]*Notification
}

// NewEngine creates a stopped engine with the default trigger table.
func NewEngine(contexts ContextSource, cfg Config) *Engine {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = timeout.NotificationCheckInterval
	}
	quiet := DefaultQuietHours
	if cfg.QuietHours != nil {
		quiet = *cfg.QuietHours
	}

	e := &Engine{
		triggers:      DefaultTriggers(),
		contexts:      contexts,
		dispatcher:    NewDispatcher(),
		validator:     validator.New(nil),
		clock:         aitime.SystemClock{},
		logger:        slog.Default().With("component", "notify"),
		enabled:       !cfg.Disabled,
		quiet:         quiet,
		disabledTypes: map[Type]bool{},
		lastFired:     map[string]time.Time{},
		notifications: map[string]*Notification{},
	}
	for _, t := range cfg.DisabledTypes {
		e.disabledTypes[t] = true
	}
	e.SetMaxPerHour(cfg.MaxPerHour)
	e.loop = loop.New("notify", cfg.CheckInterval, func(ctx context.Context) { e.CheckForNotifications(ctx) })
	return e
}

// WithTriggers replaces the trigger table.
func (e *Engine) WithTriggers(triggers []Trigger) *Engine {
	e.triggers = triggers
	return e
}

// WithPredictions sets the prediction cache reader.
func (e *Engine) WithPredictions(p PredictionSource) *Engine {
	e.predictions = p
	return e
}

// WithProximity sets the proximity alert reader.
func (e *Engine) WithProximity(p ProximitySource) *Engine {
	e.proximity = p
	return e
}

// WithRecorder sets where notification events are tracked.
func (e *Engine) WithRecorder(r EventRecorder) *Engine {
	e.recorder = r
	return e
}

// WithDispatcher sets the delivery channels.
func (e *Engine) WithDispatcher(d *Dispatcher) *Engine {
	if d != nil {
		e.dispatcher = d
	}
	return e
}

// WithReporter sets where validation and delivery failures are reported.
func (e *Engine) WithReporter(r errlog.Reporter) *Engine {
	e.validator = validator.New(r)
	e.dispatcher.WithReporter(r)
	return e
}

// WithClock sets the clock.
func (e *Engine) WithClock(c aitime.Clock) *Engine {
	e.clock = aitime.OrSystem(c)
	return e
}

// SetEnabled toggles all notifications.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// SetQuietHours replaces the quiet window.
func (e *Engine) SetQuietHours(q QuietHours) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quiet = q
}

// SetTypeEnabled toggles one notification type.
func (e *Engine) SetTypeEnabled(t Type, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if enabled {
		delete(e.disabledTypes, t)
	} else {
		e.disabledTypes[t] = true
	}
}

// SetMaxPerHour sets the global hourly cap. Zero removes it.
func (e *Engine) SetMaxPerHour(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 {
		e.limiter = nil
		return
	}
	e.limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(n)), n)
}

// Start begins the check loop.
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

// InQuietHours reports whether t falls in the quiet window.
func (e *Engine) InQuietHours(t time.Time) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return aitime.InHourWindow(t.Hour(), e.quiet.Start, e.quiet.End)
}

// CheckForNotifications purges expired notifications, then evaluates every
// enabled trigger outside its cooldown and returns the notifications created.
// Nothing fires while disabled or in quiet hours.
func (e *Engine) CheckForNotifications(ctx context.Context) []Notification {
	now := e.clock.Now()

	e.mu.Lock()
	e.purgeLocked(now)
	enabled := e.enabled
	e.mu.Unlock()

	if !enabled || e.InQuietHours(now) {
		return nil
	}

	in := e.input(ctx, now)

	var created []*Notification
	e.mu.Lock()
	for _, t := range e.triggers {
		if e.disabledTypes[t.Type] {
			continue
		}
		if last, ok := e.lastFired[t.Name]; ok && now.Sub(last) < t.Cooldown {
			continue
		}
		if t.Condition == nil || !t.Condition(in) {
			continue
		}

		n := e.build(t, in, now)
		if !e.valid(ctx, n) {
			continue
		}
		// Only valid notifications count against the hourly cap.
		if e.limiter != nil && !e.limiter.AllowN(now, 1) {
			e.logger.Debug("hourly notification cap reached", "trigger", t.Name)
			break
		}
		e.notifications[n.ID] = n
		e.lastFired[t.Name] = now
		created = append(created, n)
	}
	out := make([]Notification, 0, len(created))
	for _, n := range created {
		out = append(out, *n)
	}
	e.mu.Unlock()

	for _, n := range out {
		e.logger.Info("notification created", "id", n.ID, "type", n.Type, "priority", n.Priority)
		e.track(ctx, eventlog.NotificationGenerated{
			NotificationID:   n.ID,
			NotificationType: string(n.Type),
			Priority:         string(n.Priority),
		}, eventlog.SourceSystem, map[string]any{"trigger": n.Trigger})
		e.dispatcher.Broadcast(ctx, n)
	}
	return out
}

func (e *Engine) input(ctx context.Context, now time.Time) Input {
	in := Input{Now: now}
	if e.contexts != nil {
		in.Context = e.contexts.GetLocalContext(ctx)
	}
	if e.predictions != nil {
		in.Predictions = e.predictions.GetCachedPredictions()
	}
	if e.proximity != nil {
		in.Alerts = e.proximity.GetProximityAlerts()
	}
	return in
}

func (e *Engine) build(t Trigger, in Input, now time.Time) *Notification {
	d := t.Build(in)
	priority := t.Priority
	if d.Priority != "" {
		priority = d.Priority
	}
	return &Notification{
		ID:          shortuuid.New(),
		Type:        t.Type,
		Trigger:     t.Name,
		Priority:    priority,
		Title:       d.Title,
		Message:     d.Message,
		ActionLabel: d.ActionLabel,
		VenueID:     d.VenueID,
		Data:        d.Data,
		CreatedAt:   now,
		ExpiresAt:   now.Add(t.Expiry),
	}
}

func (e *Engine) valid(ctx context.Context, n *Notification) bool {
	res := e.validator.ValidateNotification(ctx, validator.NotificationSchema{
		ID:        n.ID,
		Type:      string(n.Type),
		Priority:  string(n.Priority),
		Title:     n.Title,
		Message:   n.Message,
		ExpiresAt: n.ExpiresAt,
	})
	if !res.OK() {
		e.logger.Warn("dropping invalid notification", "trigger", n.Trigger, "error", res.Err)
		return false
	}
	return true
}

func (e *Engine) purgeLocked(now time.Time) {
	for id, n := range e.notifications {
		if n.Expired(now) {
			delete(e.notifications, id)
		}
	}
}

func (e *Engine) track(ctx context.Context, p eventlog.Payload, source eventlog.Source, extra map[string]any) {
	if e.recorder == nil {
		return
	}
	e.recorder.Track(ctx, p.EventType(), eventlog.ToData(p, extra), source)
}

// GetPendingNotifications returns unshown, unexpired notifications, highest priority first.
func (e *Engine) GetPendingNotifications() []Notification {
	now := e.clock.Now()
	e.mu.RLock()
	var out []Notification
	for _, n := range e.notifications {
		if !n.Shown && !n.Expired(now) {
			out = append(out, *n)
		}
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri > rj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns a notification by id.
func (e *Engine) Get(id string) (Notification, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.notifications[id]
	if !ok {
		return Notification{}, false
	}
	return *n, true
}

// MarkShown marks a notification as displayed and records a notification_shown event.
func (e *Engine) MarkShown(ctx context.Context, id string) bool {
	now := e.clock.Now()
	e.mu.Lock()
	n, ok := e.notifications[id]
	var nt Type
	if ok {
		if !n.Shown {
			n.Shown = true
			n.ShownAt = &now
		}
		nt = n.Type
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	e.track(ctx, eventlog.NotificationShown{NotificationID: id}, eventlog.SourceUserAction, map[string]any{"notificationType": string(nt)})
	return true
}

// TrackAction records what the user did with a notification. Acting on it also marks it shown.
func (e *Engine) TrackAction(ctx context.Context, id, action string) bool {
	now := e.clock.Now()
	e.mu.Lock()
	n, ok := e.notifications[id]
	var nt Type
	if ok {
		n.Action = action
		if !n.Shown {
			n.Shown = true
			n.ShownAt = &now
		}
		nt = n.Type
	}
	e.mu.Unlock()
	if !ok {
		return false
	}
	e.track(ctx, eventlog.NotificationAction{NotificationID: id, Action: action}, eventlog.SourceUserAction, map[string]any{"notificationType": string(nt)})
	return true
}
