// Package server wires the nova services together and serves the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/nova/internal/profile"
	"github.com/hrygo/nova/plugin/ai/aitime"
	"github.com/hrygo/nova/plugin/ai/assistant"
	novactx "github.com/hrygo/nova/plugin/ai/context"
	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/eventlog"
	"github.com/hrygo/nova/plugin/ai/livedata"
	"github.com/hrygo/nova/plugin/ai/llm"
	"github.com/hrygo/nova/plugin/ai/memory"
	"github.com/hrygo/nova/plugin/ai/metrics"
	"github.com/hrygo/nova/plugin/ai/notify"
	"github.com/hrygo/nova/plugin/ai/prediction"
	"github.com/hrygo/nova/plugin/ai/router"
	"github.com/hrygo/nova/plugin/ai/social"
	"github.com/hrygo/nova/plugin/ai/stream"
	"github.com/hrygo/nova/plugin/ai/timeout"
	"github.com/hrygo/nova/plugin/ai/trend"
	ratelimit "github.com/hrygo/nova/server/middleware"
	apiv1 "github.com/hrygo/nova/server/router/api/v1"
	"github.com/hrygo/nova/server/runner/cleanup"
	"github.com/hrygo/nova/store"
)

// IdleSessionTTL is how long an unused chat session is kept.
const IdleSessionTTL = 24 * time.Hour

// Server owns every nova service and the HTTP server in front of them.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	Stream        *stream.Manager
	Errors        *errlog.Handler
	Events        *eventlog.Tracker
	Memory        *memory.Service
	Context       *novactx.Manager
	Live          *livedata.Aggregator
	Social        *social.Intelligence
	Trends        *trend.Analyzer
	Predictions   *prediction.Engine
	Notifications *notify.Engine
	Assistant     *assistant.Service
	Metrics       *metrics.Service
	Cleanup       *cleanup.Runner

	limiter    *ratelimit.RateLimiter
	echoServer *echo.Echo
	unfollow   func()
	shutdown   sync.Once
}

// NewServer builds the service graph. Nothing runs until Start.
func NewServer(ctx context.Context, profile *profile.Profile, st *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   st,
		Stream:  stream.NewManager(),
		limiter: ratelimit.NewRateLimiter(ratelimit.DefaultRateLimitConfig()),
	}
	clock := aitime.SystemClock{}

	if profile.RedisAddr != "" {
		remote, err := stream.NewRedisRemote(ctx, profile.RedisAddr, profile.RedisChannel)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect stream to redis")
		}
		if err := s.Stream.Attach(ctx, remote); err != nil {
			return nil, err
		}
		slog.Info("stream fan-out attached", "addr", profile.RedisAddr, "channel", profile.RedisChannel)
	}

	s.Errors = errlog.NewHandler(st, nil, clock)
	if err := s.Errors.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to load error log")
	}

	s.Events = eventlog.NewTracker(st, &eventlog.Config{UserID: profile.UserID}).
		WithClock(clock).
		WithReporter(s.Errors).
		WithPublisher(s.Stream)
	if err := s.Events.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to load event log")
	}

	s.Memory = memory.NewService(st).WithClock(clock).WithReporter(s.Errors)
	s.unfollow = s.Memory.Follow(s.Stream)

	reference := eventlog.Location{Lat: profile.Latitude, Lng: profile.Longitude}
	s.Social = social.NewIntelligence(social.Config{Reference: reference}).
		WithClock(clock).
		WithEventLog(s.Events).
		WithPublisher(s.Stream).
		WithReporter(s.Errors)
	s.Events.WithSituation(&situation{reference: reference, social: s.Social})

	s.Context = novactx.NewManager(s.Events, novactx.DefaultConfig()).
		WithMemory(s.Memory).
		WithClock(clock)
	if profile.SocialContext {
		s.Context.WithSocial(s.Social)
	}

	s.Live = livedata.NewAggregator(livedata.DefaultConfig()).
		WithClock(clock).
		WithRecorder(s.Events).
		WithPublisher(s.Stream).
		WithReporter(s.Errors)
	s.Trends = trend.NewAnalyzer(s.Events).WithClock(clock)
	s.Metrics = metrics.NewService(st, metrics.DefaultPersisterConfig(), clock)

	s.Predictions = prediction.NewEngine(s.Live, prediction.DefaultConfig()).
		WithTrends(s.Trends).
		WithSocial(s.Social).
		WithReporter(s.Errors).
		WithRecorder(s.Events).
		WithMetrics(s.Metrics).
		WithPublisher(s.Stream).
		WithClock(clock)

	dispatcher := notify.NewDispatcher().WithReporter(s.Errors)
	dispatcher.Register(notify.NewStreamChannel(s.Stream))
	if profile.IsTelegramEnabled() {
		tg, err := notify.NewTelegramChannel(profile.TelegramToken, strconv.FormatInt(profile.TelegramChatID, 10))
		if err != nil {
			slog.Warn("telegram delivery disabled", "error", err)
		} else {
			dispatcher.Register(tg)
		}
	}

	notifyCfg := notify.DefaultConfig()
	notifyCfg.QuietHours = &notify.QuietHours{Start: profile.QuietHoursStart, End: profile.QuietHoursEnd}
	notifyCfg.MaxPerHour = profile.MaxNotificationsPerHour
	s.Notifications = notify.NewEngine(s.Context, notifyCfg).
		WithPredictions(s.Predictions).
		WithProximity(s.Social).
		WithRecorder(s.Events).
		WithDispatcher(dispatcher).
		WithReporter(s.Errors).
		WithClock(clock)

	s.Assistant = newAssistant(profile, s)

	s.Cleanup = cleanup.NewRunner(cleanup.DefaultSchedule, s.cleanupJobs()...)

	s.echoServer = echo.New()
	s.echoServer.HideBanner = true
	s.echoServer.HidePort = true
	s.echoServer.Use(middleware.Recover())

	api := &apiv1.APIV1Service{
		Profile:       profile,
		Clock:         clock,
		Events:        s.Events,
		Memory:        s.Memory,
		Context:       s.Context,
		Live:          s.Live,
		Social:        s.Social,
		Trends:        s.Trends,
		Predictions:   s.Predictions,
		Notifications: s.Notifications,
		Assistant:     s.Assistant,
		Metrics:       s.Metrics,
		RateLimiter:   s.limiter,
	}
	if err := api.RegisterGateway(ctx, s.echoServer); err != nil {
		return nil, errors.Wrap(err, "failed to register API routes")
	}

	return s, nil
}

func newAssistant(profile *profile.Profile, s *Server) *assistant.Service {
	var model assistant.ChatModel
	routerCfg := router.Config{Model: profile.LLMModel}
	if profile.IsLLMEnabled() || profile.LLMProvider == "ollama" {
		client, err := llm.NewClient(&llm.Config{
			Provider:    profile.LLMProvider,
			BaseURL:     profile.LLMBaseURL,
			APIKey:      profile.LLMAPIKey,
			Model:       profile.LLMModel,
			MaxTokens:   profile.LLMMaxTokens,
			Temperature: profile.LLMTemperature,
			Timeout:     timeout.LLMTimeout,
			RetryBase:   time.Second,
		})
		if err != nil {
			slog.Warn("LLM disabled, chat falls back to local answers", "error", err)
		} else {
			client.WithReporter(s.Errors)
			model = client
			routerCfg.LLMClient = client
		}
	}

	return assistant.NewService(router.NewService(routerCfg), s.Context, model, assistant.DefaultConfig()).
		WithMemory(s.Memory).
		WithRecorder(s.Events).
		WithMetrics(s.Metrics).
		WithReporter(s.Errors)
}

func (s *Server) cleanupJobs() []cleanup.Job {
	return []cleanup.Job{
		{Name: "events", Run: s.Events.Cleanup},
		{Name: "errors", Run: s.Errors.Cleanup},
		{Name: "memory", Run: func(ctx context.Context) int {
			if s.Memory.Expire(ctx) {
				return 1
			}
			return 0
		}},
		{Name: "sessions", Run: func(context.Context) int { return s.Assistant.Prune(IdleSessionTTL) }},
		{Name: "rate_limits", Run: func(context.Context) int { return s.limiter.Prune() }},
	}
}

// Start runs the background loops and the HTTP server until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.Metrics.Start(ctx)
	s.Live.Start(ctx)
	s.Social.Start(ctx)
	s.Predictions.Start(ctx)
	s.Notifications.Start(ctx)
	if err := s.Cleanup.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start cleanup runner")
	}

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("nova server listening", "address", address, "mode", s.Profile.Mode, "version", s.Profile.Version)
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "failed to start HTTP server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout.ShutdownTimeout)
		defer cancel()
		s.Shutdown(shutdownCtx)
		return nil
	})
	return g.Wait()
}

// Shutdown stops the HTTP server and every loop, then flushes and closes storage.
func (s *Server) Shutdown(ctx context.Context) {
	s.shutdown.Do(func() {
		if err := s.echoServer.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown HTTP server", "error", err)
		}
		s.Notifications.Stop()
		s.unfollow()
		s.Predictions.Stop()
		s.Social.Stop()
		s.Live.Stop()
		s.Cleanup.Stop()
		s.Metrics.Close()
		if err := s.Stream.Close(); err != nil {
			slog.Error("failed to close stream", "error", err)
		}
		if err := s.Store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
		slog.Info("nova server stopped")
	})
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// situation feeds event context from the reference location and live social signals.
type situation struct {
	reference eventlog.Location
	social    *social.Intelligence
}

func (p *situation) Situation(context.Context) eventlog.Situation {
	n := p.social.NearbyFriendCount()
	sit := eventlog.Situation{FriendsNearby: &n}
	if p.reference != (eventlog.Location{}) {
		ref := p.reference
		sit.Location = &ref
	}
	return sit
}
