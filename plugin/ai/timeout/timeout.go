// Package timeout defines centralized interval and timeout constants for the pipeline.
// Package timeout 定义管道的集中式间隔与超时常量。
package timeout

import "time"

// Background loop intervals.
// 后台循环间隔。
const (
	// SocialTickInterval drives group detection, trend decay and purging.
	// SocialTickInterval 驱动群组检测、趋势衰减与清理。
	SocialTickInterval = 15 * time.Second

	// LiveDataRefreshInterval is how often venue snapshots are regenerated.
	// LiveDataRefreshInterval 是场所快照的刷新间隔。
	LiveDataRefreshInterval = 30 * time.Second

	// PredictionCheckInterval is the predictive engine trigger-check period.
	// PredictionCheckInterval 是预测引擎的触发检查周期。
	PredictionCheckInterval = 60 * time.Second

	// NotificationCheckInterval is how often notification triggers are evaluated.
	NotificationCheckInterval = 60 * time.Second

	// ContextCacheTTL bounds how stale a local context snapshot may be.
	// ContextCacheTTL 是本地上下文快照的最大缓存时长。
	ContextCacheTTL = 5 * time.Minute
)

// Blocking call timeouts.
// 阻塞调用超时。
const (
	// LLMTimeout is the timeout for a single chat completion.
	// LLMTimeout 是单次对话补全的超时时间。
	LLMTimeout = 30 * time.Second

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout = 10 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	// MaxTruncateLength 是日志中字符串截断的最大长度。
	MaxTruncateLength = 200
)
