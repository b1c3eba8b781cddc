package cache

import (
	"strings"
	"time"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
)

// Namespace is the Redis key prefix for engine bookkeeping keys. Dataset
// batches are stored under their bare dataset keys.
const Namespace = "ae"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, time.Minute),
		Medium: durationOrDefault(cfg.Medium, 15*time.Minute),
		Long:   durationOrDefault(cfg.Long, 24*time.Hour),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled multiplies a class TTL by factor. A disabled class stays disabled.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

// key joins non-empty parts under Namespace, e.g. ae:fetch:status:SPY:tdcalls.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(Namespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// --- Fetch bookkeeping ------------------------------------------------------

// FetchStatusKey holds the outcome of the last fetch of a dataset.
func FetchStatusKey(ticker, dataset string) string {
	return key("fetch", "status", strings.ToUpper(ticker), dataset)
}

// LatestCloseKey caches the underlying's last close used to centre strikes.
func LatestCloseKey(ticker string) string {
	return key("price", "close", strings.ToUpper(ticker))
}

// LatestCreatedKey caches the newest archived fetch stamp per chain side.
func LatestCreatedKey(provider, ticker, side string) string {
	return key("archive", "created", provider, strings.ToUpper(ticker), side)
}

// --- Tasks & algorithms -----------------------------------------------------

// TaskLockKey guards against two workers running the same task at once.
func TaskLockKey(taskType, subject string) string {
	return key("lock", "task", taskType, strings.ToUpper(subject))
}

// AlgoResultKey holds a finished backtest summary.
func AlgoResultKey(runID string) string {
	return key("algo", "result", runID)
}

// --- TTL Helpers ------------------------------------------------------------

// FetchStatusTTL keeps fetch outcomes for a trading day.
func FetchStatusTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// LatestCloseTTL returns the TTL for cached closes.
func LatestCloseTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// LatestCreatedTTL returns the TTL for archive stamp caches.
func LatestCreatedTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// TaskLockTTL returns the TTL for task locks.
func TaskLockTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLMedium, 0.5)
}

// AlgoResultTTL returns the TTL for backtest summaries.
func AlgoResultTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLLong, 7)
}
