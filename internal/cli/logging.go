package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/config"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/confkit"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
)

// ConfigSummaryLines describes the loaded engine config without secrets.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		"Environment: " + cfg.Env,
		"Redis: " + redisLine(cfg),
		"S3: " + s3Line(cfg.S3),
		"Postgres archive: " + postgresLine(cfg.Postgres),
		"Queue: " + queueLine(cfg.Queue),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		fmt.Sprintf("Datasets: %s (codec=%s compress=%t export=%s)",
			strings.Join(cfg.Fetch.Datasets, ","), cfg.Fetch.Codec, cfg.Fetch.Compress, exportLine(cfg.Fetch)),
		sectionLine("Market config", cfg.Market, marketDetail),
		sectionLine("Backtest config", cfg.Backtest, nil),
	}
	if len(cfg.Fetch.Tickers) > 0 {
		lines = append(lines, fmt.Sprintf("Tickers: %s every %ds", strings.Join(cfg.Fetch.Tickers, ","), cfg.Fetch.Interval))
	}
	return lines
}

// LogConfigSummary writes ConfigSummaryLines through logx.
func LogConfigSummary(cfg *config.Config) {
	logx.Info("configuration summary")
	for _, line := range ConfigSummaryLines(cfg) {
		logx.Infof("config • %s", line)
	}
}

func redisLine(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Redis.Host) == "" {
		return "not configured"
	}
	if cfg.Fetch.RedisTTL > 0 {
		return fmt.Sprintf("%s (batch ttl %ds)", cfg.Redis.Host, cfg.Fetch.RedisTTL)
	}
	return cfg.Redis.Host
}

func postgresLine(c config.PostgresConf) string {
	if c.DSN == "" {
		return "not configured"
	}
	return fmt.Sprintf("configured (pool %d/%d)", c.MaxOpen, c.MaxIdle)
}

func s3Line(c config.S3Conf) string {
	if !c.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("%s/%s", c.Endpoint, c.Bucket)
}

func queueLine(c config.QueueConf) string {
	if c.Disabled {
		return "disabled (tasks run inline)"
	}
	return fmt.Sprintf("%s concurrency=%d retries=%d", c.Name, c.Concurrency, c.MaxRetry)
}

func exportLine(c config.FetchConf) string {
	if c.ExportDir == "" {
		return "off"
	}
	return fmt.Sprintf("%s:%s", c.ExportFormat, c.ExportDir)
}

func marketDetail(c *market.Config) string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("providers=%s default=%s pricing=%s", strings.Join(names, ","), c.Default, c.DefaultPricing)
}

func sectionLine[T any](name string, section confkit.Section[T], detail func(*T) string) string {
	switch {
	case section.Loaded() && detail != nil:
		return fmt.Sprintf("%s: %s (%s)", name, section.File, detail(section.Value))
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	default:
		return name + ": not configured"
	}
}
