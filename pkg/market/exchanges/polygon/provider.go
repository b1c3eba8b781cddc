package polygon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
)

const (
	providerName            = "polygon"
	defaultProviderTimeout  = 30 * time.Second
	defaultAggregatesPerReq = 50000
)

// Provider serves aggregate bars from Polygon.
type Provider struct {
	client      *polygon.Client
	timeout     time.Duration
	persistence market.Persistence
	providerID  string
}

type providerConfig struct {
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// ProviderOption customises the Polygon provider.
type ProviderOption func(*providerConfig)

// WithAPIKey sets the Polygon API key.
func WithAPIKey(key string) ProviderOption {
	return func(cfg *providerConfig) { cfg.apiKey = key }
}

// WithTimeout overrides the default per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(cfg *providerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithHTTPClient injects the http.Client used by the Polygon SDK.
func WithHTTPClient(hc *http.Client) ProviderOption {
	return func(cfg *providerConfig) { cfg.httpClient = hc }
}

// NewProvider constructs a Polygon pricing provider.
func NewProvider(opts ...ProviderOption) *Provider {
	cfg := &providerConfig{timeout: defaultProviderTimeout}
	for _, opt := range opts {
		opt(cfg)
	}
	var client *polygon.Client
	if cfg.httpClient != nil {
		client = polygon.NewWithClient(cfg.apiKey, cfg.httpClient)
	} else {
		client = polygon.New(cfg.apiKey)
	}
	return &Provider{client: client, timeout: cfg.timeout, providerID: providerName}
}

func init() {
	market.RegisterProvider(providerName, func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		if cfg.Token == "" {
			return nil, fmt.Errorf("polygon: token is required")
		}
		opts := []ProviderOption{WithAPIKey(cfg.Token)}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.HTTPTimeout > 0 {
			opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		provider := NewProvider(opts...)
		provider.providerID = name
		return provider, nil
	})
}

// Name implements market.Provider.
func (p *Provider) Name() string { return p.providerID }

// SetPersistence wires a persistence layer for fetched bars.
func (p *Provider) SetPersistence(persist market.Persistence) {
	p.persistence = persist
}

// FetchBars implements market.PricingProvider.
func (p *Provider) FetchBars(ctx context.Context, req market.BarsRequest) ([]market.Bar, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	multiplier, timespan, err := aggregateSpan(req.Interval)
	if err != nil {
		return nil, err
	}
	ticker := strings.ToUpper(req.Ticker)
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(req.From),
		To:         models.Millis(req.To),
	}.WithLimit(defaultAggregatesPerReq)

	var bars []market.Bar
	iter := p.client.ListAggs(ctx, params)
	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, market.Bar{
			Ticker: ticker,
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, &market.ProviderError{Provider: p.providerID, Err: err}
	}
	if p.persistence != nil && len(bars) > 0 {
		if err := p.persistence.RecordBars(ctx, p.providerID, ticker, bars); err != nil {
			logx.WithContext(ctx).Errorf("polygon: persist bars ticker=%s err=%v", ticker, err)
		}
	}
	return bars, nil
}

func aggregateSpan(interval market.Interval) (int, models.Timespan, error) {
	switch interval {
	case market.IntervalMinute:
		return 1, models.Minute, nil
	case market.IntervalHour:
		return 1, models.Hour, nil
	case market.IntervalDay, "":
		return 1, models.Day, nil
	case market.IntervalWeek:
		return 1, models.Week, nil
	default:
		return 0, "", fmt.Errorf("polygon: unsupported interval %q", interval)
	}
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
