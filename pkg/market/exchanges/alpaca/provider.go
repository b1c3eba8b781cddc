package alpaca

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/rest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

const defaultProviderTimeout = 30 * time.Second

// Provider serves Alpaca option snapshots and stock bars.
type Provider struct {
	client          *Client
	timeout         time.Duration
	strikeWindow    float64
	maxStrikeOffset int
	persistence     market.Persistence
	providerID      string
}

type providerConfig struct {
	keyID, secret, feed string
	timeout             time.Duration
	strikeWindow        float64
	maxStrikeOffset     int
	clientConfig        []rest.Option
}

// ProviderOption customises the Alpaca provider.
type ProviderOption func(*providerConfig)

// WithCredentials sets the API key pair.
func WithCredentials(keyID, secret string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.keyID = keyID
		cfg.secret = secret
	}
}

// WithFeed selects the options data feed.
func WithFeed(feed string) ProviderOption {
	return func(cfg *providerConfig) { cfg.feed = feed }
}

// WithTimeout overrides the default per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(cfg *providerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithStrikeWindow sets the strike filter applied to every chain.
func WithStrikeWindow(window float64, maxOffset int) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.strikeWindow = window
		cfg.maxStrikeOffset = maxOffset
	}
}

// WithClientOptions passes options to the underlying REST client.
func WithClientOptions(opts ...rest.Option) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.clientConfig = append(cfg.clientConfig, opts...)
	}
}

// NewProvider constructs an Alpaca provider.
func NewProvider(opts ...ProviderOption) *Provider {
	cfg := &providerConfig{
		timeout:         defaultProviderTimeout,
		strikeWindow:    market.DefaultStrikeWindow,
		maxStrikeOffset: market.DefaultMaxStrikeOffset,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Provider{
		client:          NewClient(cfg.keyID, cfg.secret, cfg.feed, cfg.clientConfig...),
		timeout:         cfg.timeout,
		strikeWindow:    cfg.strikeWindow,
		maxStrikeOffset: cfg.maxStrikeOffset,
		providerID:      providerName,
	}
}

func init() {
	market.RegisterProvider(providerName, func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		opts := []ProviderOption{
			WithCredentials(cfg.KeyID, cfg.Secret),
			WithFeed(cfg.Feed),
			WithStrikeWindow(cfg.StrikeWindow, cfg.MaxStrikeOffset),
		}
		clientOptions := []rest.Option{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.HTTPTimeout > 0 {
			clientOptions = append(clientOptions, rest.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		if cfg.BaseURL != "" {
			clientOptions = append(clientOptions, rest.WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxRetries > 0 {
			clientOptions = append(clientOptions, rest.WithMaxRetries(cfg.MaxRetries))
		}
		if cfg.RateLimit > 0 {
			clientOptions = append(clientOptions, rest.WithRateLimit(cfg.RateLimit, cfg.Burst))
		}
		if len(clientOptions) > 0 {
			opts = append(opts, WithClientOptions(clientOptions...))
		}
		provider := NewProvider(opts...)
		provider.providerID = name
		return provider, nil
	})
}

// Name implements market.Provider.
func (p *Provider) Name() string { return p.providerID }

// DatasetPrefix implements market.OptionsProvider.
func (p *Provider) DatasetPrefix() string { return options.PrefixAlpaca }

// SetPersistence wires a persistence layer for fetched data.
func (p *Provider) SetPersistence(persist market.Persistence) {
	p.persistence = persist
}

// FetchOptions implements market.OptionsProvider.
func (p *Provider) FetchOptions(ctx context.Context, req market.ChainRequest) (options.Result, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	stamp := market.NewChainStamp(req)
	contracts, err := p.client.OptionSnapshots(ctx, stamp.Ticker, req.Side, stamp.Expiration)
	if err != nil {
		var perr *market.ProviderError
		if errors.As(err, &perr) && perr.IsAuthFailure() {
			logx.Severef("alpaca: credentials rejected status=%d ticker=%s side=%s", perr.Status, stamp.Ticker, req.Side)
		} else {
			logx.WithContext(ctx).Errorf("alpaca: fetch snapshots ticker=%s side=%s err=%v", stamp.Ticker, req.Side, err)
		}
		return options.Failed(err), err
	}

	batch := make(options.Batch, 0, len(contracts))
	for _, c := range contracts {
		if !c.Keep(req.Side) {
			continue
		}
		rec := c.Record()
		stamp.Apply(rec)
		batch = append(batch, options.Normalize(rec))
	}
	batch = market.WindowStrikes(batch, req.LatestClose, p.strikeWindow, p.maxStrikeOffset)
	if len(batch) == 0 {
		return options.Empty(), nil
	}
	if p.persistence != nil {
		if err := p.persistence.RecordChain(ctx, p.providerID, req.Side, batch); err != nil {
			logx.WithContext(ctx).Errorf("alpaca: persist chain ticker=%s side=%s err=%v", stamp.Ticker, req.Side, err)
		}
	}
	return options.Ok(batch), nil
}

// FetchBars implements market.PricingProvider.
func (p *Provider) FetchBars(ctx context.Context, req market.BarsRequest) ([]market.Bar, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	bars, err := p.client.StockBars(ctx, req.Ticker, req.Interval, req.From, req.To)
	if err != nil {
		return nil, err
	}
	if p.persistence != nil && len(bars) > 0 {
		if err := p.persistence.RecordBars(ctx, p.providerID, req.Ticker, bars); err != nil {
			logx.WithContext(ctx).Errorf("alpaca: persist bars ticker=%s err=%v", req.Ticker, err)
		}
	}
	return bars, nil
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
