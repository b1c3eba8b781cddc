package tradier

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

const defaultProviderTimeout = 15 * time.Second

// Provider serves Tradier option chains and daily history.
type Provider struct {
	client          *Client
	timeout         time.Duration
	strikeWindow    float64
	maxStrikeOffset int
	persistence     market.Persistence
	providerID      string
}

type providerConfig struct {
	token           string
	timeout         time.Duration
	strikeWindow    float64
	maxStrikeOffset int
	clientConfig    []rest.Option
}

// ProviderOption customises the Tradier provider.
type ProviderOption func(*providerConfig)

// WithToken sets the API access token.
func WithToken(token string) ProviderOption {
	return func(cfg *providerConfig) { cfg.token = token }
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

// NewProvider constructs a Tradier provider.
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
		client:          NewClient(cfg.token, cfg.clientConfig...),
		timeout:         cfg.timeout,
		strikeWindow:    cfg.strikeWindow,
		maxStrikeOffset: cfg.maxStrikeOffset,
		providerID:      providerName,
	}
}

func init() {
	market.RegisterProvider(providerName, func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		opts := []ProviderOption{
			WithToken(cfg.Token),
			WithStrikeWindow(cfg.StrikeWindow, cfg.MaxStrikeOffset),
		}
		clientOptions := []rest.Option{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		if cfg.HTTPTimeout > 0 {
			clientOptions = append(clientOptions, rest.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
		}
		switch {
		case cfg.BaseURL != "":
			clientOptions = append(clientOptions, rest.WithBaseURL(cfg.BaseURL))
		case cfg.Sandbox:
			clientOptions = append(clientOptions, rest.WithBaseURL(sandboxBaseURL))
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
func (p *Provider) DatasetPrefix() string { return options.PrefixTradier }

// SetPersistence wires a persistence layer for fetched chains.
func (p *Provider) SetPersistence(persist market.Persistence) {
	p.persistence = persist
}

// FetchOptions implements market.OptionsProvider.
func (p *Provider) FetchOptions(ctx context.Context, req market.ChainRequest) (options.Result, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	stamp := market.NewChainStamp(req)
	quotes, err := p.client.OptionChain(ctx, stamp.Ticker, stamp.Expiration)
	if err != nil {
		p.logFailure(ctx, stamp, req.Side, err)
		return options.Failed(err), err
	}

	batch := make(options.Batch, 0, len(quotes))
	for _, q := range quotes {
		if !q.Keep(req.Side) {
			continue
		}
		rec := q.Record()
		stamp.Apply(rec)
		batch = append(batch, options.Normalize(rec))
	}
	batch = market.WindowStrikes(batch, req.LatestClose, p.strikeWindow, p.maxStrikeOffset)
	if len(batch) == 0 {
		logx.WithContext(ctx).Infof("tradier: no %s rows ticker=%s expiration=%s", req.Side, stamp.Ticker, stamp.Expiration.Format(options.DateLayout))
		return options.Empty(), nil
	}
	if p.persistence != nil {
		if err := p.persistence.RecordChain(ctx, p.providerID, req.Side, batch); err != nil {
			logx.WithContext(ctx).Errorf("tradier: persist chain ticker=%s side=%s err=%v", stamp.Ticker, req.Side, err)
		}
	}
	return options.Ok(batch), nil
}

// FetchBars implements market.PricingProvider for daily and weekly bars.
func (p *Provider) FetchBars(ctx context.Context, req market.BarsRequest) ([]market.Bar, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	bars, err := p.client.History(ctx, req.Ticker, req.Interval, req.From, req.To)
	if err != nil {
		return nil, err
	}
	if p.persistence != nil && len(bars) > 0 {
		if err := p.persistence.RecordBars(ctx, p.providerID, req.Ticker, bars); err != nil {
			logx.WithContext(ctx).Errorf("tradier: persist bars ticker=%s err=%v", req.Ticker, err)
		}
	}
	return bars, nil
}

func (p *Provider) logFailure(ctx context.Context, stamp market.ChainStamp, side options.ContractSide, err error) {
	var perr *market.ProviderError
	if errors.As(err, &perr) && perr.IsAuthFailure() {
		logx.Severef("tradier: token rejected status=%d ticker=%s side=%s; check the access token", perr.Status, stamp.Ticker, side)
		return
	}
	logx.WithContext(ctx).Errorf("tradier: fetch chain ticker=%s side=%s expiration=%s err=%v",
		stamp.Ticker, side, stamp.Expiration.Format(options.DateLayout), err)
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
