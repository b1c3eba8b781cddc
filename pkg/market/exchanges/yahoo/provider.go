package yahoo

import (
	"context"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market/exchanges/rest"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

const defaultProviderTimeout = 15 * time.Second

// Provider serves Yahoo option chains and chart bars.
type Provider struct {
	client          *Client
	timeout         time.Duration
	strikeWindow    float64
	maxStrikeOffset int
	persistence     market.Persistence
	providerID      string
}

type providerConfig struct {
	timeout         time.Duration
	strikeWindow    float64
	maxStrikeOffset int
	clientConfig    []rest.Option
}

// ProviderOption customises the Yahoo provider.
type ProviderOption func(*providerConfig)

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

// NewProvider constructs a Yahoo provider.
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
		client:          NewClient(cfg.clientConfig...),
		timeout:         cfg.timeout,
		strikeWindow:    cfg.strikeWindow,
		maxStrikeOffset: cfg.maxStrikeOffset,
		providerID:      providerName,
	}
}

func init() {
	market.RegisterProvider(providerName, func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		opts := []ProviderOption{WithStrikeWindow(cfg.StrikeWindow, cfg.MaxStrikeOffset)}
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
func (p *Provider) DatasetPrefix() string { return options.PrefixYahoo }

// SetPersistence wires a persistence layer for fetched data.
func (p *Provider) SetPersistence(persist market.Persistence) {
	p.persistence = persist
}

// FetchOptions implements market.OptionsProvider. Without a latest close in
// the request the quote's regular market price centres the strike window.
func (p *Provider) FetchOptions(ctx context.Context, req market.ChainRequest) (options.Result, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	stamp := market.NewChainStamp(req)
	chain, err := p.client.OptionChain(ctx, stamp.Ticker, req.Side, stamp.Expiration)
	if err != nil {
		logx.WithContext(ctx).Errorf("yahoo: fetch chain ticker=%s side=%s err=%v", stamp.Ticker, req.Side, err)
		return options.Failed(err), err
	}

	batch := make(options.Batch, 0, len(chain.Contracts))
	for _, c := range chain.Contracts {
		if c.Get("bid").Float() <= market.MinBid {
			continue
		}
		rec := contractRecord(c, req.Side)
		stamp.Apply(rec)
		batch = append(batch, options.Normalize(rec))
	}
	latest := req.LatestClose
	if latest <= 0 {
		latest = chain.MarketPrice
	}
	batch = market.WindowStrikes(batch, latest, p.strikeWindow, p.maxStrikeOffset)
	if len(batch) == 0 {
		return options.Empty(), nil
	}
	if p.persistence != nil {
		if err := p.persistence.RecordChain(ctx, p.providerID, req.Side, batch); err != nil {
			logx.WithContext(ctx).Errorf("yahoo: persist chain ticker=%s side=%s err=%v", stamp.Ticker, req.Side, err)
		}
	}
	return options.Ok(batch), nil
}

// FetchBars implements market.PricingProvider.
func (p *Provider) FetchBars(ctx context.Context, req market.BarsRequest) ([]market.Bar, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	bars, err := p.client.Chart(ctx, req.Ticker, req.Interval, req.From, req.To)
	if err != nil {
		return nil, err
	}
	if p.persistence != nil && len(bars) > 0 {
		if err := p.persistence.RecordBars(ctx, p.providerID, req.Ticker, bars); err != nil {
			logx.WithContext(ctx).Errorf("yahoo: persist bars ticker=%s err=%v", req.Ticker, err)
		}
	}
	return bars, nil
}

func contractRecord(c gjson.Result, side options.ContractSide) options.Record {
	rec := options.Record{
		options.FieldStrike:     c.Get("strike").Float(),
		options.FieldOptionType: string(side),
		options.FieldBid:        c.Get("bid").Float(),
		options.FieldAsk:        c.Get("ask").Float(),
		options.FieldAskDate:    nil,
		options.FieldBidDate:    nil,
		options.FieldTradeDate:  nil,
	}
	if v := c.Get("lastPrice"); v.Exists() {
		rec[options.FieldLast] = v.Float()
	}
	if v := c.Get("volume"); v.Exists() {
		rec[options.FieldVolume] = v.Int()
	}
	if v := c.Get("openInterest"); v.Exists() {
		rec[options.FieldOpenInterest] = v.Int()
	}
	if v := c.Get("lastTradeDate").Int(); v > 0 {
		rec[options.FieldTradeDate] = market.FormatTick(time.Unix(v, 0))
	}
	if v := c.Get("expiration").Int(); v > 0 {
		rec[options.FieldExpirationDate] = time.Unix(v, 0).UTC().Format(options.DateLayout)
	}
	return rec
}
