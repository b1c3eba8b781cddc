package optionsarchive

import (
	"context"
	"database/sql"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/internal/cache"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/market"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

var _ market.Persistence = (*Service)(nil)

const insertRowStmt = `
INSERT INTO public.option_rows (
    ticker, option_type, created, strike, provider, expiration_date, quote_date,
    bid, ask, last, bid_size, ask_size, volume, last_volume, open_interest,
    bid_date, ask_date, trade_date
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
)
ON CONFLICT (ticker, option_type, created, strike) DO NOTHING;`

const insertBarStmt = `
INSERT INTO public.price_bars (provider, ticker, ts, open, high, low, close, volume)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (provider, ticker, ts) DO UPDATE SET
    open = EXCLUDED.open,
    high = EXCLUDED.high,
    low = EXCLUDED.low,
    close = EXCLUDED.close,
    volume = EXCLUDED.volume;`

const latestCreatedStmt = `
SELECT COALESCE(to_char(MAX(created), 'YYYY-MM-DD HH24:MI:SS'), '')
FROM public.option_rows
WHERE ticker = $1 AND option_type = $2;`

// Service archives reconciled chains and bars in Postgres. The first write of
// a (ticker, option_type, created, strike) row wins, matching the in-memory
// reconciler.
type Service struct {
	sqlConn sqlx.SqlConn
	cache   gocache.Cache
	ttl     cachekeys.TTLSet
}

// Config enumerates dependencies required to archive option data.
type Config struct {
	SQLConn sqlx.SqlConn
	Cache   gocache.Cache
	TTL     cachekeys.TTLSet
}

// NewService wires the archive. Returns nil when no database is configured.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil {
		return nil
	}
	return &Service{sqlConn: cfg.SQLConn, cache: cfg.Cache, ttl: cfg.TTL}
}

// RecordChain inserts every row of batch in one transaction. Rows already
// archived are left untouched.
func (s *Service) RecordChain(ctx context.Context, provider string, side options.ContractSide, batch options.Batch) error {
	if s == nil || s.sqlConn == nil || len(batch) == 0 {
		return nil
	}
	rows, err := batch.Rows()
	if err != nil {
		return err
	}
	var ticker string
	err = s.sqlConn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, row := range rows {
			if row.Created == nil || row.Strike == nil || row.Ticker == nil {
				continue
			}
			ticker = *row.Ticker
			optionType := string(side)
			if row.OptionType != nil {
				optionType = string(*row.OptionType)
			}
			if _, err := session.ExecCtx(ctx, insertRowStmt,
				strings.ToUpper(*row.Ticker),
				optionType,
				*row.Created,
				*row.Strike,
				provider,
				nullString(row.ExpirationDate),
				nullString(row.QuoteDate),
				nullFloat(row.Bid),
				nullFloat(row.Ask),
				nullFloat(row.Last),
				nullInt(row.BidSize),
				nullInt(row.AskSize),
				nullInt(row.Volume),
				nullInt(row.LastVolume),
				nullInt(row.OpenInterest),
				nullString(row.BidDate),
				nullString(row.AskDate),
				nullString(row.TradeDate),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.forgetLatest(ctx, provider, ticker, side)
	return nil
}

// RecordBars upserts bars; a re-fetched bar replaces the stored one.
func (s *Service) RecordBars(ctx context.Context, provider, ticker string, bars []market.Bar) error {
	if s == nil || s.sqlConn == nil || len(bars) == 0 {
		return nil
	}
	ticker = strings.ToUpper(ticker)
	return s.sqlConn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, bar := range bars {
			if _, err := session.ExecCtx(ctx, insertBarStmt,
				provider, ticker, bar.Time.UTC(), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// LatestCreated returns the newest archived fetch stamp for a chain side, or
// "" when nothing is archived.
func (s *Service) LatestCreated(ctx context.Context, provider, ticker string, side options.ContractSide) (string, error) {
	if s == nil || s.sqlConn == nil {
		return "", nil
	}
	ticker = strings.ToUpper(ticker)
	query := func(v any) error {
		return s.sqlConn.QueryRowCtx(ctx, v, latestCreatedStmt, ticker, string(side))
	}
	var created string
	if s.cache == nil {
		err := query(&created)
		return created, err
	}
	key := cachekeys.LatestCreatedKey(provider, ticker, string(side))
	err := s.cache.GetCtx(ctx, key, &created)
	if err == nil {
		return created, nil
	}
	if !s.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("optionsarchive: read cache key=%s err=%v", key, err)
	}
	if err := query(&created); err != nil {
		return "", err
	}
	if created == "" {
		return created, nil
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, created, cachekeys.LatestCreatedTTL(s.ttl)); err != nil {
		logx.WithContext(ctx).Errorf("optionsarchive: cache latest key=%s err=%v", key, err)
	}
	return created, nil
}

func (s *Service) forgetLatest(ctx context.Context, provider, ticker string, side options.ContractSide) {
	if s.cache == nil || ticker == "" {
		return
	}
	key := cachekeys.LatestCreatedKey(provider, ticker, string(side))
	if err := s.cache.DelCtx(ctx, key); err != nil {
		logx.WithContext(ctx).Errorf("optionsarchive: drop cache key=%s err=%v", key, err)
	}
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
