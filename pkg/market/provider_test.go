package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/calendar"
	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

func strikes(b options.Batch) []float64 {
	out := make([]float64, 0, len(b))
	for _, rec := range b {
		v, _ := rec.Float(options.FieldStrike)
		out = append(out, v)
	}
	return out
}

func chain(values ...float64) options.Batch {
	b := make(options.Batch, 0, len(values))
	for _, v := range values {
		b = append(b, options.Record{options.FieldStrike: v, options.FieldQuoteDate: "2024-01-10 16:00:00"})
	}
	return b
}

func TestWindowStrikes_AroundLatestClose(t *testing.T) {
	out := WindowStrikes(chain(480, 450, 470, 461, 462, 482, 483), 472, 10, 0)
	assert.Equal(t, []float64{462, 470, 480, 482}, strikes(out))
}

func TestWindowStrikes_MiddleOffsetWithoutClose(t *testing.T) {
	out := WindowStrikes(chain(1, 2, 3, 4, 5, 6, 7, 8), 0, 0, 2)
	assert.Equal(t, []float64{3, 4, 5, 6}, strikes(out))
}

func TestNewChainStamp(t *testing.T) {
	et := calendar.Eastern()
	// Saturday morning: quote date falls back to Friday's close.
	now := time.Date(2024, 1, 13, 9, 15, 42, 0, et)
	stamp := NewChainStamp(ChainRequest{Ticker: " spy ", Now: now})
	assert.Equal(t, "SPY", stamp.Ticker)
	assert.Equal(t, "2024-01-19", stamp.Expiration.Format(options.DateLayout))

	rec := options.Record{}
	stamp.Apply(rec)
	assert.Equal(t, "2024-01-13 09:15:00", rec[options.FieldCreated])
	assert.Equal(t, "2024-01-12 16:00:00", rec[options.FieldQuoteDate])
	assert.Equal(t, "2024-01-19", rec[options.FieldExpirationDate])

	key, err := options.Key(rec)
	require.Error(t, err, "no strike yet")
	rec[options.FieldStrike] = 470.0
	key, err = options.Key(rec)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-13 09:15:00_470", key)
}

func TestEpochColumn(t *testing.T) {
	assert.Nil(t, EpochColumn(0))
	assert.Equal(t, "2024-01-02 10:30:00", EpochColumn(1704209400000))
}
