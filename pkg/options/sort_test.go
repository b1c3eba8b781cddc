package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortBatch_StableByQuoteDateThenStrike(t *testing.T) {
	b := Batch{
		{"id": "a", "quote_date": "2024-01-02 16:00:00", "strike": 101.0},
		{"id": "b", "quote_date": "2024-01-01 16:00:00", "strike": 105.0},
		{"id": "c", "quote_date": "2024-01-02 16:00:00", "strike": 99.5},
		{"id": "d", "quote_date": "2024-01-02 16:00:00", "strike": 101.0},
		{"id": "e", "strike": 1.0},
		{"id": "f", "quote_date": "2024-01-01 16:00:00", "strike": 9.0},
	}
	SortBatch(b)

	ids := make([]string, 0, len(b))
	for _, rec := range b {
		ids = append(ids, rec["id"].(string))
	}
	assert.Equal(t, []string{"f", "b", "c", "a", "d", "e"}, ids)
}

func TestSortBatch_NumericStrikeAcrossTypes(t *testing.T) {
	b := Batch{
		{"quote_date": "d", "strike": 100},
		{"quote_date": "d", "strike": 9.5},
		{"quote_date": "d", "strike": int64(50)},
	}
	SortBatch(b)
	assert.Equal(t, 9.5, b[0]["strike"])
	assert.Equal(t, int64(50), b[1]["strike"])
	assert.Equal(t, 100, b[2]["strike"])
}

func TestSortBatch_TimeValues(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	b := Batch{
		{"quote_date": t2, "strike": 1.0},
		{"quote_date": t1, "strike": 2.0},
	}
	SortBatch(b)
	assert.Equal(t, t1, b[0]["quote_date"])
}

func TestSortBatch_NumericTextAgainstNumber(t *testing.T) {
	b := Batch{
		{"quote_date": "d", "strike": "100"},
		{"quote_date": "d", "strike": 95.0},
		{"quote_date": "d", "strike": 120},
	}
	SortBatch(b)
	assert.Equal(t, 95.0, b[0]["strike"])
	assert.Equal(t, "100", b[1]["strike"])
	assert.Equal(t, 120, b[2]["strike"])
}
