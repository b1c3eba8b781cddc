package options

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/logx/logtest"
)

func TestReconcile_BaseWinsOnDuplicate(t *testing.T) {
	base := Batch{
		{"created": "2020-01-01T00:00:00", "strike": 100.0, "bid": 1.0},
	}
	incoming := Batch{
		{"created": "2020-01-01T00:00:00", "strike": 100.0, "bid": 1.5},
		{"created": "2020-01-01T00:05:00", "strike": 100.0, "bid": 1.6},
	}

	res := Merge(base, incoming)
	require.Equal(t, KindSuccess, res.Kind)
	require.Len(t, res.Batch, 2)

	bids := map[string]any{}
	for _, rec := range res.Batch {
		bids[rec["created"].(string)] = rec["bid"]
	}
	assert.Equal(t, 1.0, bids["2020-01-01T00:00:00"])
	assert.Equal(t, 1.6, bids["2020-01-01T00:05:00"])

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "2020-01-01T00:00:00_100", res.Conflicts[0].Key)
}

func TestReconcile_Idempotent(t *testing.T) {
	b := Batch{
		{"created": "2024-01-02 10:00:00", "strike": 101.0, "quote_date": "2024-01-01 16:00:00"},
		{"created": "2024-01-02 10:00:00", "strike": 99.0, "quote_date": "2024-01-01 16:00:00"},
		{"created": "2024-01-02 10:01:00", "strike": 100.0, "quote_date": "2024-01-02 16:00:00"},
	}

	first := Merge(b, b)
	require.Equal(t, KindSuccess, first.Kind)
	assert.Len(t, first.Batch, 3)
	assert.Len(t, first.Conflicts, 3)

	second := Merge(first.Batch, first.Batch)
	assert.Equal(t, first.Batch, second.Batch)
}

func TestReconcile_FieldRestriction(t *testing.T) {
	base := Batch{{
		"created": "2024-01-02 10:00:00",
		"strike":  100,
		"index":   7,
		"level_0": 3,
		"greeks":  map[string]any{"delta": 0.5},
		"bid":     1.25,
	}}
	res := Merge(base, nil)
	require.Equal(t, KindSuccess, res.Kind)
	require.Len(t, res.Batch, 1)
	for name := range res.Batch[0] {
		assert.Contains(t, Fields, name)
	}
	assert.NotContains(t, res.Batch[0], "index")
	assert.NotContains(t, res.Batch[0], "level_0")
	assert.NotContains(t, res.Batch[0], "ask", "absent fields must not be defaulted")
}

func TestReconcile_MalformedIncomingIsFatal(t *testing.T) {
	base := Batch{{"created": "2024-01-02 10:00:00", "strike": 100.0}}
	incoming := Batch{
		{"created": "2024-01-02 10:01:00", "strike": 101.0},
		{"created": "2024-01-02 10:02:00"},
	}

	res := Merge(base, incoming)
	assert.Equal(t, KindError, res.Kind)
	assert.Empty(t, res.Batch)

	var malformed *MalformedRowError
	require.True(t, errors.As(res.Err, &malformed))
	assert.Equal(t, FieldStrike, malformed.Field)
	assert.ErrorIs(t, res.Err, ErrMalformedRow)
}

func TestReconcile_RaiseOnError(t *testing.T) {
	r := &Reconciler{RaiseOnError: true, Label: "SPY tdcalls"}
	res, err := r.Reconcile(context.Background(), nil, Batch{{"strike": 1.0}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRow)
	assert.Equal(t, KindError, res.Kind)

	quiet := &Reconciler{}
	res, err = quiet.Reconcile(context.Background(), nil, Batch{{"strike": 1.0}})
	require.NoError(t, err)
	assert.Equal(t, KindError, res.Kind)
	assert.Error(t, res.Err)
}

func TestReconcile_EmptyIncomingReturnsSortedBase(t *testing.T) {
	base := Batch{
		{"created": "c", "strike": 105.0, "quote_date": "2024-01-02"},
		{"created": "c", "strike": 95.0, "quote_date": "2024-01-02"},
		{"created": "c", "strike": 100.0, "quote_date": "2024-01-01"},
	}
	res := Merge(base, Batch{})
	require.Equal(t, KindSuccess, res.Kind)
	got := []float64{}
	for _, rec := range res.Batch {
		got = append(got, rec["strike"].(float64))
	}
	assert.Equal(t, []float64{100, 95, 105}, got)
}

func TestReconcile_BothEmpty(t *testing.T) {
	res := Merge(nil, nil)
	assert.Equal(t, KindEmpty, res.Kind)
	assert.Empty(t, res.Batch)
	assert.NoError(t, res.Err)
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	base := Batch{{"created": "c", "strike": 1.0, "index": 0}}
	incoming := Batch{{"created": "d", "strike": 1.0, "level_0": 4}}
	_ = Merge(base, incoming)
	assert.Contains(t, base[0], "index")
	assert.Contains(t, incoming[0], "level_0")
}

func TestReconcile_CustomFields(t *testing.T) {
	r := &Reconciler{Fields: []string{"created", "strike", "index"}}
	res, err := r.Reconcile(context.Background(), Batch{{"created": "c", "strike": 1.0, "index": 3, "bid": 2.0}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Batch, 1)
	assert.Equal(t, Record{"created": "c", "strike": 1.0}, res.Batch[0])
}

func TestMerge_DoesNotLog(t *testing.T) {
	logs := logtest.NewCollector(t)
	base := Batch{{"created": "c1", "strike": 1.0}}

	res := Merge(base, Batch{{"created": "c1", "strike": 1.0}, {"created": "c2", "strike": 2.0}})
	require.Equal(t, KindSuccess, res.Kind)
	require.Len(t, res.Conflicts, 1)

	res = Merge(base, Batch{{"strike": 1.0}})
	require.Equal(t, KindError, res.Kind)
	assert.Empty(t, logs.String())

	_, err := (&Reconciler{Label: "SPY tdcalls"}).Reconcile(context.Background(), base, Batch{{"created": "c1", "strike": 1.0}})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "SPY tdcalls")
}
