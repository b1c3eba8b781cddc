package options

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"
)

// Reconciler merges a freshly fetched batch into a previously persisted one.
// Rows already present in the base batch always win: an incoming row with a
// known (created, strike) identity is reported as a conflict and dropped.
type Reconciler struct {
	// RaiseOnError returns the failure to the caller in addition to the
	// ERROR result. The failure is logged either way.
	RaiseOnError bool
	// Label prefixes log lines, typically "<ticker> <dataset>".
	Label string
	// Fields overrides the normalization allow-list when non-empty.
	Fields []string
}

// Merge is Reconcile with the default field list and no logging. Failures
// come back as an ERROR result.
func Merge(base, incoming Batch) Result {
	return merge(base, incoming, Fields)
}

// Reconcile returns base followed by the unseen incoming rows, normalized and
// sorted by (quote_date, strike). A row missing its identity aborts the whole
// merge with an ERROR result and no rows.
func (r *Reconciler) Reconcile(ctx context.Context, base, incoming Batch) (Result, error) {
	logger := logx.WithContext(ctx)
	fields := Fields
	if len(r.Fields) > 0 {
		fields = r.Fields
	}

	res := merge(base, incoming, fields)
	if res.Kind == KindError {
		logger.Errorf("reconcile: %s failed err=%v", r.label(), res.Err)
		if r.RaiseOnError {
			return res, res.Err
		}
		return res, nil
	}
	for _, conflict := range res.Conflicts {
		logger.Errorf("reconcile: %s %s", r.label(), conflict)
	}
	if res.Kind == KindSuccess {
		logger.Infof("reconcile: %s base=%d incoming=%d merged=%d conflicts=%d",
			r.label(), len(base), len(incoming), len(res.Batch), len(res.Conflicts))
	}
	return res, nil
}

func merge(base, incoming Batch, fields []string) Result {
	seen := make(map[string]struct{}, len(base)+len(incoming))
	out := make(Batch, 0, len(base)+len(incoming))

	for _, rec := range base {
		key, err := Key(rec)
		if err != nil {
			return Failed(fmt.Errorf("reconcile: base row: %w", err))
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, NormalizeFields(rec, fields))
	}

	var conflicts []DuplicateKeyConflict
	for _, rec := range incoming {
		key, err := Key(rec)
		if err != nil {
			return Failed(fmt.Errorf("reconcile: incoming row: %w", err))
		}
		if _, dup := seen[key]; dup {
			conflict := DuplicateKeyConflict{
				Key:     key,
				Created: formatValue(rec[FieldCreated]),
				Strike:  formatValue(rec[FieldStrike]),
			}
			conflict.Ticker, _ = rec.String(FieldTicker)
			conflicts = append(conflicts, conflict)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, NormalizeFields(rec, fields))
	}

	SortBatch(out)
	res := Ok(out)
	res.Conflicts = conflicts
	return res
}

func (r *Reconciler) label() string {
	if r.Label == "" {
		return "batch"
	}
	return r.Label
}
