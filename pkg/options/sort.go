package options

import "sort"

// SortBatch orders rows ascending by (quote_date, strike). The sort is
// stable; rows missing a sort column come after rows that carry it.
func SortBatch(b Batch) {
	sort.SliceStable(b, func(i, j int) bool {
		return lessByQuoteDateStrike(b[i], b[j])
	})
}

func lessByQuoteDateStrike(a, b Record) bool {
	if c := compareField(a, b, FieldQuoteDate); c != 0 {
		return c < 0
	}
	return compareField(a, b, FieldStrike) < 0
}

func compareField(a, b Record, field string) int {
	va, okA := a[field]
	vb, okB := b[field]
	okA = okA && va != nil
	okB = okB && vb != nil
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return compareValues(va, vb)
}
