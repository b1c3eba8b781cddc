package options

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TickLayout is the timestamp layout used for every date column on a row.
const TickLayout = "2006-01-02 15:04:05"

// DateLayout is the layout for calendar dates such as expirations.
const DateLayout = "2006-01-02"

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// formatValue renders a key component so that equal values always produce the
// same text: 100 and 100.0 both render as "100".
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case json.Number:
		return t.String()
	case time.Time:
		return t.Format(TickLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(TickLayout)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// compareValues orders two present column values. When either side is a
// number and both parse as one they compare numerically, so a strike stored
// as "100" sorts after 95. Times compare chronologically and everything
// else by rendered text.
func compareValues(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if isNumber(a) || isNumber(b) {
		fa, okA := toFloat64(a)
		fb, okB := toFloat64(b)
		if okA && okB {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	sa, sb := formatValue(a), formatValue(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

// isNumber reports whether v holds a numeric type. Numeric text does not
// count.
func isNumber(v any) bool {
	if _, isStr := v.(string); isStr {
		return false
	}
	_, ok := toFloat64(v)
	return ok
}
