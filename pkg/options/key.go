package options

import (
	"fmt"
	"strings"
	"time"
)

// Key builds the dedup identity of a row: "<created>_<strike>".
func Key(rec Record) (string, error) {
	created, ok := rec[FieldCreated]
	if !ok || created == nil {
		return "", &MalformedRowError{Field: FieldCreated, Row: rec}
	}
	strike, ok := rec[FieldStrike]
	if !ok || strike == nil {
		return "", &MalformedRowError{Field: FieldStrike, Row: rec}
	}
	return formatValue(created) + "_" + formatValue(strike), nil
}

// BaseKey returns the dataset prefix shared by every cached batch of a
// ticker on a given day, e.g. "SPY_2024-01-19".
func BaseKey(ticker string, day time.Time) string {
	return strings.ToUpper(strings.TrimSpace(ticker)) + "_" + day.Format(DateLayout)
}

// DatasetKeys names where a dataset batch lives in the cache and the object
// store.
type DatasetKeys struct {
	Redis string
	S3    string
}

// KeysFor derives the cache and object store keys for a dataset. An explicit
// override replaces the derived name for both targets; the object store copy
// then carries a ".json" suffix. Calls and puts derive keys identically.
func KeysFor(baseKey, dataset, override string) DatasetKeys {
	if override = strings.TrimSpace(override); override != "" {
		return DatasetKeys{Redis: override, S3: override + ".json"}
	}
	name := baseKey
	if dataset != "" {
		name = baseKey + "_" + dataset
	}
	return DatasetKeys{Redis: name, S3: name}
}

// KeyOverrides maps a fetch type to the exact key its dataset is stored
// under. Each side gets its own key so calls and puts never share a batch.
type KeyOverrides map[FetchType]string

// For returns the override of a fetch type, or "" when it has none.
func (o KeyOverrides) For(ft FetchType) string {
	return strings.TrimSpace(o[ft])
}

// Validate rejects overrides that would store two fetch types under one key.
func (o KeyOverrides) Validate() error {
	owner := make(map[string]FetchType, len(o))
	for _, ft := range []FetchType{FetchCalls, FetchPuts} {
		key := o.For(ft)
		if key == "" {
			continue
		}
		if prev, dup := owner[key]; dup {
			return fmt.Errorf("options: key override %q used by both %s and %s", key, prev, ft)
		}
		owner[key] = ft
	}
	return nil
}

// ParseKeyOverrides reads overrides written as "<fetch type>=<key>", e.g.
// "calls=spy-c" or "tdputs=spy-p". A bare key without a fetch type is only
// accepted when exactly one fetch type is requested.
func ParseKeyOverrides(values []string, fetchTypes []FetchType) (KeyOverrides, error) {
	out := make(KeyOverrides, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, key, found := strings.Cut(raw, "=")
		if !found {
			if len(fetchTypes) != 1 {
				return nil, fmt.Errorf("options: key override %q needs a fetch type when %d datasets are requested", raw, len(fetchTypes))
			}
			out[fetchTypes[0]] = raw
			continue
		}
		ft, err := ParseFetchType(name)
		if err != nil {
			return nil, fmt.Errorf("options: key override %q: %w", raw, err)
		}
		if key = strings.TrimSpace(key); key == "" {
			return nil, fmt.Errorf("options: key override %q has an empty key", raw)
		}
		out[ft] = key
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, out.Validate()
}
