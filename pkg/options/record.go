package options

// Record is a single flat option-chain row keyed by column name. Provider
// payloads and cached batches decode into this shape; nothing about the set
// of keys is guaranteed until the row has been normalized.
type Record map[string]any

// Batch is an ordered collection of records for one ticker and expiration.
type Batch []Record

// Column names of the canonical option row.
const (
	FieldAsk            = "ask"
	FieldAskDate        = "ask_date"
	FieldAskSize        = "ask_size"
	FieldBid            = "bid"
	FieldBidDate        = "bid_date"
	FieldBidSize        = "bid_size"
	FieldQuoteDate      = "quote_date"
	FieldExpirationDate = "expiration_date"
	FieldLast           = "last"
	FieldLastVolume     = "last_volume"
	FieldOpenInterest   = "open_interest"
	FieldOptionType     = "option_type"
	FieldStrike         = "strike"
	FieldTicker         = "ticker"
	FieldTradeDate      = "trade_date"
	FieldCreated        = "created"
	FieldVolume         = "volume"
)

// Fields is the allow-list of columns kept on a normalized row, in canonical
// output order.
var Fields = []string{
	FieldAsk,
	FieldAskDate,
	FieldAskSize,
	FieldBid,
	FieldBidDate,
	FieldBidSize,
	FieldQuoteDate,
	FieldExpirationDate,
	FieldLast,
	FieldLastVolume,
	FieldOpenInterest,
	FieldOptionType,
	FieldStrike,
	FieldTicker,
	FieldTradeDate,
	FieldCreated,
	FieldVolume,
}

// reservedFields are positional artifacts of tabular tooling. They never
// survive normalization.
var reservedFields = map[string]struct{}{
	"index":   {},
	"level_0": {},
}

// Normalize projects rec onto the canonical allow-list. Fields missing from
// rec stay missing; nothing is defaulted. The input is never modified.
func Normalize(rec Record) Record {
	return NormalizeFields(rec, Fields)
}

// NormalizeFields is Normalize with a caller supplied allow-list. Reserved
// positional columns are dropped even when fields names them.
func NormalizeFields(rec Record, fields []string) Record {
	out := make(Record, len(fields))
	for _, name := range fields {
		if _, reserved := reservedFields[name]; reserved {
			continue
		}
		if v, ok := rec[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the field as a string when it holds one.
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float returns the field as float64 when it holds a numeric value.
func (r Record) Float(field string) (float64, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat64(v)
}

// Clone returns a batch of shallow copied records.
func (b Batch) Clone() Batch {
	if b == nil {
		return nil
	}
	out := make(Batch, len(b))
	for i, rec := range b {
		out[i] = rec.Clone()
	}
	return out
}
