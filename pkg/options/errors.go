package options

import (
	"errors"
	"fmt"
)

// ErrMalformedRow marks rows that lack an identity field.
var ErrMalformedRow = errors.New("options: malformed row")

// MalformedRowError reports a row missing a field required to build its key.
// It is fatal to the reconciliation that encountered it.
type MalformedRowError struct {
	Field string
	Row   Record
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("options: malformed row: missing %q", e.Field)
}

func (e *MalformedRowError) Unwrap() error { return ErrMalformedRow }

// DuplicateKeyConflict records an incoming row whose identity was already
// present. The earlier row is kept and the incoming row is dropped.
type DuplicateKeyConflict struct {
	Key     string
	Created string
	Strike  string
	Ticker  string
}

func (c DuplicateKeyConflict) String() string {
	return fmt.Sprintf("already have %s created=%s strike=%s", c.Ticker, c.Created, c.Strike)
}
