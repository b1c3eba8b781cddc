package options

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Contract is an option identity decoded from an OCC symbol.
type Contract struct {
	Underlying string
	Expiration time.Time
	Side       ContractSide
	Strike     float64
}

// ParseOCCSymbol decodes "<root><YYMMDD><C|P><strike*1000 as 8 digits>",
// e.g. "SPY240119C00470000". A leading "O:" is tolerated.
func ParseOCCSymbol(symbol string) (Contract, error) {
	s := strings.TrimPrefix(strings.TrimSpace(symbol), "O:")
	if len(s) < 16 {
		return Contract{}, fmt.Errorf("options: occ symbol %q too short", symbol)
	}
	tail := s[len(s)-15:]
	root := strings.TrimSpace(s[:len(s)-15])
	if root == "" {
		return Contract{}, fmt.Errorf("options: occ symbol %q has no root", symbol)
	}
	exp, err := time.Parse("060102", tail[:6])
	if err != nil {
		return Contract{}, fmt.Errorf("options: occ symbol %q: expiration: %w", symbol, err)
	}
	side, err := ParseSide(tail[6:7])
	if err != nil {
		return Contract{}, fmt.Errorf("options: occ symbol %q: %w", symbol, err)
	}
	milli, err := strconv.ParseInt(tail[7:], 10, 64)
	if err != nil {
		return Contract{}, fmt.Errorf("options: occ symbol %q: strike: %w", symbol, err)
	}
	return Contract{
		Underlying: strings.ToUpper(root),
		Expiration: exp,
		Side:       side,
		Strike:     float64(milli) / 1000,
	}, nil
}

// OCCSymbol renders the contract back into its OCC symbol.
func (c Contract) OCCSymbol() string {
	side := "C"
	if c.Side == SidePut {
		side = "P"
	}
	milli := int64(math.Round(c.Strike * 1000))
	return fmt.Sprintf("%s%s%s%08d", strings.ToUpper(c.Underlying), c.Expiration.Format("060102"), side, milli)
}
