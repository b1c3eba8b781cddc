package options

import (
	"fmt"
	"strings"
)

// ContractSide distinguishes call and put contracts.
type ContractSide string

const (
	SideCall ContractSide = "call"
	SidePut  ContractSide = "put"
)

// FetchType selects which half of a chain a fetch targets.
type FetchType string

const (
	FetchCalls FetchType = "calls"
	FetchPuts  FetchType = "puts"
)

// Provider dataset prefixes.
const (
	PrefixTradier = "td"
	PrefixAlpaca  = "ap"
	PrefixYahoo   = "yho"
)

// Side maps the fetch type to the contract side it returns.
func (f FetchType) Side() ContractSide {
	if f == FetchPuts {
		return SidePut
	}
	return SideCall
}

// Dataset returns the dataset name for a provider prefix, e.g. "tdcalls".
func (f FetchType) Dataset(prefix string) string {
	return prefix + string(f)
}

// FetchTypeFor is the inverse of FetchType.Side.
func FetchTypeFor(side ContractSide) FetchType {
	if side == SidePut {
		return FetchPuts
	}
	return FetchCalls
}

// ParseFetchType accepts plain and provider prefixed names such as "calls",
// "put", "tdcalls" or "apputs".
func ParseFetchType(raw string) (FetchType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{PrefixTradier, PrefixAlpaca, PrefixYahoo} {
		if rest := strings.TrimPrefix(s, prefix); rest != s && (rest == "calls" || rest == "puts") {
			s = rest
			break
		}
	}
	switch s {
	case "calls", "call", "c":
		return FetchCalls, nil
	case "puts", "put", "p":
		return FetchPuts, nil
	default:
		return "", fmt.Errorf("options: unknown fetch type %q", raw)
	}
}

// ParseFetchTypes parses a comma separated list, skipping blanks and repeats.
func ParseFetchTypes(raw string) ([]FetchType, error) {
	var out []FetchType
	seen := make(map[FetchType]struct{}, 2)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ft, err := ParseFetchType(part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[ft]; dup {
			continue
		}
		seen[ft] = struct{}{}
		out = append(out, ft)
	}
	return out, nil
}

// ParseSide parses "call"/"put" and their single letter forms.
func ParseSide(raw string) (ContractSide, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "call", "calls", "c":
		return SideCall, nil
	case "put", "puts", "p":
		return SidePut, nil
	default:
		return "", fmt.Errorf("options: unknown contract side %q", raw)
	}
}
