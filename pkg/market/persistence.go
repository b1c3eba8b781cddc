package market

import (
	"context"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// Persistence hooks allow providers to mirror fetched data to external stores.
type Persistence interface {
	// RecordChain archives the rows of one chain fetch.
	RecordChain(ctx context.Context, provider string, side options.ContractSide, batch options.Batch) error
	// RecordBars archives fetched pricing bars.
	RecordBars(ctx context.Context, provider, ticker string, bars []Bar) error
}

// PersistenceSetter is implemented by providers that accept a persistence hook.
type PersistenceSetter interface {
	SetPersistence(Persistence)
}

// AttachPersistence wires p into every provider that supports it.
func AttachPersistence(providers map[string]Provider, p Persistence) {
	if p == nil {
		return
	}
	for _, provider := range providers {
		if setter, ok := provider.(PersistenceSetter); ok {
			setter.SetPersistence(p)
		}
	}
}
