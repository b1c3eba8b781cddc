package backtest

import "math"

// portfolio tracks a single-instrument position with average-cost PnL.
type portfolio struct {
	cash       float64
	pos        float64 // signed units
	avgCost    float64
	realized   float64
	unrealized float64
	feeBps     float64
}

// apply fills qty units at px. It returns the PnL realized by any closed
// portion, the fee charged and whether a position was (partly) closed.
func (p *portfolio) apply(buy bool, px, qty float64) (realized, fee float64, closed bool) {
	if qty <= 0 || px <= 0 {
		return 0, 0, false
	}
	dir := 1.0
	if !buy {
		dir = -1.0
	}
	fee = p.fee(px, qty)
	p.cash -= fee

	if p.pos == 0 || math.Signbit(p.pos) == math.Signbit(dir) {
		p.grow(dir*qty, px)
		return 0, fee, false
	}

	closeQty := math.Min(math.Abs(p.pos), qty)
	if p.pos > 0 {
		realized = (px - p.avgCost) * closeQty
	} else {
		realized = (p.avgCost - px) * closeQty
	}
	p.cash += realized
	p.realized += realized
	p.pos += dir * closeQty
	if p.pos == 0 {
		p.avgCost = 0
	}

	if rest := qty - closeQty; rest > 0 {
		// crossed through flat: the remainder opens the opposite side
		p.pos = dir * rest
		p.avgCost = px
	}
	return realized, fee, true
}

func (p *portfolio) grow(delta, px float64) {
	held := math.Abs(p.pos)
	added := math.Abs(delta)
	if held == 0 {
		p.avgCost = px
	} else {
		p.avgCost = (p.avgCost*held + px*added) / (held + added)
	}
	p.pos += delta
}

func (p *portfolio) equity(lastPx float64) float64 {
	switch {
	case p.pos > 0:
		p.unrealized = (lastPx - p.avgCost) * p.pos
	case p.pos < 0:
		p.unrealized = (p.avgCost - lastPx) * -p.pos
	default:
		p.unrealized = 0
	}
	return p.cash + p.unrealized
}

func (p *portfolio) fee(px, qty float64) float64 {
	if p.feeBps == 0 {
		return 0
	}
	return px * qty * (p.feeBps / 10000.0)
}
