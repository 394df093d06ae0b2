package engine

import "github.com/shopspring/decimal"

// floorToStep snaps a quantity down to the instrument's lot increment.
func floorToStep(qty, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}

// roundToTick snaps a price to the instrument's tick grid. up selects the
// rounding direction: true rounds away from the market for buys, false for
// sells, so an aggressive limit always remains marketable.
func roundToTick(price, tick decimal.Decimal, up bool) decimal.Decimal {
	if tick.IsZero() {
		return price
	}
	ticks := price.Div(tick)
	if up {
		ticks = ticks.Ceil()
	} else {
		ticks = ticks.Floor()
	}
	return ticks.Mul(tick)
}
