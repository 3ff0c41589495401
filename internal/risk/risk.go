// Package risk caps the exposure the paper runner may take on.
package risk

// Limits bounds per-trade and total notional. A zero portfolio limit disables that check.
type Limits struct {
	MaxNotionalPerTrade  float64
	MaxPortfolioNotional float64
}

// Allow reports whether a single trade of the given notional is within limits.
func (l Limits) Allow(notional float64) bool {
	return notional <= l.MaxNotionalPerTrade
}

// AllowExposure reports whether adding notional to the current gross exposure stays within limits.
func (l Limits) AllowExposure(gross, notional float64) bool {
	if !l.Allow(notional) {
		return false
	}
	return l.MaxPortfolioNotional <= 0 || gross+notional <= l.MaxPortfolioNotional
}
