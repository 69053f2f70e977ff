// Package precision implements the two total functions that stand between
// a trading signal and the venue wire format: size truncation and price
// snapping. Both operate on shopspring/decimal values so that a signal's
// decimal string never round-trips through a float64 on its way to the
// venue.
package precision

import (
	"github.com/shopspring/decimal"

	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
)

// TruncateSize rounds raw toward zero to meta.SzDecimals places. A zero
// result is returned as-is; callers decide whether zero is actionable.
//
// Rounding away from zero would silently enlarge the caller's requested
// size, so truncation toward zero is the only direction that never exceeds
// what was asked for.
func TruncateSize(meta venue.SymbolMeta, raw decimal.Decimal) decimal.Decimal {
	return raw.Truncate(meta.SzDecimals)
}

// Mode selects the direction format_price snaps in when raw does not fall
// exactly on a tick boundary.
type Mode int

const (
	// ModeDefault is floor-to-tick regardless of side: the baseline rule
	// for plain limit entry prices.
	ModeDefault Mode = iota
	// ModeProtective snaps toward zero for buys and away from zero for
	// sells — used for stop-loss triggers, where the snap must never
	// make the stop looser (more room to run) than what was requested.
	ModeProtective
	// ModeFavorable is used for take-profit triggers, where the snap must
	// never take profit earlier (at a worse price) than what was
	// requested: a sell-side take-profit closing a long snaps up (away
	// from zero), a buy-side take-profit closing a short snaps down
	// (toward zero). On the tick grid this is the same direction as
	// ModeProtective.
	ModeFavorable
)

// FormatPrice snaps raw to the nearest multiple of meta.TickSize under the
// given side and mode.
func FormatPrice(meta venue.SymbolMeta, raw decimal.Decimal, side venue.Side, mode Mode) decimal.Decimal {
	if meta.TickSize.IsZero() {
		return raw
	}

	switch mode {
	case ModeProtective:
		if side == venue.Buy {
			return floorToTick(raw, meta.TickSize)
		}
		return ceilToTick(raw, meta.TickSize)
	case ModeFavorable:
		if side == venue.Buy {
			return floorToTick(raw, meta.TickSize)
		}
		return ceilToTick(raw, meta.TickSize)
	default:
		return floorToTick(raw, meta.TickSize)
	}
}

func floorToTick(raw, tick decimal.Decimal) decimal.Decimal {
	steps := raw.Div(tick).Floor()
	return steps.Mul(tick)
}

func ceilToTick(raw, tick decimal.Decimal) decimal.Decimal {
	steps := raw.Div(tick).Ceil()
	return steps.Mul(tick)
}
