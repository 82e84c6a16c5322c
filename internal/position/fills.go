package position

import (
	"time"

	"github.com/shopspring/decimal"
)

// NearbyFillWindow is the largest close-time distance at which two fills of
// the same symbol are treated as one execution.
const NearbyFillWindow = 60 * time.Second

// MergeNearbyFills folds consecutive closed trades of the same symbol whose
// close times are at most NearbyFillWindow apart. Volumes and gross P/L add up,
// close and open prices become volume weighted. Trades without a close time
// are dropped. The input slice is not modified.
func MergeNearbyFills(trades []ClosedTrade) []ClosedTrade {
	merged := make([]ClosedTrade, 0, len(trades))

	for _, cur := range trades {
		if cur.CloseTime == nil {
			continue
		}

		if n := len(merged); n > 0 {
			prev := &merged[n-1]
			if prev.Symbol == cur.Symbol && within(*prev.CloseTime, *cur.CloseTime, NearbyFillWindow) {
				foldFill(prev, cur)
				continue
			}
		}

		merged = append(merged, cur)
	}

	return merged
}

func foldFill(prev *ClosedTrade, cur ClosedTrade) {
	volume := prev.Volume.Add(cur.Volume)
	prev.GrossPL = prev.GrossPL.Add(cur.GrossPL)
	if volume.IsZero() {
		prev.Volume = volume
		return
	}
	prev.ClosePrice = weighted(prev.ClosePrice, prev.Volume, cur.ClosePrice, cur.Volume, volume)
	prev.OpenPrice = weighted(prev.OpenPrice, prev.Volume, cur.OpenPrice, cur.Volume, volume)
	prev.Volume = volume
}

func weighted(p1, v1, p2, v2, total decimal.Decimal) decimal.Decimal {
	return p1.Mul(v1).Add(p2.Mul(v2)).Div(total)
}

func within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}
