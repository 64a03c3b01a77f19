package quote

import (
	"time"

	"papertrade/internal/domain"
)

// ChartPoint is one daily close annotated with technical indicators.
// Indicator pointers are nil until their lookback window is full.
type ChartPoint struct {
	Time   time.Time
	Close  float64
	SMA20  *float64
	RSI14  *float64
	Volume int64
}

const (
	smaWindow = 20
	rsiWindow = 14
)

// Annotate converts daily bars (oldest first) into chart points with a
// 20-day simple moving average and a 14-day RSI. With 20 bars or fewer no
// indicators are computed at all.
func Annotate(bars []domain.Bar) []ChartPoint {
	points := make([]ChartPoint, len(bars))
	for i, b := range bars {
		points[i] = ChartPoint{Time: b.Timestamp, Close: b.Close, Volume: b.Volume}
	}
	if len(bars) <= smaWindow {
		return points
	}

	// SMA over a rolling window of closes.
	var sum float64
	for i, b := range bars {
		sum += b.Close
		if i >= smaWindow {
			sum -= bars[i-smaWindow].Close
		}
		if i >= smaWindow-1 {
			v := sum / smaWindow
			points[i].SMA20 = &v
		}
	}

	// RSI from rolling simple means of gains and losses over close-to-close
	// deltas. The first delta exists at index 1, so the window fills at
	// index rsiWindow.
	var gainSum, lossSum float64
	for i := 1; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
		if i > rsiWindow {
			old := bars[i-rsiWindow].Close - bars[i-rsiWindow-1].Close
			if old > 0 {
				gainSum -= old
			} else {
				lossSum += old
			}
		}
		if i < rsiWindow {
			continue
		}

		avgGain := gainSum / rsiWindow
		avgLoss := lossSum / rsiWindow
		switch {
		case avgLoss == 0 && avgGain == 0:
			// Flat window: RSI is undefined.
		case avgLoss == 0:
			v := 100.0
			points[i].RSI14 = &v
		default:
			rs := avgGain / avgLoss
			v := 100 - 100/(1+rs)
			points[i].RSI14 = &v
		}
	}

	return points
}
