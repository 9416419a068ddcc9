package market

import (
	"math"
	"math/rand"
	"time"
)

// SyntheticConfig shapes the generated series. Volatility regimes alternate
// every RegimeLen bars so the detector has something real to find.
type SyntheticConfig struct {
	Start      time.Time
	Interval   time.Duration
	StartPrice float64
	Drift      float64 // per-bar drift applied to log price
	BaseVol    float64 // per-bar return stddev in the calm phase
	VolBoost   float64 // multiplier applied in the turbulent phase
	RegimeLen  int     // bars per phase; 0 disables alternation
	BaseVolume float64
}

// DefaultSyntheticConfig produces a daily series resembling a liquid equity.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:   24 * time.Hour,
		StartPrice: 100,
		Drift:      0.0002,
		BaseVol:    0.008,
		VolBoost:   3.0,
		RegimeLen:  60,
		BaseVolume: 1_000_000,
	}
}

// Synthetic generates n deterministic bars for symbol from seed. The same
// seed always yields the same series, which the backtest reproducibility
// tests rely on.
func Synthetic(symbol string, n int, seed int64, cfg SyntheticConfig) []Bar {
	rng := rand.New(rand.NewSource(seed))

	bars := make([]Bar, 0, n)
	price := cfg.StartPrice
	t := cfg.Start

	for i := 0; i < n; i++ {
		vol := cfg.BaseVol
		if cfg.RegimeLen > 0 && (i/cfg.RegimeLen)%2 == 1 {
			vol *= cfg.VolBoost
		}

		ret := cfg.Drift + rng.NormFloat64()*vol
		open := price
		close := price * math.Exp(ret)

		// Intrabar range scales with the bar's volatility.
		span := math.Abs(close-open) + price*vol*rng.Float64()
		high := math.Max(open, close) + span/2
		low := math.Min(open, close) - span/2
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volume := cfg.BaseVolume * (0.5 + rng.Float64())
		if vol > cfg.BaseVol {
			volume *= 1.5 // turbulence brings volume with it
		}

		bars = append(bars, Bar{
			Symbol: symbol,
			Time:   t,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})

		price = close
		t = t.Add(cfg.Interval)
	}
	return bars
}
