// Package strategies holds the bar-driven signal generators. The set of
// strategies is closed: each has a typed config and an explicit constructor
// reachable through New, so nothing is selected by reflection at runtime.
package strategies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rgould/quantrisk/market"
)

// Signal is a strategy's request to trade on the current bar. Zero or one
// per bar.
type Signal struct {
	Direction int     // +1 long, -1 short
	Stop      float64 // suggested stop price, 0 if none
	Target    float64 // suggested target price, 0 if none
	Reason    string
}

// Strategy consumes bars strictly in order and may emit a signal per bar.
// OnBar must only use data up to and including the bar it is given.
type Strategy interface {
	Name() string
	Reset()
	OnBar(bar market.Bar) *Signal
}

// Params is a flat parameter set. Optimizer candidates arrive in this shape.
type Params map[string]float64

func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// New builds a strategy by identifier. Unknown names are an error listing
// the supported set.
func New(name string, p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil

	case "supertrend":
		cfg := SuperTrendConfig{
			ATRLen: int(p.Get("atr_len", 14)),
			Factor: p.Get("fact", 3.0),
		}
		return NewSuperTrend(cfg), nil

	case "ema-cross", "emacross":
		cfg := EMACrossConfig{
			FastPeriod: int(p.Get("fast", 20)),
			SlowPeriod: int(p.Get("slow", 50)),
		}
		return NewEMACross(cfg), nil

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)",
			name, strings.Join(Names(), ", "))
	}
}

// Names lists the supported strategy identifiers.
func Names() []string {
	names := []string{"noop", "supertrend", "ema-cross"}
	sort.Strings(names)
	return names
}
