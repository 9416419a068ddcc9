package strategies

import "github.com/rgould/quantrisk/market"

// Noop never signals. Baseline for engine tests.
type Noop struct{}

func (Noop) Name() string                 { return "noop" }
func (Noop) Reset()                       {}
func (Noop) OnBar(bar market.Bar) *Signal { return nil }
