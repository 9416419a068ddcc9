// Package backtest replays historical bars through a strategy, the regime
// detector, the position sizer and the risk manager, exactly as the live
// path would see them, and produces an equity curve plus a trade log.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rgould/quantrisk/broker"
	"github.com/rgould/quantrisk/market"
	"github.com/rgould/quantrisk/pkg/id"
	"github.com/rgould/quantrisk/regime"
	"github.com/rgould/quantrisk/risk"
	"github.com/rgould/quantrisk/sizing"
	"github.com/rgould/quantrisk/strategies"
)

// GapPolicy selects what happens when bars are missing inside the window.
type GapPolicy string

const (
	// GapWarn records a DATA_GAP warning and continues.
	GapWarn GapPolicy = "warn"
	// GapInterpolate fills the hole with linearly interpolated bars.
	GapInterpolate GapPolicy = "interpolate"
)

// Config drives one backtest run. The regime, sizing and risk sections are
// the same types the live path uses, so a parameter set validated here is
// directly deployable.
type Config struct {
	InitialBalance float64       `yaml:"initial_balance" default:"10000" validate:"gt=0"`
	Interval       time.Duration `yaml:"interval" default:"24h"`
	GapPolicy      GapPolicy     `yaml:"gap_policy" default:"warn" validate:"oneof=warn interpolate"`

	// Sharpe annualization: periods per year for the bar interval.
	Annualization float64 `yaml:"annualization" default:"252" validate:"gt=0"`

	// Fraction of the window used to fit the regime model when no
	// pre-trained model is supplied.
	TrainFraction float64 `yaml:"train_fraction" default:"0.3" validate:"gt=0,lt=1"`

	// Closed trades considered for the sizer's performance factor.
	PerformanceWindow int `yaml:"performance_window" default:"20" validate:"gt=0"`

	Features market.FeatureConfig `yaml:"features"`
	Regime   regime.Config        `yaml:"regime"`
	Sizing   sizing.Config        `yaml:"sizing"`
	Risk     risk.Config          `yaml:"risk"`
}

// Trade is one simulated round trip. Backtest-internal; never written to
// the live store.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Units      float64 // signed: >0 long, <0 short
	PnL        float64
	Reason     string
}

// EquityPoint is one point of the simulated equity curve, one per bar.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Result is the full output of a run.
type Result struct {
	EquityCurve []EquityPoint
	Trades      []Trade
	Metrics     Metrics
	Warnings    []string
	Rejections  map[risk.Reason]int
}

type position struct {
	open       bool
	units      float64
	entryPrice float64
	entryTime  time.Time
	stop       float64
	target     float64
}

// Engine holds the wiring for one run. Engines are single-use: Run mutates
// internal state, so build a fresh one per evaluation.
type Engine struct {
	cfg Config
	log zerolog.Logger
	ids *id.Generator

	// Optional pre-trained model. When nil, Run fits one on the leading
	// TrainFraction of the window.
	Model *regime.Model
}

func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "backtest").Logger(),
	}
}

// Run replays bars through the strategy in strict chronological order.
// Deterministic for identical bars, config and seed: the only randomness is
// the regime fit, which is seeded. A run producing no signals returns a
// flat equity curve and zero trades.
func (e *Engine) Run(ctx context.Context, strat strategies.Strategy, bars []market.Bar) (Result, error) {
	if strat == nil {
		return Result{}, fmt.Errorf("backtest: strategy is required")
	}
	if len(bars) == 0 {
		return Result{}, fmt.Errorf("backtest: no bars supplied")
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return Result{}, fmt.Errorf("backtest: bars out of order at index %d", i)
		}
	}

	res := Result{Rejections: make(map[risk.Reason]int)}

	bars = e.applyGapPolicy(bars, &res)

	model := e.Model
	if model == nil {
		model = e.fitModel(bars, &res)
	}

	strat.Reset()
	// Decision IDs are stamped with simulated bar time from the run seed,
	// keeping the full output reproducible.
	e.ids = id.NewGenerator(e.cfg.Regime.Seed)
	sizer := sizing.New(e.cfg.Sizing)
	riskMgr := risk.NewManager(e.cfg.Risk, nil, e.log)

	acct := broker.AccountState{
		Balance:    e.cfg.InitialBalance,
		Equity:     e.cfg.InitialBalance,
		PeakEquity: e.cfg.InitialBalance,
	}
	var pos position
	var closed []Trade

	for i, bar := range bars {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		// 1) Exits first: stop/target hits inside this bar, stop-first
		// when both are touched.
		if pos.open {
			if px, reason, hit := checkExit(pos, bar); hit {
				closed = append(closed, closeTrade(&pos, &acct, px, bar.Time, reason))
			}
		}

		// 2) Strategy sees the bar.
		if sig := strat.OnBar(bar); sig != nil && !pos.open {
			e.handleSignal(sig, bars[:i+1], bar, model, sizer, riskMgr, &acct, &pos, closed, &res)
		}

		// 3) Mark to market for the equity curve.
		acct.UpdateEquity(acct.Balance + unrealized(pos, bar.Close))
		res.EquityCurve = append(res.EquityCurve, EquityPoint{Time: bar.Time, Equity: acct.Equity})
	}

	// Close any open position at the final close so the trade log balances.
	if pos.open {
		last := bars[len(bars)-1]
		closed = append(closed, closeTrade(&pos, &acct, last.Close, last.Time, "end of data"))
		acct.UpdateEquity(acct.Balance)
		res.EquityCurve[len(res.EquityCurve)-1].Equity = acct.Equity
	}

	res.Trades = closed
	res.Metrics = ComputeMetrics(e.cfg.InitialBalance, res.EquityCurve, closed, e.cfg.Annualization)
	return res, nil
}

func (e *Engine) handleSignal(
	sig *strategies.Signal,
	hist []market.Bar,
	bar market.Bar,
	model *regime.Model,
	sizer *sizing.Sizer,
	riskMgr *risk.Manager,
	acct *broker.AccountState,
	pos *position,
	closed []Trade,
	res *Result,
) {
	label := regime.Unclassified(bar.Symbol, bar.Time)
	if model != nil {
		if fw, err := market.ExtractFeatures(hist, e.cfg.Features); err == nil {
			label = model.Classify(fw)
		}
	}

	decision := sizer.Size(sizing.Request{
		SignalID:  e.ids.At(bar.Time),
		Symbol:    bar.Symbol,
		Direction: sig.Direction,
		Price:     bar.Close,
		Stop:      sig.Stop,
	}, label, *acct, trailingPerformance(closed, e.cfg.PerformanceWindow))

	if decision.Skip() {
		return
	}

	verdict := riskMgr.Evaluate(*acct, decision, nil)
	if !verdict.Allow {
		res.Rejections[verdict.Reason]++
		return
	}
	riskMgr.Commit(decision)

	// Fill at the bar's close; no partial fills. A stopless signal gets the
	// sizer's default stop distance, the same stop the live path attaches,
	// so the simulated loss stays bounded by the decision's risk amount.
	stop := sig.Stop
	if stop == 0 && e.cfg.Sizing.DefaultStopPercent > 0 {
		stop = defaultStop(bar.Close, sig.Direction, e.cfg.Sizing.DefaultStopPercent)
	}
	units := decision.AdjustedSize * float64(sig.Direction)
	*pos = position{
		open:       true,
		units:      units,
		entryPrice: bar.Close,
		entryTime:  bar.Time,
		stop:       stop,
		target:     sig.Target,
	}
}

func defaultStop(price float64, direction int, stopPct float64) float64 {
	d := price * stopPct / 100
	if direction < 0 {
		return price + d
	}
	return price - d
}

// fitModel trains the regime model on the leading slice of the window.
// Insufficient history degrades to unclassified labels, not an error.
func (e *Engine) fitModel(bars []market.Bar, res *Result) *regime.Model {
	trainLen := int(float64(len(bars)) * e.cfg.TrainFraction)
	windows := market.RollingFeatures(bars[:trainLen], e.cfg.Features)

	model, err := regime.Fit(windows, e.cfg.Regime)
	if err != nil {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("regime model not trained (%v): sizing with unclassified regime", err))
		return nil
	}
	return model
}

func (e *Engine) applyGapPolicy(bars []market.Bar, res *Result) []market.Bar {
	if e.cfg.Interval <= 0 {
		return bars
	}

	out := make([]market.Bar, 0, len(bars))
	out = append(out, bars[0])

	for i := 1; i < len(bars); i++ {
		prev := bars[i-1]
		cur := bars[i]
		missing := int(cur.Time.Sub(prev.Time)/e.cfg.Interval) - 1

		if missing > 0 {
			switch e.cfg.GapPolicy {
			case GapInterpolate:
				out = append(out, interpolate(prev, cur, missing, e.cfg.Interval)...)
			default:
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"DATA_GAP: %d missing bars between %s and %s",
					missing, prev.Time.Format(time.RFC3339), cur.Time.Format(time.RFC3339)))
			}
		}
		out = append(out, cur)
	}
	return out
}

// interpolate fills a gap with flat-volume bars walking linearly from the
// previous close to the next open.
func interpolate(prev, next market.Bar, missing int, interval time.Duration) []market.Bar {
	out := make([]market.Bar, 0, missing)
	step := (next.Open - prev.Close) / float64(missing+1)

	for k := 1; k <= missing; k++ {
		px := prev.Close + step*float64(k)
		lo, hi := px, px
		if step > 0 {
			lo = px - step
		} else {
			hi = px - step
		}
		out = append(out, market.Bar{
			Symbol: prev.Symbol,
			Time:   prev.Time.Add(time.Duration(k) * interval),
			Open:   px - step,
			High:   hi,
			Low:    lo,
			Close:  px,
			Volume: 0,
		})
	}
	return out
}

func trailingPerformance(closed []Trade, window int) sizing.Performance {
	if window > len(closed) {
		window = len(closed)
	}
	if window == 0 {
		return sizing.Performance{}
	}
	recent := closed[len(closed)-window:]
	wins := 0
	for _, t := range recent {
		if t.PnL > 0 {
			wins++
		}
	}
	return sizing.Performance{
		WinRate: float64(wins) / float64(len(recent)),
		Trades:  len(recent),
	}
}

// checkExit models stop/target hits inside a bar. When both are touched in
// the same bar we assume the worst case for the trader: stop first.
func checkExit(p position, bar market.Bar) (exitPx float64, reason string, hit bool) {
	if !p.open {
		return 0, "", false
	}

	hasStop := p.stop != 0
	hasTarget := p.target != 0

	if p.units > 0 {
		stopHit := hasStop && bar.Low <= p.stop
		targetHit := hasTarget && bar.High >= p.target
		switch {
		case stopHit:
			return p.stop, "stop", true
		case targetHit:
			return p.target, "target", true
		}
	} else {
		stopHit := hasStop && bar.High >= p.stop
		targetHit := hasTarget && bar.Low <= p.target
		switch {
		case stopHit:
			return p.stop, "stop", true
		case targetHit:
			return p.target, "target", true
		}
	}
	return 0, "", false
}

func closeTrade(p *position, acct *broker.AccountState, exitPx float64, t time.Time, reason string) Trade {
	pnl := p.units * (exitPx - p.entryPrice)
	acct.Balance += pnl

	trade := Trade{
		EntryTime:  p.entryTime,
		ExitTime:   t,
		EntryPrice: p.entryPrice,
		ExitPrice:  exitPx,
		Units:      p.units,
		PnL:        pnl,
		Reason:     reason,
	}
	p.open = false
	return trade
}

func unrealized(p position, mark float64) float64 {
	if !p.open {
		return 0
	}
	return p.units * (mark - p.entryPrice)
}
