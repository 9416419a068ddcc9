// Package trading is the live sizing/risk path invoked by the external
// signal handler. It is synchronous and performs no blocking I/O beyond the
// account-state and market-data point reads; any failure of those reads
// fails the decision closed.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rgould/quantrisk/broker"
	"github.com/rgould/quantrisk/internal/metrics"
	"github.com/rgould/quantrisk/journal"
	"github.com/rgould/quantrisk/market"
	"github.com/rgould/quantrisk/pkg/id"
	"github.com/rgould/quantrisk/regime"
	"github.com/rgould/quantrisk/risk"
	"github.com/rgould/quantrisk/sizing"
)

// RawSignal is the inbound trade signal from the webhook collaborator.
type RawSignal struct {
	ID             string
	Symbol         string
	Direction      int // +1 long, -1 short
	RequestedUnits float64
	Stop           float64 // optional
	Target         float64 // optional
	Time           time.Time
}

// Adjusted is the accepted outcome: a sized signal with a risk-aware stop.
type Adjusted struct {
	SignalID  string
	Symbol    string
	Direction int
	Units     float64
	Stop      float64
	Target    float64
	Decision  sizing.Decision
	Verdict   risk.Verdict
}

// Rejection is the explicit refusal returned instead of an unsized trade.
type Rejection struct {
	SignalID string
	Reason   string
	Detail   string
}

// Reason codes for rejections that originate in this package rather than
// the risk manager.
const (
	ReasonDataUnavailable = "DATA_UNAVAILABLE"
	ReasonZeroSize        = "ZERO_SIZE"
)

// Config for the live engine.
type Config struct {
	// Bars fetched for feature extraction on each decision.
	LookbackBars int `yaml:"lookback_bars" default:"60" validate:"gt=1"`
	// Window over which trailing performance is measured.
	PerformanceDays int `yaml:"performance_days" default:"7" validate:"gt=0"`

	Features market.FeatureConfig `yaml:"features"`
	Sizing   sizing.Config        `yaml:"sizing"`
	Risk     risk.Config          `yaml:"risk"`
}

// Engine is the live decision pipeline: regime -> sizer -> risk manager.
type Engine struct {
	cfg     Config
	bars    market.BarSource
	account broker.AccountSource
	models  *regime.Store
	sizer   *sizing.Sizer
	riskMgr *risk.Manager
	journal journal.Journal
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewEngine(
	cfg Config,
	bars market.BarSource,
	account broker.AccountSource,
	models *regime.Store,
	riskMgr *risk.Manager,
	j journal.Journal,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Engine {
	if j == nil {
		j = journal.Nop{}
	}
	return &Engine{
		cfg:     cfg,
		bars:    bars,
		account: account,
		models:  models,
		sizer:   sizing.New(cfg.Sizing),
		riskMgr: riskMgr,
		journal: j,
		metrics: m,
		log:     log.With().Str("component", "trading").Logger(),
	}
}

// ApplyTradingLogic sizes and risk-checks a raw signal. Exactly one of the
// returned adjusted signal or rejection is non-nil on a nil error; a
// non-nil error always carries a rejection so the caller never executes an
// unbounded trade.
func (e *Engine) ApplyTradingLogic(ctx context.Context, raw RawSignal) (*Adjusted, *Rejection, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.SizingSeconds.Observe(time.Since(start).Seconds())
		}
	}()

	if raw.ID == "" {
		raw.ID = id.New()
	}
	if raw.Time.IsZero() {
		raw.Time = time.Now().UTC()
	}

	acct, err := e.account.Account(ctx)
	if err != nil {
		return nil, e.failClosed(raw, "account state unavailable"),
			fmt.Errorf("read account state: %w", err)
	}
	positions, err := e.account.OpenPositions(ctx)
	if err != nil {
		return nil, e.failClosed(raw, "open positions unavailable"),
			fmt.Errorf("read open positions: %w", err)
	}
	bars, err := e.bars.Latest(ctx, raw.Symbol, e.cfg.LookbackBars)
	if err != nil {
		return nil, e.failClosed(raw, "market data unavailable"),
			fmt.Errorf("read market data: %w", err)
	}

	label := e.classify(raw, bars)
	e.recordRegime(label)

	price := 0.0
	if len(bars) > 0 {
		price = bars[len(bars)-1].Close
	}

	decision := e.sizer.Size(sizing.Request{
		SignalID:       raw.ID,
		Symbol:         raw.Symbol,
		Direction:      raw.Direction,
		RequestedUnits: raw.RequestedUnits,
		Price:          price,
		Stop:           raw.Stop,
	}, label, acct, e.trailingPerformance(raw.Time))
	decision.Time = raw.Time
	e.recordDecision(decision)

	verdict := e.riskMgr.Evaluate(acct, decision, positions)
	e.recordVerdict(raw.ID, raw.Time, verdict)
	e.observeVerdict(verdict)

	if !verdict.Allow {
		return nil, &Rejection{
			SignalID: raw.ID,
			Reason:   string(verdict.Reason),
			Detail:   fmt.Sprintf("risk status %s", verdict.Status),
		}, nil
	}

	if decision.Skip() {
		if e.metrics != nil {
			e.metrics.Decisions.WithLabelValues("skip").Inc()
		}
		return nil, &Rejection{
			SignalID: raw.ID,
			Reason:   ReasonZeroSize,
			Detail:   "sizer produced a zero size for the current regime",
		}, nil
	}

	e.riskMgr.Commit(decision)
	if e.metrics != nil {
		e.metrics.Decisions.WithLabelValues("accepted").Inc()
	}

	stop := raw.Stop
	if stop == 0 && price > 0 {
		stop = riskAwareStop(price, raw.Direction, e.cfg.Sizing.DefaultStopPercent)
	}

	e.log.Info().
		Str("signal_id", raw.ID).
		Str("symbol", raw.Symbol).
		Float64("units", decision.AdjustedSize).
		Float64("risk_amount", decision.RiskAmount).
		Int("regime", decision.RegimeID).
		Msg("signal accepted")

	return &Adjusted{
		SignalID:  raw.ID,
		Symbol:    raw.Symbol,
		Direction: raw.Direction,
		Units:     decision.AdjustedSize,
		Stop:      stop,
		Target:    raw.Target,
		Decision:  decision,
		Verdict:   verdict,
	}, nil, nil
}

// classify runs the regime detector against the latest bars, degrading to
// the unclassified label when no model is published or the history is too
// short.
func (e *Engine) classify(raw RawSignal, bars []market.Bar) regime.Label {
	model := e.models.Current()
	if model == nil {
		return regime.Unclassified(raw.Symbol, raw.Time)
	}
	fw, err := market.ExtractFeatures(bars, e.cfg.Features)
	if err != nil {
		e.log.Debug().Err(err).Msg("feature extraction failed, sizing unclassified")
		return regime.Unclassified(raw.Symbol, raw.Time)
	}
	return model.Classify(fw)
}

func (e *Engine) trailingPerformance(now time.Time) sizing.Performance {
	from := now.AddDate(0, 0, -e.cfg.PerformanceDays)
	trades, err := e.journal.ListTradesClosedBetween(from, now)
	if err != nil || len(trades) == 0 {
		return sizing.Performance{}
	}
	wins := 0
	for _, t := range trades {
		if t.RealizedPL > 0 {
			wins++
		}
	}
	return sizing.Performance{
		WinRate: float64(wins) / float64(len(trades)),
		Trades:  len(trades),
	}
}

func (e *Engine) failClosed(raw RawSignal, detail string) *Rejection {
	if e.metrics != nil {
		e.metrics.Decisions.WithLabelValues("failed_closed").Inc()
	}
	e.log.Error().Str("signal_id", raw.ID).Str("detail", detail).Msg("decision failed closed")
	return &Rejection{SignalID: raw.ID, Reason: ReasonDataUnavailable, Detail: detail}
}

func (e *Engine) observeVerdict(v risk.Verdict) {
	if e.metrics == nil {
		return
	}
	if v.Status == risk.StatusHalted {
		e.metrics.HaltState.Set(1)
	} else {
		e.metrics.HaltState.Set(0)
	}
	if !v.Allow {
		e.metrics.Rejections.WithLabelValues(string(v.Reason)).Inc()
	}
}

func (e *Engine) recordDecision(d sizing.Decision) {
	err := e.journal.RecordDecision(journal.DecisionRecord{
		SignalID:          d.SignalID,
		Symbol:            d.Symbol,
		Time:              d.Time,
		OriginalSize:      d.OriginalSize,
		AdjustedSize:      d.AdjustedSize,
		RiskAmount:        d.RiskAmount,
		RiskPercent:       d.RiskPercent,
		RegimeID:          d.RegimeID,
		ModelVersion:      d.ModelVersion,
		RegimeFactor:      d.RegimeFactor,
		PerformanceFactor: d.PerformanceFactor,
	})
	if err != nil {
		e.log.Error().Err(err).Msg("journal decision")
	}
}

func (e *Engine) recordVerdict(signalID string, t time.Time, v risk.Verdict) {
	err := e.journal.RecordVerdict(journal.VerdictRecord{
		SignalID: signalID,
		Time:     t,
		Allow:    v.Allow,
		Reason:   string(v.Reason),
		Status:   string(v.Status),
	})
	if err != nil {
		e.log.Error().Err(err).Msg("journal verdict")
	}
}

func (e *Engine) recordRegime(l regime.Label) {
	err := e.journal.RecordRegime(journal.RegimeRecord{
		Symbol:            l.Symbol,
		Time:              l.Time,
		RegimeID:          l.RegimeID,
		Volatility:        string(l.Volatility),
		OutOfDistribution: l.OutOfDistribution,
		ModelVersion:      l.ModelVersion,
	})
	if err != nil {
		e.log.Error().Err(err).Msg("journal regime label")
	}
}

// riskAwareStop derives a default stop price from the configured stop
// distance when the signal carried none.
func riskAwareStop(price float64, direction int, stopPct float64) float64 {
	d := price * stopPct / 100
	if direction < 0 {
		return price + d
	}
	return price - d
}
