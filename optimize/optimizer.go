// Package optimize searches a strategy parameter space with the backtest
// engine as the scoring function, validates the winner out-of-sample and
// stress-tests it with Monte Carlo trade resampling.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rgould/quantrisk/backtest"
	"github.com/rgould/quantrisk/market"
	"github.com/rgould/quantrisk/pkg/id"
	"github.com/rgould/quantrisk/strategies"
)

// ErrOptimizationTimeout is returned only when the budget expired before a
// single evaluation completed. A partially completed search returns its best
// candidate with Run.TimedOut set instead.
var ErrOptimizationTimeout = errors.New("optimization timeout")

// Objective selects the in-sample score.
type Objective string

const (
	ObjectiveSharpe    Objective = "sharpe"
	ObjectiveReturn    Objective = "return"
	ObjectiveComposite Objective = "composite"
)

// Score reduces backtest metrics to the objective value.
func (o Objective) Score(m backtest.Metrics) float64 {
	switch o {
	case ObjectiveReturn:
		return m.TotalReturnPct
	case ObjectiveComposite:
		// Sharpe with a drawdown penalty and a small return tilt.
		return m.Sharpe + m.TotalReturnPct/100 - m.MaxDrawdownPct/100
	default:
		return m.Sharpe
	}
}

// Candidate is one evaluated parameter set. Failed evaluations carry Err
// and are excluded from ranking but kept for the report.
type Candidate struct {
	Params  strategies.Params `json:"params"`
	Score   float64           `json:"score"`
	Metrics backtest.Metrics  `json:"metrics"`
	Err     string            `json:"error,omitempty"`
}

// Run is the optimization artifact.
type Run struct {
	RunID       string      `json:"run_id"`
	Strategy    string      `json:"strategy"`
	Objective   Objective   `json:"objective"`
	Candidates  []Candidate `json:"candidates"`
	Best        *Candidate  `json:"best"`
	OOSScore    float64     `json:"oos_score"`
	OverfitRisk bool        `json:"overfit_risk"`
	TimedOut    bool        `json:"timed_out"`
	Evaluations int         `json:"evaluations"`
	MonteCarlo  *MCResult   `json:"monte_carlo,omitempty"`
	Started     time.Time   `json:"started"`
	Finished    time.Time   `json:"finished"`
}

// Options bounds the search.
type Options struct {
	MaxEvaluations int           `yaml:"max_evaluations" default:"100" validate:"gt=0"`
	Workers        int           `yaml:"workers" default:"4" validate:"gt=0"`
	Budget         time.Duration `yaml:"budget" default:"10m"`

	// OverfitTolerance is the fraction of the in-sample score the
	// out-of-sample score may lose before the run is flagged.
	OverfitTolerance float64 `yaml:"overfit_tolerance" default:"0.3" validate:"gte=0,lte=1"`

	MonteCarloRuns int   `yaml:"monte_carlo_runs" default:"500" validate:"gte=0"`
	Seed           int64 `yaml:"seed" default:"1"`
}

// Optimizer scores parameter sets for one strategy over fixed data windows.
type Optimizer struct {
	Strategy string
	Backtest backtest.Config
	Opts     Options
	log      zerolog.Logger
}

func New(strategy string, btCfg backtest.Config, opts Options, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		Strategy: strategy,
		Backtest: btCfg,
		Opts:     opts,
		log:      log.With().Str("component", "optimize").Logger(),
	}
}

// Run evaluates candidates concurrently, picks the best in-sample score,
// re-evaluates it once out-of-sample, and resamples its trades. Evaluations
// are independent; one failure is recorded, not fatal. Cancellation takes
// effect between evaluations and preserves completed work.
func (o *Optimizer) Run(ctx context.Context, space Space, objective Objective, inSample, outOfSample []market.Bar) (Run, error) {
	run := Run{
		RunID:     id.New(),
		Strategy:  o.Strategy,
		Objective: objective,
		Started:   time.Now().UTC(),
	}

	candidates, err := space.Candidates(o.Opts.MaxEvaluations, o.Opts.Seed)
	if err != nil {
		return run, err
	}

	evalCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.Opts.Budget > 0 {
		evalCtx, cancel = context.WithTimeout(ctx, o.Opts.Budget)
	}
	defer cancel()

	var mu sync.Mutex
	results := make([]Candidate, 0, len(candidates))

	var g errgroup.Group
	g.SetLimit(o.Opts.Workers)

	for _, params := range candidates {
		params := params
		// The budget only gates scheduling: the pool stops picking up new
		// work once it lapses, while evaluations already in flight run on
		// the caller context and complete, so finished work is never
		// discarded or recorded as failed.
		if evalCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			c := o.evaluate(ctx, params, objective, inSample)
			mu.Lock()
			results = append(results, c)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	run.TimedOut = errors.Is(evalCtx.Err(), context.DeadlineExceeded)

	run.Evaluations = len(results)
	sortCandidates(results)
	run.Candidates = results

	best := firstRanked(results)
	if best == nil {
		run.Finished = time.Now().UTC()
		if run.TimedOut {
			return run, fmt.Errorf("%w: no evaluation completed within budget", ErrOptimizationTimeout)
		}
		return run, fmt.Errorf("no candidate evaluated successfully")
	}
	run.Best = best

	// Out-of-sample validation of the single best candidate. A degraded
	// score flags the run but never discards the candidate.
	if len(outOfSample) > 0 {
		oos := o.evaluate(ctx, best.Params, objective, outOfSample)
		if oos.Err == "" {
			run.OOSScore = oos.Score
			run.OverfitRisk = overfit(best.Score, oos.Score, o.Opts.OverfitTolerance)
		} else {
			o.log.Warn().Str("error", oos.Err).Msg("out-of-sample evaluation failed")
		}
	}

	// Monte Carlo sequence-order risk on the winner's in-sample trades.
	if o.Opts.MonteCarloRuns > 0 {
		engine := backtest.NewEngine(o.Backtest, o.log)
		strat, err := strategies.New(o.Strategy, best.Params)
		if err == nil {
			if res, err := engine.Run(ctx, strat, inSample); err == nil {
				mc := Resample(res.Trades, o.Backtest.InitialBalance, o.Opts.MonteCarloRuns, o.Opts.Seed)
				run.MonteCarlo = &mc
			}
		}
	}

	run.Finished = time.Now().UTC()
	return run, nil
}

func (o *Optimizer) evaluate(ctx context.Context, params strategies.Params, objective Objective, bars []market.Bar) Candidate {
	c := Candidate{Params: params}

	strat, err := strategies.New(o.Strategy, params)
	if err != nil {
		c.Err = err.Error()
		return c
	}

	engine := backtest.NewEngine(o.Backtest, o.log)
	res, err := engine.Run(ctx, strat, bars)
	if err != nil {
		c.Err = err.Error()
		return c
	}

	c.Metrics = res.Metrics
	c.Score = objective.Score(res.Metrics)
	if math.IsNaN(c.Score) || math.IsInf(c.Score, 0) {
		c.Err = "non-finite score"
		c.Score = 0
	}
	return c
}

// sortCandidates ranks successes by descending score, failures last.
// Ties break on the parameter fingerprint so ordering is deterministic.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if (cs[i].Err == "") != (cs[j].Err == "") {
			return cs[i].Err == ""
		}
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return fingerprint(cs[i].Params) < fingerprint(cs[j].Params)
	})
}

func firstRanked(cs []Candidate) *Candidate {
	for i := range cs {
		if cs[i].Err == "" {
			return &cs[i]
		}
	}
	return nil
}

func overfit(inScore, oosScore, tolerance float64) bool {
	degradation := inScore - oosScore
	if degradation <= 0 {
		return false
	}
	scale := math.Abs(inScore)
	if scale == 0 {
		scale = 1
	}
	return degradation > tolerance*scale
}

func fingerprint(p strategies.Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		s += fmt.Sprintf("%s=%g;", k, p[k])
	}
	return s
}
