package risk

// Status reflects how close the account is to its risk limits.
type Status string

const (
	StatusNormal  Status = "NORMAL"
	StatusWarning Status = "WARNING"
	StatusHalted  Status = "HALTED"
)

// Reason codes for rejected trades. Surfaced to the caller; never retried
// automatically.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonDailyRiskExceeded  Reason = "DAILY_RISK_EXCEEDED"
	ReasonCorrelatedExposure Reason = "CORRELATED_EXPOSURE_EXCEEDED"
	ReasonDrawdownHalt       Reason = "DRAWDOWN_HALT"
)

// Verdict is the risk manager's answer to a proposed sizing decision.
// A HALTED status forces Allow=false regardless of the proposal.
type Verdict struct {
	Allow  bool
	Reason Reason
	Status Status

	// Observability: utilization of the binding caps at decision time.
	DailyRiskUsed    float64
	CorrelatedNotion float64
}

// Config holds the account-wide risk limits.
type Config struct {
	DailyRiskCap float64 `yaml:"daily_risk_cap" default:"500" validate:"gt=0"`

	CorrelationThreshold  float64 `yaml:"correlation_threshold" default:"0.7" validate:"gte=0,lte=1"`
	CorrelatedExposureCap float64 `yaml:"correlated_exposure_cap" default:"20000" validate:"gt=0"`

	// The halt engages at HaltDrawdownPercent and only releases once
	// drawdown recovers below ResumeDrawdownPercent. The gap is the
	// hysteresis that stops the halt from flapping.
	HaltDrawdownPercent   float64 `yaml:"halt_drawdown_percent" default:"20" validate:"gt=0,lte=100"`
	ResumeDrawdownPercent float64 `yaml:"resume_drawdown_percent" default:"15" validate:"gte=0,lte=100"`

	// WarningMarginPercent sets how close (in percent of a cap) usage may
	// come before the verdict reports WARNING. Observability only; a
	// WARNING never blocks the trade.
	WarningMarginPercent float64 `yaml:"warning_margin_percent" default:"10" validate:"gte=0,lte=100"`
}

// Correlator answers pairwise symbol correlation questions. The live system
// feeds this from its market-data collaborator; tests and backtests use the
// static matrix below.
type Correlator interface {
	Correlation(a, b string) float64
}

// StaticCorrelations is a symmetric correlation matrix keyed by symbol pair.
type StaticCorrelations map[string]map[string]float64

func (m StaticCorrelations) Correlation(a, b string) float64 {
	if a == b {
		return 1
	}
	if row, ok := m[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	if row, ok := m[b]; ok {
		if v, ok := row[a]; ok {
			return v
		}
	}
	return 0
}
