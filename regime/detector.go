// Package regime classifies market conditions into discrete volatility
// regimes by clustering normalized feature windows. Training is an
// infrequent batch operation; classification against a trained model is
// stateless and cheap enough for the live sizing path.
package regime

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rgould/quantrisk/market"
	"github.com/rgould/quantrisk/pkg/id"
)

// ErrInsufficientData is returned when there is not enough history to train.
// Callers on the live path should fall back to the unclassified label rather
// than blocking sizing.
var ErrInsufficientData = errors.New("insufficient data")

// Volatility buckets a regime's relative volatility.
type Volatility string

const (
	VolatilityLow     Volatility = "LOW"
	VolatilityMedium  Volatility = "MEDIUM"
	VolatilityHigh    Volatility = "HIGH"
	VolatilityUnknown Volatility = "UNKNOWN"
)

// Label is the classification of one feature window. One label per
// (symbol, timestamp); regime IDs are only stable within a model version.
type Label struct {
	Symbol            string
	Time              time.Time
	RegimeID          int
	Volatility        Volatility
	Distance          float64 // distance to the winning centroid, normalized space
	OutOfDistribution bool    // window fell outside the trained feature range
	ModelVersion      string
}

// Unclassified is the fallback label used when no model is available or
// training data was insufficient.
func Unclassified(symbol string, t time.Time) Label {
	return Label{
		Symbol:     symbol,
		Time:       t,
		RegimeID:   -1,
		Volatility: VolatilityUnknown,
	}
}

// Config controls training.
type Config struct {
	K               int   `yaml:"k" default:"3" validate:"gte=2,lte=8"`
	MinTrainWindows int   `yaml:"min_train_windows" default:"50" validate:"gt=0"`
	MaxIterations   int   `yaml:"max_iterations" default:"100" validate:"gt=0"`
	Seed            int64 `yaml:"seed" default:"1"`
}

// RegimeStats are the descriptive statistics kept per regime after training.
type RegimeStats struct {
	Count         int
	MeanATRPct    float64
	MeanVolRatio  float64
	MeanReturnStd float64
}

// Model is a trained regime classifier. Models are immutable after Fit;
// re-training produces a new Model published through the Store.
type Model struct {
	Version   string
	TrainedAt time.Time
	K         int

	centroids [][]float64 // normalized feature space, ordered by volatility
	mean      []float64
	std       []float64
	featMin   []float64 // trained range per raw feature, for OOD flagging
	featMax   []float64
	stats     []RegimeStats
}

// Fit trains a k-means model over the feature windows. Centroids are ordered
// by their volatility feature so regime 0 is always the calmest bucket.
func Fit(windows []market.FeatureWindow, cfg Config) (*Model, error) {
	if cfg.K < 2 {
		return nil, fmt.Errorf("k must be at least 2, got %d", cfg.K)
	}
	minTrain := cfg.MinTrainWindows
	if minTrain < cfg.K {
		minTrain = cfg.K
	}
	if len(windows) < minTrain {
		return nil, fmt.Errorf("%w: need %d feature windows, got %d",
			ErrInsufficientData, minTrain, len(windows))
	}

	raw := make([][]float64, len(windows))
	for i, w := range windows {
		raw[i] = w.Vector()
	}

	mean, std := columnStats(raw)
	featMin, featMax := columnRange(raw)

	points := make([][]float64, len(raw))
	for i, v := range raw {
		points[i] = normalize(v, mean, std)
	}

	centroids, assign := kmeans(points, cfg.K, cfg.MaxIterations, cfg.Seed)

	// Order centroids by denormalized ATR% (feature 0) so IDs are meaningful.
	order := make([]int, cfg.K)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return centroids[order[a]][0] < centroids[order[b]][0]
	})

	ordered := make([][]float64, cfg.K)
	remap := make([]int, cfg.K)
	for newID, oldID := range order {
		ordered[newID] = centroids[oldID]
		remap[oldID] = newID
	}

	stats := make([]RegimeStats, cfg.K)
	for i, w := range windows {
		rid := remap[assign[i]]
		s := &stats[rid]
		s.Count++
		s.MeanATRPct += w.ATRPercent
		s.MeanVolRatio += w.VolumeRatio
		s.MeanReturnStd += w.ReturnStd
	}
	for i := range stats {
		if stats[i].Count > 0 {
			n := float64(stats[i].Count)
			stats[i].MeanATRPct /= n
			stats[i].MeanVolRatio /= n
			stats[i].MeanReturnStd /= n
		}
	}

	return &Model{
		Version:   id.New(),
		TrainedAt: time.Now().UTC(),
		K:         cfg.K,
		centroids: ordered,
		mean:      mean,
		std:       std,
		featMin:   featMin,
		featMax:   featMax,
		stats:     stats,
	}, nil
}

// Classify assigns the nearest-centroid label to a feature window. Windows
// outside the trained feature range still classify (no extrapolation
// failure) but are flagged OutOfDistribution. Equidistant centroids resolve
// to the lower regime ID.
func (m *Model) Classify(w market.FeatureWindow) Label {
	v := w.Vector()
	p := normalize(v, m.mean, m.std)

	best := 0
	bestDist := math.Inf(1)
	for i, c := range m.centroids {
		d := sqDist(p, c)
		if d < bestDist { // strict: ties keep the lower index
			best = i
			bestDist = d
		}
	}

	ood := false
	for i, x := range v {
		if x < m.featMin[i] || x > m.featMax[i] {
			ood = true
			break
		}
	}

	return Label{
		Symbol:            w.Symbol,
		Time:              w.End,
		RegimeID:          best,
		Volatility:        m.volatilityLevel(best),
		Distance:          math.Sqrt(bestDist),
		OutOfDistribution: ood,
		ModelVersion:      m.Version,
	}
}

// Stats returns the descriptive statistics for a regime ID.
func (m *Model) Stats(regimeID int) (RegimeStats, bool) {
	if regimeID < 0 || regimeID >= len(m.stats) {
		return RegimeStats{}, false
	}
	return m.stats[regimeID], true
}

// volatilityLevel maps a regime's volatility rank to a bucket: the calmest
// regime is LOW, the most turbulent HIGH, everything between MEDIUM.
func (m *Model) volatilityLevel(regimeID int) Volatility {
	switch {
	case regimeID == 0:
		return VolatilityLow
	case regimeID == m.K-1:
		return VolatilityHigh
	default:
		return VolatilityMedium
	}
}

func kmeans(points [][]float64, k, maxIter int, seed int64) (centroids [][]float64, assign []int) {
	rng := rand.New(rand.NewSource(seed))
	dims := len(points[0])

	// Deterministic init: k distinct points chosen by the seeded RNG.
	perm := rng.Perm(len(points))
	centroids = make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), points[perm[i]]...)
	}

	assign = make([]int, len(points))

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			best := 0
			bestDist := math.Inf(1)
			for c, cent := range centroids {
				d := sqDist(p, cent)
				if d < bestDist {
					best = c
					bestDist = d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dims)
		}
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for d, x := range p {
				sums[c][d] += x
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster: reseed deterministically from the RNG.
				centroids[c] = append([]float64(nil), points[rng.Intn(len(points))]...)
				continue
			}
			for d := 0; d < dims; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}
	return centroids, assign
}

func columnStats(rows [][]float64) (mean, std []float64) {
	dims := len(rows[0])
	mean = make([]float64, dims)
	std = make([]float64, dims)

	for _, r := range rows {
		for d, x := range r {
			mean[d] += x
		}
	}
	n := float64(len(rows))
	for d := range mean {
		mean[d] /= n
	}
	for _, r := range rows {
		for d, x := range r {
			diff := x - mean[d]
			std[d] += diff * diff
		}
	}
	for d := range std {
		std[d] = math.Sqrt(std[d] / n)
		if std[d] == 0 {
			std[d] = 1 // constant feature, avoid dividing by zero
		}
	}
	return mean, std
}

func columnRange(rows [][]float64) (lo, hi []float64) {
	dims := len(rows[0])
	lo = make([]float64, dims)
	hi = make([]float64, dims)
	copy(lo, rows[0])
	copy(hi, rows[0])
	for _, r := range rows[1:] {
		for d, x := range r {
			if x < lo[d] {
				lo[d] = x
			}
			if x > hi[d] {
				hi[d] = x
			}
		}
	}
	return lo, hi
}

func normalize(v, mean, std []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = (v[i] - mean[i]) / std[i]
	}
	return out
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
