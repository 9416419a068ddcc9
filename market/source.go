package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// BarSource is the market-data collaborator boundary. Reads are fallible,
// retryable point reads; implementations must not hold connections open
// across calls.
type BarSource interface {
	// History returns the ordered bars for symbol in [from, to].
	History(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
	// Latest returns the trailing n bars for symbol.
	Latest(ctx context.Context, symbol string, n int) ([]Bar, error)
}

// CSVSource reads bars from a CSV file with columns
// time,symbol,open,high,low,close,volume (header optional).
// It loads the whole file up front so backtests never contend with a live
// ingestion path.
type CSVSource struct {
	bars map[string][]Bar
}

func NewCSVSource(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	src := &CSVSource{bars: make(map[string][]Bar)}

	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}
		b, err := parseBarRow(row)
		if err != nil {
			return nil, err
		}
		src.bars[b.Symbol] = append(src.bars[b.Symbol], b)
	}

	return src, nil
}

func (s *CSVSource) History(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	all, ok := s.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for symbol %q", symbol)
	}
	var out []Bar
	for _, b := range all {
		if b.Time.Before(from) || b.Time.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *CSVSource) Latest(ctx context.Context, symbol string, n int) ([]Bar, error) {
	all, ok := s.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for symbol %q", symbol)
	}
	if n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}

func parseBarRow(row []string) (Bar, error) {
	if len(row) < 7 {
		return Bar{}, fmt.Errorf("bad row (need time,symbol,open,high,low,close,volume): %v", row)
	}

	ts := strings.TrimSpace(row[0])
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return Bar{}, fmt.Errorf("bad time %q: %w", row[0], err)
		}
		t = t2
	}

	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+2]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad value %q: %w", row[i+2], err)
		}
		vals[i] = v
	}

	return Bar{
		Symbol: strings.TrimSpace(row[1]),
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// SliceSource serves bars already in memory. Used by the backtest CLI when
// generating synthetic data, and by tests.
type SliceSource struct {
	Data map[string][]Bar
}

func (s *SliceSource) History(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	all, ok := s.Data[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for symbol %q", symbol)
	}
	var out []Bar
	for _, b := range all {
		if b.Time.Before(from) || b.Time.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *SliceSource) Latest(ctx context.Context, symbol string, n int) ([]Bar, error) {
	all, ok := s.Data[symbol]
	if !ok {
		return nil, fmt.Errorf("no data for symbol %q", symbol)
	}
	if n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}
