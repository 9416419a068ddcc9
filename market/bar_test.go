package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrueRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		bar       Bar
		prevClose float64
		want      float64
	}{
		{"range dominates", Bar{High: 105, Low: 100}, 102, 5},
		{"gap up dominates", Bar{High: 110, Low: 108}, 100, 10},
		{"gap down dominates", Bar{High: 92, Low: 90}, 100, 10},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, tt.bar.TrueRange(tt.prevClose), 1e-12)
		})
	}
}
