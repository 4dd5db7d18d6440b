package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectCappedSimplex(t *testing.T) {
	tests := []struct {
		name string
		v    []float64
		want []float64
	}{
		{
			name: "feasible point unchanged",
			v:    []float64{0.20, 0.25, 0.25, 0.15},
			want: []float64{0.20, 0.25, 0.25, 0.15},
		},
		{
			name: "uniform overshoot shrinks evenly",
			v:    []float64{1, 1, 1, 1},
			want: []float64{0.2125, 0.2125, 0.2125, 0.2125},
		},
		{
			name: "dominant coordinate hits the cap",
			v:    []float64{10, 0, 0, 0},
			want: []float64{0.50, 0.35 / 3, 0.35 / 3, 0.35 / 3},
		},
		{
			name: "tiny coordinate hits the floor",
			v:    []float64{0.4, 0.4, 0.4, -5},
			want: []float64{0.8 / 3, 0.8 / 3, 0.8 / 3, 0.05},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := projectCappedSimplex(tt.v, 0.05, 0.50, 0.85)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))

			sum := 0.0
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
				assert.GreaterOrEqual(t, got[i], 0.05)
				assert.LessOrEqual(t, got[i], 0.50)
				sum += got[i]
			}
			assert.InDelta(t, 0.85, sum, 1e-9)
		})
	}
}

func TestProjectCappedSimplexInfeasible(t *testing.T) {
	_, err := projectCappedSimplex([]float64{0.3, 0.3, 0.3, 0.3}, 0.30, 0.40, 0.85)
	assert.Error(t, err, "sum below 4*lo cannot be reached")

	_, err = projectCappedSimplex([]float64{0.1, 0.1}, 0.05, 0.30, 0.85)
	assert.Error(t, err, "sum above 2*hi cannot be reached")
}
