package baseline

import (
	"testing"

	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(lengths ...int) [][]int {
	ids := make([][]int, len(lengths))
	for i, n := range lengths {
		ids[i] = make([]int, n)
	}
	return ids
}

func TestConstantPredictors(t *testing.T) {
	for _, tc := range []struct {
		predictor Predictor
		want      labels.Label
	}{
		{AllZeros{}, labels.Outside},
		{AllOnes{}, labels.Manipulation},
	} {
		t.Run(tc.predictor.Name(), func(t *testing.T) {
			logits := tc.predictor.Predict(batch(3, 0, 2))
			require.Len(t, logits, 3)
			assert.Len(t, logits[0], 3)
			assert.Empty(t, logits[1])
			for _, doc := range logits {
				for _, l := range labels.ArgMax(doc) {
					assert.Equal(t, tc.want, l)
				}
			}
		})
	}
}

func TestPredictRowsAreNotShared(t *testing.T) {
	logits := AllZeros{}.Predict(batch(2))
	logits[0][0][0] = 42
	assert.Equal(t, float32(1), logits[0][1][0])
	assert.Equal(t, float32(1), AllZeros{}.Predict(batch(1))[0][0][0])
}

func TestRandomPredictors(t *testing.T) {
	for _, name := range []string{"uniform", "normal"} {
		t.Run(name, func(t *testing.T) {
			p1, err := New(name, 42)
			require.NoError(t, err)
			p2, err := New(name, 42)
			require.NoError(t, err)
			first, second := p1.Predict(batch(1000)), p2.Predict(batch(1000))
			assert.Equal(t, first, second, "same seed must give the same predictions")

			ones := 0
			for _, l := range labels.ArgMax(first[0]) {
				if l == labels.Manipulation {
					ones++
				}
			}
			// Both distributions are symmetric around 0.5.
			assert.InDelta(t, 500, ones, 100)
		})
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New("oracle", 0)
	assert.Error(t, err)
	for _, name := range Names {
		p, err := New(name, 1)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
}
