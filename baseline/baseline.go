// Package baseline provides trivial predictors used to put the metrics of a trained model
// into perspective.
package baseline

import (
	"math/rand/v2"
	"sync"

	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/pkg/errors"
)

// Predictor returns two-class logits, one pair per token, for each sequence of token ids.
type Predictor interface {
	Name() string
	Predict(inputIDs [][]int) [][][]float32
}

var (
	outsideLogits      = []float32{1, 0}
	manipulationLogits = []float32{0, 1}
)

func logitsFor(l labels.Label) []float32 {
	if l == labels.Manipulation {
		return manipulationLogits
	}
	return outsideLogits
}

// fill calls next for each token of inputIDs and builds the logits from the label returned.
func fill(inputIDs [][]int, next func() labels.Label) [][][]float32 {
	logits := make([][][]float32, len(inputIDs))
	for i, ids := range inputIDs {
		logits[i] = make([][]float32, len(ids))
		for j := range ids {
			// Copy, so callers can't alias the shared rows.
			logits[i][j] = append([]float32(nil), logitsFor(next())...)
		}
	}
	return logits
}

// AllZeros predicts labels.Outside everywhere.
type AllZeros struct{}

func (AllZeros) Name() string { return "all-zeros" }

func (AllZeros) Predict(inputIDs [][]int) [][][]float32 {
	return fill(inputIDs, func() labels.Label { return labels.Outside })
}

// AllOnes predicts labels.Manipulation everywhere.
type AllOnes struct{}

func (AllOnes) Name() string { return "all-ones" }

func (AllOnes) Predict(inputIDs [][]int) [][][]float32 {
	return fill(inputIDs, func() labels.Label { return labels.Manipulation })
}

// Random predicts labels.Manipulation whenever a sample of its distribution is >= 0.5.
// It is safe for concurrent use; its output depends on the order of the calls.
type Random struct {
	name   string
	mu     sync.Mutex
	rng    *rand.Rand
	sample func(*rand.Rand) float64
}

// Uniform samples from U[0, 1): each token is labeled labels.Manipulation with probability 0.5.
func Uniform(seed uint64) *Random {
	return &Random{
		name:   "uniform",
		rng:    rand.New(rand.NewPCG(seed, seed)),
		sample: (*rand.Rand).Float64,
	}
}

// Normal samples from N(0.5, 0.1667), i.e. values mostly within [0, 1].
func Normal(seed uint64) *Random {
	return &Random{
		name: "normal",
		rng:  rand.New(rand.NewPCG(seed, seed)),
		sample: func(r *rand.Rand) float64 {
			return 0.5 + 0.1667*r.NormFloat64()
		},
	}
}

func (r *Random) Name() string { return r.name }

func (r *Random) Predict(inputIDs [][]int) [][][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fill(inputIDs, func() labels.Label {
		if r.sample(r.rng) >= 0.5 {
			return labels.Manipulation
		}
		return labels.Outside
	})
}

// Names lists the predictors known to New.
var Names = []string{"all-zeros", "all-ones", "uniform", "normal"}

// New returns the predictor with the given name. Seed is only used by random predictors.
func New(name string, seed uint64) (Predictor, error) {
	switch name {
	case "all-zeros":
		return AllZeros{}, nil
	case "all-ones":
		return AllOnes{}, nil
	case "uniform":
		return Uniform(seed), nil
	case "normal":
		return Normal(seed), nil
	default:
		return nil, errors.Errorf("unknown baseline %q, known baselines: %v", name, Names)
	}
}
