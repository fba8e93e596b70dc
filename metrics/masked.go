package metrics

import (
	"math"

	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/melalex/unlp-2025-manipulation-detector/spanerr"
	"github.com/pkg/errors"
)

// MaskedAccuracy returns the fraction of unmasked positions where predicted matches trueLabels.
// It returns 0 if every position is masked.
func MaskedAccuracy(trueLabels, predicted [][]labels.Label) (float64, error) {
	counts, err := countUnmasked(trueLabels, predicted)
	if err != nil {
		return 0, err
	}
	return counts.Scores().Accuracy, nil
}

// MacroF1 returns the unweighted mean of the F1 score of each class, over unmasked positions.
func MacroF1(trueLabels, predicted [][]labels.Label) (float64, error) {
	counts, err := countUnmasked(trueLabels, predicted)
	if err != nil {
		return 0, err
	}
	if counts.Total() == 0 {
		return 0, nil
	}
	return (counts.Scores().F1 + counts.Swap().Scores().F1) / labels.NumClasses, nil
}

// Perplexity returns exp of the mean cross-entropy of logits with respect to trueLabels, over
// unmasked positions. It returns 1 if every position is masked.
func Perplexity(trueLabels [][]labels.Label, logits [][][]float32) (float64, error) {
	if len(trueLabels) != len(logits) {
		return 0, &spanerr.AlignmentError{What: "labels/logits batch", Document: -1, Want: len(trueLabels), Got: len(logits)}
	}
	var sum float64
	var n int
	for i := range trueLabels {
		if len(trueLabels[i]) != len(logits[i]) {
			return 0, &spanerr.AlignmentError{What: "labels/logits", Document: i, Want: len(trueLabels[i]), Got: len(logits[i])}
		}
		for j, ref := range trueLabels[i] {
			if ref == labels.Ignore {
				continue
			}
			row := logits[i][j]
			if int(ref) < 0 || int(ref) >= len(row) {
				return 0, errors.Errorf("document #%d: label %d at position %d has no logit (only %d classes)", i, int(ref), j, len(row))
			}
			sum += logSumExp(row) - float64(row[ref])
			n++
		}
	}
	if n == 0 {
		return 1, nil
	}
	return math.Exp(sum / float64(n)), nil
}

func logSumExp(row []float32) float64 {
	maxValue := math.Inf(-1)
	for _, v := range row {
		maxValue = max(maxValue, float64(v))
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v) - maxValue)
	}
	return maxValue + math.Log(sum)
}

func countUnmasked(trueLabels, predicted [][]labels.Label) (Counts, error) {
	refs, preds, err := Unmask(trueLabels, predicted)
	if err != nil {
		return Counts{}, err
	}
	var counts Counts
	for i := range refs {
		for j := range refs[i] {
			counts.Add(refs[i][j], preds[i][j])
		}
	}
	return counts, nil
}
