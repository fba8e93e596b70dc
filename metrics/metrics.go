// Package metrics scores predicted token labels against reference labels, both per token and
// per contiguous span.
//
// Positions whose reference label is labels.Ignore are dropped from both scorings. Degenerate
// batches (nothing left to score) produce zero metrics and a *spanerr.EmptyBatchWarning in the
// report, never an error; misaligned sequences always fail with a *spanerr.AlignmentError.
package metrics

import (
	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/melalex/unlp-2025-manipulation-detector/spanerr"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Scores are the overall precision, recall, F1 and accuracy of one scoring method.
type Scores struct {
	Precision float64
	Recall    float64
	F1        float64
	Accuracy  float64
}

// Report is the result of an evaluation.
type Report struct {
	Token Scores
	Span  Scores

	// Support is the number of scored positions, after masking.
	Support int

	// Warning is a *spanerr.EmptyBatchWarning if there was nothing to score, nil otherwise.
	Warning error
}

// Map returns the report as a flat mapping, keyed as in the evaluation logs.
func (r Report) Map() map[string]float64 {
	return map[string]float64{
		"token_precision": r.Token.Precision,
		"token_recall":    r.Token.Recall,
		"token_f1":        r.Token.F1,
		"token_accuracy":  r.Token.Accuracy,
		"span_precision":  r.Span.Precision,
		"span_recall":     r.Span.Recall,
		"span_f1":         r.Span.F1,
		"span_accuracy":   r.Span.Accuracy,
	}
}

// Counts is a binary confusion matrix for the positive class labels.Manipulation.
type Counts struct {
	TP, FP, FN, TN int
}

// Add counts one (reference, prediction) pair.
func (c *Counts) Add(reference, predicted labels.Label) {
	switch {
	case reference == labels.Manipulation && predicted == labels.Manipulation:
		c.TP++
	case reference == labels.Manipulation:
		c.FN++
	case predicted == labels.Manipulation:
		c.FP++
	default:
		c.TN++
	}
}

// Total returns the number of counted pairs.
func (c Counts) Total() int {
	return c.TP + c.FP + c.FN + c.TN
}

// Swap returns the confusion matrix with the negative class taken as positive.
func (c Counts) Swap() Counts {
	return Counts{TP: c.TN, FP: c.FN, FN: c.FP, TN: c.TP}
}

// Scores returns precision, recall, F1 and accuracy. Undefined ratios are 0.
func (c Counts) Scores() Scores {
	s := Scores{
		Precision: ratio(c.TP, c.TP+c.FP),
		Recall:    ratio(c.TP, c.TP+c.FN),
		Accuracy:  ratio(c.TP+c.TN, c.Total()),
	}
	s.F1 = f1(s.Precision, s.Recall)
	return s
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// Evaluator computes token and span metrics. Create one with New.
type Evaluator struct {
	scorer SpanScorer
}

// New returns an Evaluator using the given span scorer, or DefaultSpanScorer() if scorer is nil.
func New(scorer SpanScorer) *Evaluator {
	if scorer == nil {
		scorer = DefaultSpanScorer()
	}
	return &Evaluator{scorer: scorer}
}

// Evaluate scores a batch of predicted label sequences against the reference ones.
//
// trueLabels[i] and predicted[i] must have the same length, otherwise a *spanerr.AlignmentError
// is returned. Predicted labels must be labels.Outside or labels.Manipulation.
func (e *Evaluator) Evaluate(trueLabels, predicted [][]labels.Label) (Report, error) {
	refs, preds, err := Unmask(trueLabels, predicted)
	if err != nil {
		return Report{}, err
	}

	var counts Counts
	for i := range refs {
		for j := range refs[i] {
			counts.Add(refs[i][j], preds[i][j])
		}
	}
	report := Report{Token: counts.Scores(), Support: counts.Total()}
	if report.Support == 0 {
		report.Warning = &spanerr.EmptyBatchWarning{Documents: len(trueLabels)}
		klog.Warningf("metrics: %v", report.Warning)
		return report, nil
	}

	report.Span, err = e.scorer.Score(toTags(refs), toTags(preds))
	if err != nil {
		return Report{}, errors.WithMessage(err, "span scoring")
	}
	return report, nil
}

// EvaluateLogits takes, for each position, the highest scoring class of logits as the
// prediction, and evaluates it.
func (e *Evaluator) EvaluateLogits(trueLabels [][]labels.Label, logits [][][]float32) (Report, error) {
	if len(trueLabels) != len(logits) {
		return Report{}, &spanerr.AlignmentError{What: "labels/logits batch", Document: -1, Want: len(trueLabels), Got: len(logits)}
	}
	predicted := make([][]labels.Label, len(logits))
	for i, docLogits := range logits {
		predicted[i] = labels.ArgMax(docLogits)
	}
	return e.Evaluate(trueLabels, predicted)
}

// Unmask drops, pairwise, the positions whose reference label is labels.Ignore.
// The returned sequences only hold labels.Outside and labels.Manipulation.
func Unmask(trueLabels, predicted [][]labels.Label) (refs, preds [][]labels.Label, err error) {
	if len(trueLabels) != len(predicted) {
		return nil, nil, &spanerr.AlignmentError{What: "true/predicted batch", Document: -1, Want: len(trueLabels), Got: len(predicted)}
	}
	refs = make([][]labels.Label, len(trueLabels))
	preds = make([][]labels.Label, len(trueLabels))
	for i := range trueLabels {
		if len(trueLabels[i]) != len(predicted[i]) {
			return nil, nil, &spanerr.AlignmentError{What: "true/predicted labels", Document: i, Want: len(trueLabels[i]), Got: len(predicted[i])}
		}
		for j, ref := range trueLabels[i] {
			if ref == labels.Ignore {
				continue
			}
			if !ref.Scorable() {
				return nil, nil, errors.Errorf("document #%d: invalid reference label %d at position %d", i, int(ref), j)
			}
			pred := predicted[i][j]
			if !pred.Scorable() {
				return nil, nil, errors.Errorf("document #%d: invalid predicted label %d at position %d", i, int(pred), j)
			}
			refs[i] = append(refs[i], ref)
			preds[i] = append(preds[i], pred)
		}
	}
	return refs, preds, nil
}

func toTags(seqs [][]labels.Label) [][]string {
	tags := make([][]string, len(seqs))
	for i, seq := range seqs {
		tags[i] = make([]string, len(seq))
		for j, l := range seq {
			tags[i][j] = l.String()
		}
	}
	return tags
}
