package metrics

import (
	"errors"
	"testing"

	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/melalex/unlp-2025-manipulation-detector/spanerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	O = labels.Outside
	M = labels.Manipulation
	I = labels.Ignore
)

const delta = 1e-9

func TestEvaluate_PerfectPrediction(t *testing.T) {
	trueLabels := [][]labels.Label{{I, O, M, M, O, I}, {I, M, O, I}}
	// Predictions at ignored positions don't count.
	predicted := [][]labels.Label{{M, O, M, M, O, O}, {O, M, O, M}}

	report, err := New(nil).Evaluate(trueLabels, predicted)
	require.NoError(t, err)
	assert.Nil(t, report.Warning)
	assert.Equal(t, 6, report.Support)
	for key, value := range report.Map() {
		assert.InDelta(t, 1.0, value, delta, key)
	}
}

func TestEvaluate_NoPositives(t *testing.T) {
	trueLabels := [][]labels.Label{{I, O, O, I}}
	predicted := [][]labels.Label{{O, O, O, O}}

	report, err := New(nil).Evaluate(trueLabels, predicted)
	require.NoError(t, err)
	assert.Nil(t, report.Warning)
	assert.Zero(t, report.Token.Precision)
	assert.Zero(t, report.Token.Recall)
	assert.Zero(t, report.Token.F1)
	assert.InDelta(t, 1.0, report.Token.Accuracy, delta)
	assert.Zero(t, report.Span.Precision)
	assert.Zero(t, report.Span.Recall)
	assert.Zero(t, report.Span.F1)
	assert.InDelta(t, 1.0, report.Span.Accuracy, delta)
}

func TestEvaluate_EmptyBatch(t *testing.T) {
	for name, trueLabels := range map[string][][]labels.Label{
		"no documents": nil,
		"all ignored":  {{I, I}, {}},
	} {
		t.Run(name, func(t *testing.T) {
			predicted := make([][]labels.Label, len(trueLabels))
			for i := range trueLabels {
				predicted[i] = make([]labels.Label, len(trueLabels[i]))
			}
			report, err := New(nil).Evaluate(trueLabels, predicted)
			require.NoError(t, err)
			require.Error(t, report.Warning)
			assert.True(t, errors.Is(report.Warning, spanerr.ErrEmptyBatch))
			assert.Zero(t, report.Support)
			for key, value := range report.Map() {
				assert.Zero(t, value, key)
			}
		})
	}
}

func TestEvaluate_SpanOffByOne(t *testing.T) {
	trueLabels := [][]labels.Label{{O, M, M, O, O, M, M, O}}
	predicted := [][]labels.Label{{O, M, M, M, O, M, M, O}}

	report, err := New(nil).Evaluate(trueLabels, predicted)
	require.NoError(t, err)

	// The first span is both a false positive and a false negative, the second one still matches.
	assert.InDelta(t, 0.5, report.Span.Precision, delta)
	assert.InDelta(t, 0.5, report.Span.Recall, delta)
	assert.InDelta(t, 0.5, report.Span.F1, delta)
	assert.InDelta(t, 7.0/8.0, report.Span.Accuracy, delta)

	// Per token it is a single false positive.
	assert.InDelta(t, 0.8, report.Token.Precision, delta)
	assert.InDelta(t, 1.0, report.Token.Recall, delta)
	assert.InDelta(t, 2*0.8/1.8, report.Token.F1, delta)
	assert.InDelta(t, 7.0/8.0, report.Token.Accuracy, delta)
}

func TestEvaluate_IgnoredPositionsDoNotSplitSpans(t *testing.T) {
	// With ExcludeTail a multi-piece word is M followed by ignored pieces: once masked, the
	// span is a single run for both sequences.
	trueLabels := [][]labels.Label{{I, M, I, I, M, O, I}}
	predicted := [][]labels.Label{{O, M, O, O, M, O, O}}
	report, err := New(nil).Evaluate(trueLabels, predicted)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.Span.F1, delta)
	assert.Equal(t, 3, report.Support)
}

func TestEvaluate_Misaligned(t *testing.T) {
	evaluator := New(nil)

	_, err := evaluator.Evaluate([][]labels.Label{{O}, {O, M}}, [][]labels.Label{{O}, {O}})
	var alignErr *spanerr.AlignmentError
	require.True(t, errors.As(err, &alignErr))
	assert.Equal(t, 1, alignErr.Document)
	assert.Equal(t, 2, alignErr.Want)
	assert.Equal(t, 1, alignErr.Got)

	_, err = evaluator.Evaluate([][]labels.Label{{O}}, nil)
	assert.True(t, errors.Is(err, spanerr.ErrAlignment))
}

func TestEvaluate_InvalidPrediction(t *testing.T) {
	_, err := New(nil).Evaluate([][]labels.Label{{O, M}}, [][]labels.Label{{O, labels.Label(7)}})
	assert.Error(t, err)
	_, err = New(nil).Evaluate([][]labels.Label{{O, M}}, [][]labels.Label{{O, I}})
	assert.Error(t, err)
}

type fixedScorer struct {
	calls      int
	references [][]string
}

func (f *fixedScorer) Score(references, predictions [][]string) (Scores, error) {
	f.calls++
	f.references = references
	return Scores{Precision: 0.25, Recall: 0.5, F1: 0.75, Accuracy: 1}, nil
}

func TestEvaluate_InjectedScorer(t *testing.T) {
	scorer := &fixedScorer{}
	report, err := New(scorer).Evaluate([][]labels.Label{{I, O, M, I}}, [][]labels.Label{{O, O, O, O}})
	require.NoError(t, err)
	assert.Equal(t, 1, scorer.calls)
	assert.Equal(t, [][]string{{labels.OutsideName, labels.ManipulationName}}, scorer.references)
	assert.Equal(t, Scores{Precision: 0.25, Recall: 0.5, F1: 0.75, Accuracy: 1}, report.Span)

	// The scorer is not called when there is nothing to score.
	_, err = New(scorer).Evaluate([][]labels.Label{{I}}, [][]labels.Label{{O}})
	require.NoError(t, err)
	assert.Equal(t, 1, scorer.calls)
}

func TestDefaultSpanScorer(t *testing.T) {
	assert.Same(t, DefaultSpanScorer(), DefaultSpanScorer())
}

func TestEvaluateLogits(t *testing.T) {
	trueLabels := [][]labels.Label{{I, M, O, I}}
	logits := [][][]float32{{{0, 1}, {-1, 3}, {2, 0.5}, {0, 0}}}
	report, err := New(nil).EvaluateLogits(trueLabels, logits)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.Token.F1, delta)

	_, err = New(nil).EvaluateLogits(trueLabels, nil)
	assert.True(t, errors.Is(err, spanerr.ErrAlignment))
}

func TestReportMap(t *testing.T) {
	report := Report{
		Token: Scores{Precision: 1, Recall: 2, F1: 3, Accuracy: 4},
		Span:  Scores{Precision: 5, Recall: 6, F1: 7, Accuracy: 8},
	}
	assert.Equal(t, map[string]float64{
		"token_precision": 1, "token_recall": 2, "token_f1": 3, "token_accuracy": 4,
		"span_precision": 5, "span_recall": 6, "span_f1": 7, "span_accuracy": 8,
	}, report.Map())
}

func TestExtractEntities(t *testing.T) {
	seqs := [][]string{
		{"I-A", "I-A", "O", "I-A", "I-B", "B-B", "I-B"},
		{"I-A"},
		{"O", "I-A"},
	}
	assert.Equal(t, []Entity{
		{Sequence: 0, Type: "A", Start: 0, End: 2},
		{Sequence: 0, Type: "A", Start: 3, End: 4},
		{Sequence: 0, Type: "B", Start: 4, End: 5},
		{Sequence: 0, Type: "B", Start: 5, End: 7},
		{Sequence: 1, Type: "A", Start: 0, End: 1},
		{Sequence: 2, Type: "A", Start: 1, End: 2},
	}, ExtractEntities(seqs))
}

func TestMaskedMetrics(t *testing.T) {
	trueLabels := [][]labels.Label{{I, O, M, M, O, O, M, M, O, I}}
	predicted := [][]labels.Label{{M, O, M, M, M, O, M, M, O, M}}

	accuracy, err := MaskedAccuracy(trueLabels, predicted)
	require.NoError(t, err)
	assert.InDelta(t, 7.0/8.0, accuracy, delta)

	macro, err := MacroF1(trueLabels, predicted)
	require.NoError(t, err)
	positive := 2 * 0.8 / 1.8
	negative := 2 * 0.75 / 1.75
	assert.InDelta(t, (positive+negative)/2, macro, delta)

	macro, err = MacroF1([][]labels.Label{{I}}, [][]labels.Label{{O}})
	require.NoError(t, err)
	assert.Zero(t, macro)
}

func TestPerplexity(t *testing.T) {
	trueLabels := [][]labels.Label{{I, O, M}}
	uniform := [][][]float32{{{5, -5}, {0, 0}, {1, 1}}}
	perplexity, err := Perplexity(trueLabels, uniform)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, perplexity, 1e-6)

	confident := [][][]float32{{{0, 0}, {50, -50}, {-50, 50}}}
	perplexity, err = Perplexity(trueLabels, confident)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, perplexity, 1e-6)

	perplexity, err = Perplexity([][]labels.Label{{I}}, [][][]float32{{{0, 0}}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, perplexity)

	_, err = Perplexity(trueLabels, [][][]float32{{{0, 0}}})
	assert.True(t, errors.Is(err, spanerr.ErrAlignment))
}
