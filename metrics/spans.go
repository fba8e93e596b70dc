package metrics

import (
	"strings"
	"sync"

	"github.com/melalex/unlp-2025-manipulation-detector/spanerr"
)

// SpanScorer computes span level metrics over IO tag sequences ("O", "I-<TYPE>").
// Implementations must not keep references to the given slices.
type SpanScorer interface {
	Score(references, predictions [][]string) (Scores, error)
}

// DefaultSpanScorer returns the process-wide ExactMatchScorer, created on first use.
func DefaultSpanScorer() SpanScorer {
	return defaultSpanScorer()
}

var defaultSpanScorer = sync.OnceValue(func() SpanScorer {
	return &ExactMatchScorer{}
})

// Entity is a maximal run of tokens with the same "I-" tag type.
// Start and End are token positions, End exclusive.
type Entity struct {
	Sequence int
	Type     string
	Start    int
	End      int
}

// ExactMatchScorer counts a predicted entity as correct only if a reference entity has exactly
// the same type and boundaries. Accuracy is the token-wise tag agreement.
type ExactMatchScorer struct{}

// Score implements SpanScorer.
func (ExactMatchScorer) Score(references, predictions [][]string) (Scores, error) {
	if len(references) != len(predictions) {
		return Scores{}, &spanerr.AlignmentError{What: "reference/predicted tag batch", Document: -1, Want: len(references), Got: len(predictions)}
	}
	var correctTags, totalTags int
	for i := range references {
		if len(references[i]) != len(predictions[i]) {
			return Scores{}, &spanerr.AlignmentError{What: "reference/predicted tags", Document: i, Want: len(references[i]), Got: len(predictions[i])}
		}
		for j := range references[i] {
			if references[i][j] == predictions[i][j] {
				correctTags++
			}
			totalTags++
		}
	}

	refEntities := ExtractEntities(references)
	predEntities := ExtractEntities(predictions)
	refSet := make(map[Entity]struct{}, len(refEntities))
	for _, e := range refEntities {
		refSet[e] = struct{}{}
	}
	correct := 0
	for _, e := range predEntities {
		if _, ok := refSet[e]; ok {
			correct++
		}
	}

	s := Scores{
		Precision: ratio(correct, len(predEntities)),
		Recall:    ratio(correct, len(refEntities)),
		Accuracy:  ratio(correctTags, totalTags),
	}
	s.F1 = f1(s.Precision, s.Recall)
	return s, nil
}

// ExtractEntities returns the entities of IO tagged sequences. Entities never cross sequences.
// Tags with a "B-" prefix also start a new entity, so IOB2 sequences are handled as well.
func ExtractEntities(seqs [][]string) []Entity {
	var entities []Entity
	for i, seq := range seqs {
		current := Entity{Sequence: i, Start: -1}
		flush := func(end int) {
			if current.Start >= 0 {
				current.End = end
				entities = append(entities, current)
			}
			current = Entity{Sequence: i, Start: -1}
		}
		for j, tag := range seq {
			prefix, typ, ok := strings.Cut(tag, "-")
			if !ok || (prefix != "I" && prefix != "B") {
				flush(j)
				continue
			}
			if current.Start >= 0 && (prefix == "B" || typ != current.Type) {
				flush(j)
			}
			if current.Start < 0 {
				current.Start = j
				current.Type = typ
			}
		}
		flush(len(seq))
	}
	return entities
}
