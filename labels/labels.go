// Package labels defines the closed set of token labels used to train and score
// the manipulation span detector.
package labels

import (
	"strconv"

	"github.com/pkg/errors"
)

// Label is the class of a single token position.
type Label int

const (
	// Outside marks a token outside of any manipulative span ("O").
	Outside Label = 0
	// Manipulation marks a token inside a manipulative span ("I-MANIPULATION").
	Manipulation Label = 1
	// Ignore excludes a position from the loss and from evaluation.
	Ignore Label = -100
)

// NumClasses is the number of scorable classes (Ignore is not a class).
const NumClasses = 2

const (
	OutsideName      = "O"
	ManipulationName = "I-MANIPULATION"
)

// String returns the IO tag of the label.
func (l Label) String() string {
	switch l {
	case Outside:
		return OutsideName
	case Manipulation:
		return ManipulationName
	case Ignore:
		return "IGNORE"
	default:
		return "Label(" + strconv.Itoa(int(l)) + ")"
	}
}

// Valid returns whether l is one of the declared labels.
func (l Label) Valid() bool {
	return l == Outside || l == Manipulation || l == Ignore
}

// Scorable returns whether l takes part in loss and metrics.
func (l Label) Scorable() bool {
	return l == Outside || l == Manipulation
}

// ParseLabel converts an IO tag back to its Label.
func ParseLabel(name string) (Label, error) {
	switch name {
	case OutsideName:
		return Outside, nil
	case ManipulationName:
		return Manipulation, nil
	}
	return Ignore, errors.Errorf("unknown label %q", name)
}

// Label2ID returns the label name to id mapping. A new map is returned on every call.
func Label2ID() map[string]int {
	return map[string]int{
		OutsideName:      int(Outside),
		ManipulationName: int(Manipulation),
	}
}

// ID2Label returns the id to label name mapping. A new map is returned on every call.
func ID2Label() map[int]string {
	return map[int]string{
		int(Outside):      OutsideName,
		int(Manipulation): ManipulationName,
	}
}

// FromIDs converts raw integer ids (as stored in datasets) to labels.
// Any value other than 0, 1 or -100 is an error.
func FromIDs[T ~int | ~int32 | ~int64](ids []T) ([]Label, error) {
	out := make([]Label, len(ids))
	for i, id := range ids {
		l := Label(id)
		if !l.Valid() {
			return nil, errors.Errorf("invalid label id %d at position %d", int64(id), i)
		}
		out[i] = l
	}
	return out, nil
}

// IDs converts labels to int32 ids, the representation used in the encoded datasets.
func IDs(ls []Label) []int32 {
	out := make([]int32, len(ls))
	for i, l := range ls {
		out[i] = int32(l)
	}
	return out
}

// ArgMax returns, for each position, the class with the highest logit.
// Ties resolve to the lowest class index. Empty rows map to Outside.
func ArgMax(logits [][]float32) []Label {
	out := make([]Label, len(logits))
	for i, row := range logits {
		best := 0
		for c := 1; c < len(row); c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[i] = Label(best)
	}
	return out
}
