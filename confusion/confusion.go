// Package confusion compares reference and predicted labels of a tokenized document word by
// word, and renders the document with each word highlighted by its confusion class.
package confusion

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/melalex/unlp-2025-manipulation-detector/spanerr"
	"github.com/pkg/errors"
)

// Class is the confusion class of one token.
type Class int

const (
	None Class = iota
	TruePositive
	FalseNegative
	FalsePositive
)

func (c Class) String() string {
	switch c {
	case None:
		return "NONE"
	case TruePositive:
		return "TRUE_POSITIVE"
	case FalseNegative:
		return "FALSE_NEGATIVE"
	case FalsePositive:
		return "FALSE_POSITIVE"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Color is the highlight color of the class, empty for None.
func (c Class) Color() string {
	switch c {
	case TruePositive:
		return "green"
	case FalseNegative:
		return "yellow"
	case FalsePositive:
		return "red"
	default:
		return ""
	}
}

// Classify returns the confusion class of a (reference, predicted) pair of labels.
// Pairs involving labels.Ignore are None.
func Classify(reference, predicted labels.Label) Class {
	switch {
	case reference == labels.Manipulation && predicted == labels.Manipulation:
		return TruePositive
	case reference == labels.Manipulation && predicted == labels.Outside:
		return FalseNegative
	case reference == labels.Outside && predicted == labels.Manipulation:
		return FalsePositive
	default:
		return None
	}
}

// Annotate returns the confusion class of each piece.
//
// Pieces for which detector.IsContinuation is true don't use their own labels: they take the
// labels used for the piece before them, so every piece of a word shares the word's class.
// The labels carried into the first piece are labels.Outside.
func Annotate(pieces []string, trueLabels, predicted []labels.Label, detector ContinuationDetector) ([]Class, error) {
	if len(trueLabels) != len(pieces) {
		return nil, &spanerr.AlignmentError{What: "pieces/true labels", Document: -1, Want: len(pieces), Got: len(trueLabels)}
	}
	if len(predicted) != len(pieces) {
		return nil, &spanerr.AlignmentError{What: "pieces/predicted labels", Document: -1, Want: len(pieces), Got: len(predicted)}
	}
	classes := make([]Class, len(pieces))
	prevTrue, prevPred := labels.Outside, labels.Outside
	for i, piece := range pieces {
		yTrue, yPred := trueLabels[i], predicted[i]
		if detector.IsContinuation(piece) {
			yTrue, yPred = prevTrue, prevPred
		}
		classes[i] = Classify(yTrue, yPred)
		prevTrue, prevPred = yTrue, yPred
	}
	return classes, nil
}

// RenderMarkdown renders the pieces as text, wrapping the ones with a class other than None in
// a <mark> element whose background color is the class color.
func RenderMarkdown(pieces []string, classes []Class, scheme Scheme) (string, error) {
	return render(pieces, classes, scheme, func(text string, class Class) string {
		return fmt.Sprintf("<mark style='background-color:%s'>%s</mark>", class.Color(), text)
	})
}

var terminalStyles = map[Class]lipgloss.Style{
	TruePositive:  lipgloss.NewStyle().Background(lipgloss.Color("2")).Foreground(lipgloss.Color("0")),
	FalseNegative: lipgloss.NewStyle().Background(lipgloss.Color("3")).Foreground(lipgloss.Color("0")),
	FalsePositive: lipgloss.NewStyle().Background(lipgloss.Color("1")).Foreground(lipgloss.Color("15")),
}

// RenderTerminal is like RenderMarkdown, but highlights with ANSI background colors.
func RenderTerminal(pieces []string, classes []Class, scheme Scheme) (string, error) {
	return render(pieces, classes, scheme, func(text string, class Class) string {
		return terminalStyles[class].Render(text)
	})
}

// Legend returns a one line terminal legend of the highlight colors.
func Legend() string {
	parts := make([]string, 0, len(terminalStyles))
	for _, class := range []Class{TruePositive, FalseNegative, FalsePositive} {
		parts = append(parts, terminalStyles[class].Render(" "+class.String()+" "))
	}
	return strings.Join(parts, " ")
}

func render(pieces []string, classes []Class, scheme Scheme, highlight func(text string, class Class) string) (string, error) {
	if len(classes) != len(pieces) {
		return "", &spanerr.AlignmentError{What: "pieces/confusion classes", Document: -1, Want: len(pieces), Got: len(classes)}
	}
	var sb strings.Builder
	for i, piece := range pieces {
		if scheme.IsNonText(piece) {
			continue
		}
		text := scheme.Display(piece)
		if classes[i] == None {
			sb.WriteString(text)
			continue
		}
		sb.WriteString(highlight(text, classes[i]))
	}
	return sb.String(), nil
}

// Entity is one entry of a token classification pipeline output. Only Index, the position of
// the token in the sequence, is used: every listed token is predicted labels.Manipulation.
type Entity struct {
	Entity string  `json:"entity"`
	Score  float64 `json:"score"`
	Index  int     `json:"index"`
	Word   string  `json:"word"`
}

// PredictionsFromEntities converts pipeline entities to a label sequence of length n.
func PredictionsFromEntities(entities []Entity, n int) ([]labels.Label, error) {
	predicted := make([]labels.Label, n)
	for _, e := range entities {
		if e.Index < 0 || e.Index >= n {
			return nil, errors.Errorf("entity %q index %d out of range for %d tokens", e.Word, e.Index, n)
		}
		predicted[e.Index] = labels.Manipulation
	}
	return predicted, nil
}
