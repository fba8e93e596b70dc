package confusion

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// ContinuationDetector tells whether a token piece continues the word of the piece before it.
type ContinuationDetector interface {
	IsContinuation(piece string) bool
}

// Scheme is a ContinuationDetector that also knows how to display the pieces of its tokenizer.
type Scheme interface {
	ContinuationDetector

	// Display returns the text to render for piece: continuation markers are stripped and
	// pieces starting a word get a leading space.
	Display(piece string) string

	// IsNonText returns true for special pieces that render as the empty string.
	IsNonText(piece string) bool
}

// Known scheme names, as used in configuration.
const (
	SchemeWordPiece = "wordpiece"
	SchemeMetaspace = "metaspace"
	SchemeByteLevel = "bytelevel"
)

// DetectorForScheme returns the Scheme for the given name.
func DetectorForScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case SchemeWordPiece, "bert":
		return WordPiece{Prefix: "##"}, nil
	case SchemeMetaspace, "roberta", "sentencepiece":
		return Metaspace{NonText: []string{"<s>", "</s>"}}, nil
	case SchemeByteLevel:
		return ByteLevel{NonText: []string{"<s>", "</s>"}}, nil
	default:
		return nil, errors.Errorf("unknown continuation scheme %q (want %q, %q or %q)",
			name, SchemeWordPiece, SchemeMetaspace, SchemeByteLevel)
	}
}

// WordPiece marks continuation pieces with a prefix, usually "##".
type WordPiece struct {
	Prefix  string
	NonText []string
}

// IsContinuation reports whether piece starts with the prefix.
// It implements ContinuationDetector.
func (w WordPiece) IsContinuation(piece string) bool {
	return w.Prefix != "" && strings.HasPrefix(piece, w.Prefix)
}

// Display strips the prefix of continuations and puts a space before word starts.
func (w WordPiece) Display(piece string) string {
	if w.IsContinuation(piece) {
		return piece[len(w.Prefix):]
	}
	return " " + piece
}

// IsNonText reports whether piece is one of the NonText pieces, which are not rendered.
func (w WordPiece) IsNonText(piece string) bool {
	return slices.Contains(w.NonText, piece)
}

// MetaspaceMarker is the SentencePiece replacement of the space starting a word.
const MetaspaceMarker = "▁"

// Metaspace marks the pieces that start a new word with "▁": every other piece is a continuation.
type Metaspace struct {
	NonText []string
}

// IsContinuation reports whether piece lacks the "▁" marker.
// It implements ContinuationDetector.
func (m Metaspace) IsContinuation(piece string) bool {
	return !strings.HasPrefix(piece, MetaspaceMarker)
}

// Display replaces the "▁" marker with a space.
func (m Metaspace) Display(piece string) string {
	if rest, found := strings.CutPrefix(piece, MetaspaceMarker); found {
		return " " + rest
	}
	return piece
}

// IsNonText reports whether piece is one of the NonText pieces, which are not rendered.
func (m Metaspace) IsNonText(piece string) bool {
	return slices.Contains(m.NonText, piece)
}

// ByteLevelMarker is the byte-level BPE rendering of the space preceding a word.
const ByteLevelMarker = "Ġ"

// ByteLevel marks the pieces preceded by a space with "Ġ": every other piece is a continuation.
// The first word of a text has no marker and is therefore a continuation of nothing, which
// carries the initial (outside) decision.
type ByteLevel struct {
	NonText []string
}

// IsContinuation reports whether piece lacks the "Ġ" marker.
// It implements ContinuationDetector.
func (b ByteLevel) IsContinuation(piece string) bool {
	return !strings.HasPrefix(piece, ByteLevelMarker)
}

// Display replaces the "Ġ" marker with a space.
func (b ByteLevel) Display(piece string) string {
	if rest, found := strings.CutPrefix(piece, ByteLevelMarker); found {
		return " " + rest
	}
	return piece
}

// IsNonText reports whether piece is one of the NonText pieces, which are not rendered.
func (b ByteLevel) IsNonText(piece string) bool {
	return slices.Contains(b.NonText, piece)
}
