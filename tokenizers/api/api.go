// Package api defines the Tokenizer API.
// It's just a hack to break the cyclic dependency, and allow the users to import `tokenizers` and get the
// default implementations.
package api

import (
	"unicode/utf8"

	"github.com/melalex/unlp-2025-manipulation-detector/spanerr"
)

// NoWordID is the word id of special tokens ([CLS], <s>, ...), which don't belong to any word of the text.
const NoWordID = -1

// TokenSpan represents the byte span of a token in the original text.
// Start and End are byte offsets (not rune offsets), suitable for slicing
// Go strings directly: originalText[span.Start:span.End].
// Special tokens have the empty span {0, 0}.
type TokenSpan struct {
	Start int // start byte position (inclusive)
	End   int // end byte position (exclusive)
}

// EncodingResult contains tokens with their spans in the original text.
//
// All slices are parallel: IDs[i], Spans[i], WordIDs[i] and Pieces[i] describe the same token.
type EncodingResult struct {
	IDs     []int       // token IDs
	Spans   []TokenSpan // byte spans for each token (use originalText[span.Start:span.End] to extract)
	WordIDs []int       // index of the pre-tokenized word each token belongs to, or NoWordID
	Pieces  []string    // vocabulary strings of the tokens, e.g. "##ing" or "▁The"
}

// Len returns the number of tokens.
func (r EncodingResult) Len() int {
	return len(r.IDs)
}

// Tokens zips the parallel slices into Token values.
// It returns a *spanerr.AlignmentError if the slices don't have the same length.
func (r EncodingResult) Tokens() ([]Token, error) {
	n := len(r.IDs)
	checks := []struct {
		what string
		got  int
	}{
		{"token ids/spans", len(r.Spans)},
		{"token ids/word ids", len(r.WordIDs)},
		{"token ids/pieces", len(r.Pieces)},
	}
	for _, c := range checks {
		if c.got != n {
			return nil, &spanerr.AlignmentError{What: c.what, Document: -1, Want: n, Got: c.got}
		}
	}
	tokens := make([]Token, n)
	for i := range tokens {
		tokens[i] = Token{
			ID:     r.IDs[i],
			Piece:  r.Pieces[i],
			Span:   r.Spans[i],
			WordID: r.WordIDs[i],
		}
	}
	return tokens, nil
}

// Token is a single unit emitted by a tokenizer, positioned in the original text.
type Token struct {
	ID     int
	Piece  string
	Span   TokenSpan
	WordID int // NoWordID for special tokens.
}

// IsSpecial returns whether the token is a special (non-text) token.
func (t Token) IsSpecial() bool {
	return t.WordID == NoWordID
}

// Tokenizer interface allows one convert test to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic (like padding) but that
// may map to different ids (int) for different tokenizers.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// TokenizerWithSpans extends Tokenizer with span tracking capability.
// This is useful for token classification tasks (NER, chunking) where you need
// to map token predictions back to byte positions in the original text.
type TokenizerWithSpans interface {
	Tokenizer
	// EncodeWithSpans returns tokens along with their byte spans in the original text.
	EncodeWithSpans(text string) EncodingResult
}

// Config holds the tokenizer settings that don't come from the vocabulary files themselves.
// A nil *Config is valid and means "use the defaults".
type Config struct {
	BosToken  string
	EosToken  string
	UnkToken  string
	PadToken  string
	ClsToken  string
	SepToken  string
	MaskToken string

	// MaxLength truncates encodings to at most this many tokens, special tokens included.
	// 0 means no truncation.
	MaxLength int
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSpecialTokensCount
)

var specialTokenNames = [...]string{
	"beginning_of_sentence", "end_of_sentence", "unknown", "pad", "mask", "classification",
}

func (s SpecialToken) String() string {
	if s >= 0 && int(s) < len(specialTokenNames) {
		return specialTokenNames[s]
	}
	return "special_token_invalid"
}

// RuneSpanToByteSpan converts a [start, end) span given in characters (Unicode code points),
// as produced by annotation tools and Python datasets, to byte offsets in text.
//
// It fails with a *spanerr.InvalidSpanError if start < 0, start >= end or end is past the
// number of characters in text. index is only used to identify the span in the error.
func RuneSpanToByteSpan(text string, index, start, end int) (TokenSpan, error) {
	numRunes := utf8.RuneCountInString(text)
	if start < 0 || start >= end || end > numRunes {
		return TokenSpan{}, &spanerr.InvalidSpanError{Index: index, Start: start, End: end, Length: numRunes}
	}
	span := TokenSpan{Start: -1, End: len(text)}
	runeIdx := 0
	for bytePos := range text {
		if runeIdx == start {
			span.Start = bytePos
		}
		if runeIdx == end {
			span.End = bytePos
			break
		}
		runeIdx++
	}
	return span, nil
}
