// Package encoder converts annotated character spans of documents into per-token label
// sequences aligned with a tokenizer's output.
//
// A token is labeled labels.Manipulation only if it is fully contained in an annotated span:
// tokens straddling a span boundary stay labels.Outside. Special tokens are always
// labels.Ignore, and with ExcludeTail so is every sub-word piece but the first of each word.
package encoder

import (
	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/melalex/unlp-2025-manipulation-detector/spanerr"
	"github.com/melalex/unlp-2025-manipulation-detector/tokenizers/api"
	"github.com/pkg/errors"
)

// Span is a [Start, End) byte interval of a document's content marking a manipulative excerpt.
type Span struct {
	Start int
	End   int
}

// Document is a text with its annotated manipulative spans.
// Spans need not be sorted, and may overlap: overlapping spans label the union of their tokens.
type Document struct {
	ID       string
	Content  string
	Spans    []Span
	Language string
}

// Encoded is a tokenized document with its training labels, one per token.
type Encoded struct {
	ID       string
	Language string
	Content  string
	Tokens   []api.Token
	Labels   []labels.Label
}

// InputIDs returns the token ids of the encoded document.
func (e *Encoded) InputIDs() []int {
	ids := make([]int, len(e.Tokens))
	for i, tok := range e.Tokens {
		ids[i] = tok.ID
	}
	return ids
}

// Pieces returns the vocabulary strings of the tokens of the encoded document.
func (e *Encoded) Pieces() []string {
	pieces := make([]string, len(e.Tokens))
	for i, tok := range e.Tokens {
		pieces[i] = tok.Piece
	}
	return pieces
}

// Encode returns the labels of tokens for the given spans of content.
//
// A token gets labels.Manipulation if some span fully contains it (tokStart >= start and
// tokEnd <= end), labels.Outside otherwise. Then special tokens (api.NoWordID) are set to
// labels.Ignore and, if excludeTail is set, so is every token with the same word id as the
// token right before it.
//
// Spans outside of [0, len(content)] or with start >= end fail with a *spanerr.InvalidSpanError.
// Encode is deterministic and doesn't modify its inputs.
func Encode(content string, spans []Span, tokens []api.Token, excludeTail bool) ([]labels.Label, error) {
	if err := ValidateSpans(content, spans); err != nil {
		return nil, err
	}

	result := make([]labels.Label, len(tokens))
	for _, span := range spans {
		for i, tok := range tokens {
			if tok.Span.Start >= span.Start && tok.Span.End <= span.End {
				result[i] = labels.Manipulation
			}
		}
	}

	previousWordID := api.NoWordID
	for i, tok := range tokens {
		if tok.WordID == api.NoWordID || (excludeTail && tok.WordID == previousWordID) {
			result[i] = labels.Ignore
		}
		previousWordID = tok.WordID
	}
	return result, nil
}

// ValidateSpans checks that every span lies within content and is not empty.
func ValidateSpans(content string, spans []Span) error {
	for i, span := range spans {
		if span.Start < 0 || span.Start >= span.End || span.End > len(content) {
			return &spanerr.InvalidSpanError{Index: i, Start: span.Start, End: span.End, Length: len(content)}
		}
	}
	return nil
}

// EncodeDocument tokenizes the document and encodes its spans into labels.
func EncodeDocument(doc Document, tokenizer api.TokenizerWithSpans, excludeTail bool) (*Encoded, error) {
	tokens, err := tokenizer.EncodeWithSpans(doc.Content).Tokens()
	if err != nil {
		return nil, errors.WithMessagef(err, "tokenizing document %q", doc.ID)
	}
	encoded, err := Encode(doc.Content, doc.Spans, tokens, excludeTail)
	if err != nil {
		return nil, errors.WithMessagef(err, "encoding labels of document %q", doc.ID)
	}
	return &Encoded{
		ID:       doc.ID,
		Language: doc.Language,
		Content:  doc.Content,
		Tokens:   tokens,
		Labels:   encoded,
	}, nil
}
