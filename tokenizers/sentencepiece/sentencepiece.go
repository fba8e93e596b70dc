// Package sentencepiece implements a tokenizers.Tokenizer based on SentencePiece tokenizer.
package sentencepiece

import (
	"strings"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/melalex/unlp-2025-manipulation-detector/tokenizers/api"
	"github.com/pkg/errors"
)

// metaspace is the U+2581 (lower one eighth block) character SentencePiece uses to mark spaces.
const metaspace = "▁"

// New creates a SentencePiece tokenizer based on a "tokenizer.model" file, which must be a
// SentencePiece Model proto.
//
// If config is not nil, its MaxLength is used for truncation, and its BosToken/EosToken (if set)
// make EncodeWithSpans wrap every sequence with the beginning and end of sentence tokens.
func New(config *api.Config, modelPath string) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", modelPath)
	}
	t := &Tokenizer{
		Processor: proc,
		Info:      proc.ModelInfo(),
	}
	if config != nil {
		t.MaxLength = config.MaxLength
		t.BosPiece = config.BosToken
		t.EosPiece = config.EosToken
	}
	return t, nil
}

// Tokenizer implements tokenizers.Tokenizer interface based on SentencePiece tokenizer by Google.
type Tokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo

	// MaxLength truncates EncodeWithSpans results (special tokens included), 0 disables it.
	MaxLength int

	// BosPiece and EosPiece, if not empty, are the pieces reported for the beginning and end of
	// sentence tokens added around every sequence.
	BosPiece, EosPiece string
}

// Compile time assert that sentencepiece.Tokenizer implements tokenizers.Tokenizer interface.
var _ api.Tokenizer = &Tokenizer{}

// Compile time assert that sentencepiece.Tokenizer implements tokenizers.TokenizerWithSpans interface.
var _ api.TokenizerWithSpans = &Tokenizer{}

// Encode returns the text encoded into a sequence of ids.
// It implements api.Tokenizer.
func (p *Tokenizer) Encode(text string) []int {
	tokens := p.Processor.Encode(text)
	return sliceMap(tokens, func(t esentencepiece.Token) int { return t.ID })
}

// EncodeWithSpans returns the text encoded into a sequence of ids along with their byte spans,
// word ids and pieces. It implements api.TokenizerWithSpans.
func (p *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	tokens := p.Processor.Encode(text)
	res := encodingFromPieces(text,
		sliceMap(tokens, func(t esentencepiece.Token) int { return t.ID }),
		sliceMap(tokens, func(t esentencepiece.Token) string { return t.Text }))

	var before, after []special
	if p.BosPiece != "" {
		before = append(before, special{p.Info.BeginningOfSentenceID, p.BosPiece})
	}
	if p.EosPiece != "" {
		after = append(after, special{p.Info.EndOfSentenceID, p.EosPiece})
	}
	return wrap(res, before, after, p.MaxLength)
}

// encodingFromPieces matches the pieces back to the original text to recover their byte spans,
// and groups them into words: a piece starting with the metaspace character starts a new word.
func encodingFromPieces(text string, ids []int, pieces []string) api.EncodingResult {
	res := api.EncodingResult{
		IDs:     ids,
		Spans:   make([]api.TokenSpan, len(pieces)),
		WordIDs: make([]int, len(pieces)),
		Pieces:  pieces,
	}

	// Track position in original text by matching token pieces
	pos := 0
	wordID := -1
	prevWasBareMetaspace := false
	for i, piece := range pieces {
		matchPiece, hasLeadingSpace := strings.CutPrefix(piece, metaspace)
		if (hasLeadingSpace || wordID < 0) && !prevWasBareMetaspace {
			wordID++
		}
		res.WordIDs[i] = wordID
		prevWasBareMetaspace = hasLeadingSpace && matchPiece == ""

		// Skip any whitespace in the original text before this token
		if hasLeadingSpace {
			for pos < len(text) && (text[pos] == ' ' || text[pos] == '\t' || text[pos] == '\n' || text[pos] == '\r') {
				pos++
			}
		}

		start := pos
		if matchPiece == "" {
			// Token represents just the space: it gets an empty span where the next word starts.
			res.Spans[i] = api.TokenSpan{Start: pos, End: pos}
			continue
		}
		if foundAt := findSubstring(text, matchPiece, pos); foundAt >= 0 {
			start = foundAt
			pos = foundAt + len(matchPiece)
		} else {
			// Fallback (normalized or unknown piece): advance by piece length
			pos += len(matchPiece)
			if pos > len(text) {
				pos = len(text)
			}
		}
		res.Spans[i] = api.TokenSpan{Start: start, End: pos}
	}
	return res
}

type special struct {
	id    int
	piece string
}

// wrap truncates res so that, with the special tokens, it has at most maxLength tokens, and adds
// the special tokens around it.
func wrap(res api.EncodingResult, before, after []special, maxLength int) api.EncodingResult {
	if maxLength > 0 {
		limit := max(maxLength-len(before)-len(after), 0)
		if res.Len() > limit {
			res.IDs, res.Spans = res.IDs[:limit], res.Spans[:limit]
			res.WordIDs, res.Pieces = res.WordIDs[:limit], res.Pieces[:limit]
		}
	}
	if len(before) == 0 && len(after) == 0 {
		return res
	}
	var out api.EncodingResult
	add := func(specials []special) {
		for _, s := range specials {
			out.IDs = append(out.IDs, s.id)
			out.Spans = append(out.Spans, api.TokenSpan{})
			out.WordIDs = append(out.WordIDs, api.NoWordID)
			out.Pieces = append(out.Pieces, s.piece)
		}
	}
	add(before)
	out.IDs = append(out.IDs, res.IDs...)
	out.Spans = append(out.Spans, res.Spans...)
	out.WordIDs = append(out.WordIDs, res.WordIDs...)
	out.Pieces = append(out.Pieces, res.Pieces...)
	add(after)
	return out
}

// findSubstring finds the first occurrence of substr in s starting from position start.
// Returns the byte position of the match, or -1 if not found.
func findSubstring(s, substr string, start int) int {
	if start >= len(s) {
		return -1
	}
	idx := strings.Index(s[start:], substr)
	if idx < 0 {
		return -1
	}
	return start + idx
}

// Decode returns the text from a sequence of ids.
// It implements api.Tokenizer.
func (p *Tokenizer) Decode(ids []int) string {
	return p.Processor.Decode(ids)
}

// SpecialTokenID returns the token for the given symbol, or an error if not known.
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return p.Info.UnknownID, nil
	case api.TokPad:
		return p.Info.PadID, nil
	case api.TokBeginningOfSentence:
		return p.Info.BeginningOfSentenceID, nil
	case api.TokEndOfSentence:
		return p.Info.EndOfSentenceID, nil
	default:
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}
