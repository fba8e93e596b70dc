package encoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/melalex/unlp-2025-manipulation-detector/spanerr"
	"github.com/melalex/unlp-2025-manipulation-detector/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	O = labels.Outside
	M = labels.Manipulation
	I = labels.Ignore
)

// chunkTokenizer splits on spaces and cuts words into pieces of at most chunk bytes (ASCII only),
// wrapping the sequence with [CLS] and [SEP].
type chunkTokenizer struct {
	chunk int
}

func (c chunkTokenizer) EncodeWithSpans(text string) api.EncodingResult {
	var res api.EncodingResult
	add := func(piece string, span api.TokenSpan, wordID int) {
		res.IDs = append(res.IDs, len(res.IDs))
		res.Spans = append(res.Spans, span)
		res.WordIDs = append(res.WordIDs, wordID)
		res.Pieces = append(res.Pieces, piece)
	}
	add("[CLS]", api.TokenSpan{}, api.NoWordID)
	pos, wordID := 0, 0
	for _, w := range strings.Fields(text) {
		start := strings.Index(text[pos:], w) + pos
		for off := 0; off < len(w); off += c.chunk {
			end := min(off+c.chunk, len(w))
			piece := w[off:end]
			if off > 0 {
				piece = "##" + piece
			}
			add(piece, api.TokenSpan{Start: start + off, End: start + end}, wordID)
		}
		pos = start + len(w)
		wordID++
	}
	add("[SEP]", api.TokenSpan{}, api.NoWordID)
	return res
}

func (c chunkTokenizer) Encode(text string) []int { return c.EncodeWithSpans(text).IDs }
func (c chunkTokenizer) Decode([]int) string       { return "" }
func (c chunkTokenizer) SpecialTokenID(api.SpecialToken) (int, error) {
	return 0, fmt.Errorf("no special tokens")
}

func tokensOf(t *testing.T, tok api.TokenizerWithSpans, text string) []api.Token {
	tokens, err := tok.EncodeWithSpans(text).Tokens()
	require.NoError(t, err)
	return tokens
}

func TestEncode_SingleTokenSpan(t *testing.T) {
	content := "The plan is fake news and lies"
	tokens := tokensOf(t, chunkTokenizer{chunk: 10}, content)
	require.Equal(t, api.TokenSpan{Start: 12, End: 16}, tokens[4].Span)

	for _, excludeTail := range []bool{true, false} {
		got, err := Encode(content, []Span{{12, 16}}, tokens, excludeTail)
		require.NoError(t, err)
		assert.Equal(t, []labels.Label{I, O, O, O, M, O, O, O, I}, got, "excludeTail=%v", excludeTail)
	}
}

func TestEncode_EmptySpans(t *testing.T) {
	content := "nothing manipulative here"
	tokens := tokensOf(t, chunkTokenizer{chunk: 3}, content)
	got, err := Encode(content, nil, tokens, false)
	require.NoError(t, err)
	for i, l := range got {
		if tokens[i].IsSpecial() {
			assert.Equal(t, I, l)
		} else {
			assert.Equal(t, O, l)
		}
	}
}

func TestEncode_ContinuationPolicy(t *testing.T) {
	content := "a propaganda b"
	// [CLS] a pro ##pag ##and ##a b [SEP]
	tokens := tokensOf(t, chunkTokenizer{chunk: 3}, content)
	require.Len(t, tokens, 8)
	spans := []Span{{2, 12}}

	got, err := Encode(content, spans, tokens, true)
	require.NoError(t, err)
	assert.Equal(t, []labels.Label{I, O, M, I, I, I, O, I}, got)

	got, err = Encode(content, spans, tokens, false)
	require.NoError(t, err)
	assert.Equal(t, []labels.Label{I, O, M, M, M, M, O, I}, got)
}

func TestEncode_PartialOverlapStaysOutside(t *testing.T) {
	content := "fake news"
	tokens := tokensOf(t, chunkTokenizer{chunk: 10}, content)
	// The span cuts "fake" in the middle and ends inside "news": neither is fully contained.
	got, err := Encode(content, []Span{{2, 7}}, tokens, true)
	require.NoError(t, err)
	assert.Equal(t, []labels.Label{I, O, O, I}, got)
}

func TestEncode_OverlappingSpansAreIdempotent(t *testing.T) {
	content := "one two three four"
	tokens := tokensOf(t, chunkTokenizer{chunk: 10}, content)
	single, err := Encode(content, []Span{{4, 13}}, tokens, true)
	require.NoError(t, err)
	overlapping, err := Encode(content, []Span{{8, 13}, {4, 13}, {4, 7}, {4, 13}}, tokens, true)
	require.NoError(t, err)
	assert.Equal(t, single, overlapping)
	assert.Equal(t, []labels.Label{I, O, M, M, O, I}, single)

	again, err := Encode(content, []Span{{4, 13}}, tokens, true)
	require.NoError(t, err)
	assert.Equal(t, single, again)
}

func TestEncode_SpanCoveringNoToken(t *testing.T) {
	content := "a  b"
	tokens := tokensOf(t, chunkTokenizer{chunk: 10}, content)
	got, err := Encode(content, []Span{{1, 3}}, tokens, true)
	require.NoError(t, err)
	assert.Equal(t, []labels.Label{I, O, O, I}, got)
}

func TestEncode_InvalidSpans(t *testing.T) {
	content := "short"
	tokens := tokensOf(t, chunkTokenizer{chunk: 10}, content)
	for _, span := range []Span{{-1, 2}, {2, 2}, {3, 1}, {0, 6}} {
		t.Run(fmt.Sprintf("%v", span), func(t *testing.T) {
			_, err := Encode(content, []Span{{0, 1}, span}, tokens, true)
			var spanErr *spanerr.InvalidSpanError
			require.True(t, errors.As(err, &spanErr))
			assert.Equal(t, 1, spanErr.Index)
			assert.Equal(t, len(content), spanErr.Length)
		})
	}
}

func TestEncodeDocument(t *testing.T) {
	doc := Document{ID: "doc-1", Content: "fake news", Spans: []Span{{0, 4}}, Language: "uk"}
	encoded, err := EncodeDocument(doc, chunkTokenizer{chunk: 10}, true)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", encoded.ID)
	assert.Equal(t, "uk", encoded.Language)
	assert.Equal(t, []labels.Label{I, M, O, I}, encoded.Labels)
	assert.Equal(t, []int{0, 1, 2, 3}, encoded.InputIDs())
	assert.Equal(t, []string{"[CLS]", "fake", "news", "[SEP]"}, encoded.Pieces())

	doc.Spans = []Span{{5, 20}}
	_, err = EncodeDocument(doc, chunkTokenizer{chunk: 10}, true)
	assert.True(t, errors.Is(err, spanerr.ErrInvalidSpan))
	assert.Contains(t, err.Error(), "doc-1")
}

type misalignedTokenizer struct{ chunkTokenizer }

func (m misalignedTokenizer) EncodeWithSpans(text string) api.EncodingResult {
	res := m.chunkTokenizer.EncodeWithSpans(text)
	res.WordIDs = res.WordIDs[1:]
	return res
}

func TestEncodeDocument_MisalignedTokenizer(t *testing.T) {
	_, err := EncodeDocument(Document{ID: "x", Content: "a b"}, misalignedTokenizer{chunkTokenizer{chunk: 2}}, true)
	assert.True(t, errors.Is(err, spanerr.ErrAlignment))
}

func makeDocs(n int) []Document {
	docs := make([]Document, n)
	for i := range docs {
		lang := "uk"
		if i%3 == 0 {
			lang = "ru"
		}
		content := fmt.Sprintf("document %d has some fake text", i)
		start := strings.Index(content, "fake")
		docs[i] = Document{ID: fmt.Sprintf("doc-%d", i), Content: content, Spans: []Span{{start, start + 4}}, Language: lang}
	}
	return docs
}

func TestEncodeBatch_PreservesOrder(t *testing.T) {
	docs := makeDocs(50)
	encoded, err := EncodeBatch(context.Background(), docs, chunkTokenizer{chunk: 3}, Options{Workers: 4, ExcludeTail: true})
	require.NoError(t, err)
	require.Len(t, encoded, len(docs))
	for i, e := range encoded {
		assert.Equal(t, docs[i].ID, e.ID)
		assert.Len(t, e.Labels, len(e.Tokens))
		sequential, err := EncodeDocument(docs[i], chunkTokenizer{chunk: 3}, true)
		require.NoError(t, err)
		assert.Equal(t, sequential.Labels, e.Labels)
	}
}

func TestEncodeBatch_FailsOnBadDocument(t *testing.T) {
	docs := makeDocs(10)
	docs[7].Spans = append(docs[7].Spans, Span{Start: 0, End: 1000})
	_, err := EncodeBatch(context.Background(), docs, chunkTokenizer{chunk: 3}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, spanerr.ErrInvalidSpan))
	assert.Contains(t, err.Error(), "doc-7")
}

func TestPrepare(t *testing.T) {
	docs := makeDocs(30)
	opts := DefaultOptions()
	opts.LanguageFilter = []string{"uk"}

	splits, err := Prepare(context.Background(), docs, chunkTokenizer{chunk: 4}, opts)
	require.NoError(t, err)
	assert.Equal(t, 10, splits.Filtered)
	assert.Len(t, splits.Train, 18)
	assert.Len(t, splits.Test, 2)

	seen := map[string]bool{}
	for _, e := range append(append([]*Encoded{}, splits.Train...), splits.Test...) {
		assert.Equal(t, "uk", e.Language)
		assert.False(t, seen[e.ID], "duplicated %s", e.ID)
		seen[e.ID] = true
	}

	// Same seed, same split.
	again, err := Prepare(context.Background(), docs, chunkTokenizer{chunk: 4}, opts)
	require.NoError(t, err)
	for i := range splits.Train {
		assert.Equal(t, splits.Train[i].ID, again.Train[i].ID)
	}
}

func TestPrepare_WithoutSplit(t *testing.T) {
	docs := makeDocs(5)
	opts := DefaultOptions()
	opts.SplitBeforeEncode = false
	opts.TrainRatio = 0 // ignored without split

	splits, err := Prepare(context.Background(), docs, chunkTokenizer{chunk: 4}, opts)
	require.NoError(t, err)
	require.Len(t, splits.Train, 5)
	assert.Empty(t, splits.Test)
	for i, e := range splits.Train {
		assert.Equal(t, docs[i].ID, e.ID)
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	bad := DefaultOptions()
	bad.TrainRatio = 1.5
	assert.Error(t, bad.Validate())
	bad = DefaultOptions()
	bad.Workers = -1
	assert.Error(t, bad.Validate())
}
