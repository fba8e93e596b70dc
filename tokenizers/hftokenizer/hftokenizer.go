// Package hftokenizer implements a tokenizer for HuggingFace's tokenizer.json format.
// This format is used by the HuggingFace Tokenizers library (the "fast" tokenizers)
// and supports WordPiece (BERT), BPE (GPT-2, RoBERTa), and Unigram models.
//
// Besides token ids, the tokenizer tracks for every token the byte span it came from in
// the original text and the pre-tokenized word it belongs to, which is what token
// classification needs to align character annotations with tokens.
package hftokenizer

import (
	"encoding/json"
	"os"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/melalex/unlp-2025-manipulation-detector/tokenizers/api"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// TokenizerJSON represents the structure of HuggingFace's tokenizer.json file.
type TokenizerJSON struct {
	Version       string          `json:"version"`
	Truncation    *Truncation     `json:"truncation"`
	Padding       json.RawMessage `json:"padding"`
	AddedTokens   []AddedToken    `json:"added_tokens"`
	Normalizer    *Normalizer     `json:"normalizer"`
	PreTokenizer  *PreTokenizer   `json:"pre_tokenizer"`
	PostProcessor *PostProcessor  `json:"post_processor"`
	Decoder       *Decoder        `json:"decoder"`
	Model         Model           `json:"model"`
}

// Truncation holds the truncation parameters saved with the tokenizer.
type Truncation struct {
	MaxLength int    `json:"max_length"`
	Strategy  string `json:"strategy"`
}

// AddedToken represents a special token added to the vocabulary.
type AddedToken struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	Lstrip     bool   `json:"lstrip"`
	Rstrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

// Normalizer represents the normalizer configuration.
type Normalizer struct {
	Type        string       `json:"type"`
	Lowercase   bool         `json:"lowercase"`
	Normalizers []Normalizer `json:"normalizers"`
}

// Pattern for regex-based operations.
type Pattern struct {
	Regex  string `json:"Regex,omitempty"`
	String string `json:"String,omitempty"`
}

// PreTokenizer represents the pre-tokenizer configuration.
type PreTokenizer struct {
	Type           string         `json:"type"`
	AddPrefixSpace bool           `json:"add_prefix_space"`
	PrependScheme  string         `json:"prepend_scheme"`
	Replacement    string         `json:"replacement"`
	PreTokenizers  []PreTokenizer `json:"pretokenizers"`
	Pattern        *Pattern       `json:"pattern"`
	Behavior       string         `json:"behavior"`
	Invert         bool           `json:"invert"`

	// split is the compiled Split pre-tokenizer, see compilePreTokenizer.
	split func(string) [][2]int
}

// PostProcessor represents the post-processor configuration.
type PostProcessor struct {
	Type          string                          `json:"type"`
	Single        []PostProcItem                  `json:"single"`
	SpecialTokens map[string]PostProcSpecialToken `json:"special_tokens"`
}

// PostProcItem is an item in post-processing.
type PostProcItem struct {
	SpecialToken *struct {
		ID     string `json:"id"`
		TypeID int    `json:"type_id"`
	} `json:"SpecialToken,omitempty"`
	Sequence *struct {
		ID     string `json:"id"`
		TypeID int    `json:"type_id"`
	} `json:"Sequence,omitempty"`
}

// PostProcSpecialToken defines a special token for post-processing.
type PostProcSpecialToken struct {
	ID     string   `json:"id"`
	IDs    []int    `json:"ids"`
	Tokens []string `json:"tokens"`
}

// Decoder represents the decoder configuration.
type Decoder struct {
	Type     string    `json:"type"`
	Prefix   string    `json:"prefix"`
	Decoders []Decoder `json:"decoders"`
}

// Model represents the tokenizer model (WordPiece, BPE, or Unigram).
type Model struct {
	Type                    string         `json:"type"`
	Vocab                   map[string]int `json:"vocab"`
	Merges                  []string       `json:"merges"`
	UnkToken                string         `json:"unk_token"`
	ContinuingSubwordPrefix string         `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int            `json:"max_input_chars_per_word"`
	EndOfWordSuffix         string         `json:"end_of_word_suffix"`
}

// Tokenizer implements the api.TokenizerWithSpans interface for HuggingFace tokenizer.json files.
type Tokenizer struct {
	config     *api.Config
	tokenizer  *TokenizerJSON
	idToToken  map[int]string
	mergeRanks map[string]int // For BPE: maps "token1 token2" to merge priority
	maxLength  int

	// Special token IDs
	unkID  int
	padID  int
	bosID  int
	eosID  int
	clsID  int
	sepID  int
	maskID int

	// Added tokens lookup (content -> id)
	addedTokens map[string]int
}

// Compile time assert that Tokenizer implements api.TokenizerWithSpans interface.
var _ api.TokenizerWithSpans = &Tokenizer{}

// NewFromFile creates a HuggingFace tokenizer from a local tokenizer.json file path.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer.json file %q", filePath)
	}
	return NewFromContent(config, content)
}

// NewFromContent creates a HuggingFace tokenizer from tokenizer.json content.
func NewFromContent(config *api.Config, content []byte) (*Tokenizer, error) {
	var tj TokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}
	switch tj.Model.Type {
	case "WordPiece", "BPE", "Unigram", "":
	default:
		return nil, errors.Errorf("unsupported tokenizer model type %q", tj.Model.Type)
	}

	t := &Tokenizer{
		config:      config,
		tokenizer:   &tj,
		idToToken:   make(map[int]string),
		addedTokens: make(map[string]int),
		unkID:       -1,
		padID:       -1,
		bosID:       -1,
		eosID:       -1,
		clsID:       -1,
		sepID:       -1,
		maskID:      -1,
	}

	// Build reverse vocab (id -> token)
	for token, id := range tj.Model.Vocab {
		t.idToToken[id] = token
	}

	// Build added tokens map
	for _, at := range tj.AddedTokens {
		t.addedTokens[at.Content] = at.ID
		t.idToToken[at.ID] = at.Content
	}

	// Build merge ranks for BPE
	if tj.Model.Type == "BPE" {
		t.mergeRanks = make(map[string]int)
		for i, merge := range tj.Model.Merges {
			t.mergeRanks[merge] = i
		}
	}

	if tj.Truncation != nil {
		t.maxLength = tj.Truncation.MaxLength
	}
	if config != nil && config.MaxLength > 0 {
		t.maxLength = config.MaxLength
	}

	if tj.PreTokenizer != nil {
		if err := compilePreTokenizer(tj.PreTokenizer); err != nil {
			return nil, err
		}
	}

	t.resolveSpecialTokens()
	return t, nil
}

// resolveSpecialTokens maps special tokens from config to their IDs.
func (t *Tokenizer) resolveSpecialTokens() {
	if t.tokenizer.Model.UnkToken != "" {
		if id, ok := t.tokenizer.Model.Vocab[t.tokenizer.Model.UnkToken]; ok {
			t.unkID = id
		}
	}

	for _, at := range t.tokenizer.AddedTokens {
		if !at.Special {
			continue
		}
		switch at.Content {
		case "[UNK]", "<unk>":
			t.unkID = at.ID
		case "[PAD]", "<pad>":
			t.padID = at.ID
		case "[CLS]", "<s>":
			t.clsID = at.ID
		case "[SEP]", "</s>":
			t.sepID = at.ID
		case "[MASK]", "<mask>":
			t.maskID = at.ID
		}
		if t.config != nil {
			if at.Content == t.config.BosToken {
				t.bosID = at.ID
			}
			if at.Content == t.config.EosToken {
				t.eosID = at.ID
			}
		}
	}

	if t.config == nil {
		return
	}
	fallback := func(id *int, name string) {
		if *id != -1 || name == "" {
			return
		}
		if v, ok := t.TokenToID(name); ok {
			*id = v
		}
	}
	fallback(&t.unkID, t.config.UnkToken)
	fallback(&t.padID, t.config.PadToken)
	fallback(&t.clsID, t.config.ClsToken)
	fallback(&t.sepID, t.config.SepToken)
	fallback(&t.maskID, t.config.MaskToken)
	fallback(&t.bosID, t.config.BosToken)
	fallback(&t.eosID, t.config.EosToken)
}

// Encode converts text to a sequence of token IDs, including the special tokens added by
// the post-processor.
func (t *Tokenizer) Encode(text string) []int {
	return t.EncodeWithSpans(text).IDs
}

// EncodeWithSpans returns the tokens of text with their byte spans, word ids and pieces.
//
// Special tokens added by the post-processor get the span {0, 0} and api.NoWordID.
// If a maximum length is configured, the text tokens are truncated so that the
// result, special tokens included, doesn't exceed it.
func (t *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	var res api.EncodingResult
	for wordID, w := range t.preTokenize(text) {
		for _, p := range t.tokenizeWord(w) {
			res.IDs = append(res.IDs, p.id)
			res.Spans = append(res.Spans, api.TokenSpan{Start: p.start, End: p.end})
			res.WordIDs = append(res.WordIDs, wordID)
			res.Pieces = append(res.Pieces, p.text)
		}
	}
	return t.postProcess(res)
}

// symbol is a piece of text with the byte span it covers in the original text.
// Zero-width symbols (like the Metaspace "▁") have start == end.
type symbol struct {
	text       string
	start, end int
	id         int
}

// word is a pre-tokenized word: symbols carry the original runes of the word before normalization.
type word struct {
	text       string
	start, end int
	prefix     string // zero-width marker prepended to the word (Metaspace)
}

// preTokenize splits text into words using the pre-tokenizer.
func (t *Tokenizer) preTokenize(text string) []word {
	words := []word{{text: text, start: 0, end: len(text)}}
	if t.tokenizer.PreTokenizer == nil {
		return splitWords(words, whitespaceSplit)
	}
	return t.applyPreTokenizer(words, t.tokenizer.PreTokenizer)
}

func (t *Tokenizer) applyPreTokenizer(words []word, pt *PreTokenizer) []word {
	switch pt.Type {
	case "BertPreTokenizer":
		return splitWords(words, bertSplit)
	case "Whitespace":
		return splitWords(words, wordCharSplit)
	case "WhitespaceSplit":
		return splitWords(words, whitespaceSplit)
	case "Split":
		return splitWords(words, pt.split)
	case "Punctuation":
		return splitWords(words, punctuationSplit)
	case "ByteLevel":
		split := splitWords(words, byteLevelSplit)
		if pt.AddPrefixSpace && len(split) > 0 && split[0].start == 0 && !strings.HasPrefix(split[0].text, " ") {
			split[0].prefix = string(byteToUnicode[' '])
		}
		return split
	case "Metaspace":
		return metaspaceWords(words, pt)
	case "Sequence":
		for _, child := range pt.PreTokenizers {
			childCopy := child
			words = t.applyPreTokenizer(words, &childCopy)
		}
		return words
	default:
		return splitWords(words, whitespaceSplit)
	}
}

// splitWords applies split to every word, keeping the offsets relative to the original text.
// split returns [start, end) byte ranges relative to the word.
func splitWords(words []word, split func(string) [][2]int) []word {
	var out []word
	for _, w := range words {
		for i, r := range split(w.text) {
			nw := word{text: w.text[r[0]:r[1]], start: w.start + r[0], end: w.start + r[1]}
			if i == 0 {
				nw.prefix = w.prefix
			}
			out = append(out, nw)
		}
	}
	return out
}

// tokenizeWord tokenizes a single word according to the model type.
func (t *Tokenizer) tokenizeWord(w word) []symbol {
	// First check if word is an added token
	if id, ok := t.addedTokens[w.text]; ok && w.prefix == "" {
		return []symbol{{text: w.text, start: w.start, end: w.end, id: id}}
	}

	symbols := t.normalizeWord(w)
	if len(symbols) == 0 {
		return nil
	}
	switch t.tokenizer.Model.Type {
	case "WordPiece":
		return t.wordPieceTokenize(symbols, w)
	case "BPE":
		return t.bpeTokenize(symbols)
	default:
		return t.unigramTokenize(symbols)
	}
}

// normalizeWord applies the normalizer rune by rune, so that every normalized rune keeps the
// byte span of the original rune it came from.
func (t *Tokenizer) normalizeWord(w word) []symbol {
	var symbols []symbol
	if w.prefix != "" {
		symbols = append(symbols, symbol{text: w.prefix, start: w.start, end: w.start})
	}
	byteLevel := t.isByteLevel()
	for i, r := range w.text {
		start := w.start + i
		end := start + utf8.RuneLen(r)
		normalized := string(r)
		if t.tokenizer.Normalizer != nil {
			normalized = t.applyNormalizer(normalized, t.tokenizer.Normalizer)
		}
		if byteLevel {
			for _, b := range []byte(normalized) {
				symbols = append(symbols, symbol{text: string(byteToUnicode[b]), start: start, end: end})
			}
			continue
		}
		for _, nr := range normalized {
			symbols = append(symbols, symbol{text: string(nr), start: start, end: end})
		}
	}
	return symbols
}

func (t *Tokenizer) isByteLevel() bool {
	pt := t.tokenizer.PreTokenizer
	if pt == nil {
		return false
	}
	if pt.Type == "ByteLevel" {
		return true
	}
	for _, child := range pt.PreTokenizers {
		if child.Type == "ByteLevel" {
			return true
		}
	}
	return false
}

func (t *Tokenizer) applyNormalizer(text string, n *Normalizer) string {
	switch n.Type {
	case "Lowercase":
		return strings.ToLower(text)
	case "NFD":
		return norm.NFD.String(text)
	case "NFC":
		return norm.NFC.String(text)
	case "NFKC":
		return norm.NFKC.String(text)
	case "NFKD":
		return norm.NFKD.String(text)
	case "StripAccents":
		// NFD decomposition then remove combining marks (Mn category)
		return removeAccents(norm.NFD.String(text))
	case "BertNormalizer":
		result := cleanText(text)
		if n.Lowercase {
			result = strings.ToLower(result)
		}
		return result
	case "Sequence":
		result := text
		for _, child := range n.Normalizers {
			childCopy := child
			result = t.applyNormalizer(result, &childCopy)
		}
		return result
	default:
		return text
	}
}

// unknown returns the unknown token covering the whole of symbols, or nil if there is no unknown token.
func (t *Tokenizer) unknown(symbols []symbol) []symbol {
	if t.unkID < 0 {
		return nil
	}
	return []symbol{{
		text:  t.idToToken[t.unkID],
		start: symbols[0].start,
		end:   symbols[len(symbols)-1].end,
		id:    t.unkID,
	}}
}

// wordPieceTokenize implements WordPiece tokenization (used by BERT).
func (t *Tokenizer) wordPieceTokenize(symbols []symbol, w word) []symbol {
	maxChars := t.tokenizer.Model.MaxInputCharsPerWord
	if maxChars == 0 {
		maxChars = 100
	}
	if utf8.RuneCountInString(w.text) > maxChars {
		return t.unknown(symbols)
	}

	prefix := t.continuingPrefix()
	var pieces []symbol
	start := 0
	for start < len(symbols) {
		end := len(symbols)
		found := false
		for start < end {
			substr := joinSymbols(symbols[start:end])
			if start > 0 {
				substr = prefix + substr
			}
			if id, ok := t.tokenizer.Model.Vocab[substr]; ok {
				pieces = append(pieces, symbol{
					text:  substr,
					start: symbols[start].start,
					end:   symbols[end-1].end,
					id:    id,
				})
				found = true
				break
			}
			end--
		}
		if !found {
			return t.unknown(symbols)
		}
		start = end
	}
	return pieces
}

func (t *Tokenizer) continuingPrefix() string {
	if prefix := t.tokenizer.Model.ContinuingSubwordPrefix; prefix != "" {
		return prefix
	}
	return "##"
}

// bpeTokenize implements BPE tokenization (used by GPT-2, RoBERTa).
func (t *Tokenizer) bpeTokenize(symbols []symbol) []symbol {
	symbols = append([]symbol(nil), symbols...)
	if suffix := t.tokenizer.Model.EndOfWordSuffix; suffix != "" {
		symbols[len(symbols)-1].text += suffix
	}

	// Apply BPE merges, lowest rank first.
	for len(symbols) > 1 {
		bestRank, bestIdx := -1, -1
		for i := 0; i < len(symbols)-1; i++ {
			pair := symbols[i].text + " " + symbols[i+1].text
			if rank, ok := t.mergeRanks[pair]; ok && (bestRank == -1 || rank < bestRank) {
				bestRank = rank
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		merged := mergeSymbols(symbols[bestIdx : bestIdx+2])
		symbols = append(symbols[:bestIdx+1], symbols[bestIdx+2:]...)
		symbols[bestIdx] = merged
	}

	pieces := make([]symbol, 0, len(symbols))
	for _, sym := range symbols {
		if id, ok := t.tokenizer.Model.Vocab[sym.text]; ok {
			sym.id = id
			pieces = append(pieces, sym)
		} else if t.unkID >= 0 {
			sym.id = t.unkID
			pieces = append(pieces, sym)
		}
	}
	return trimSpans(pieces)
}

// unigramTokenize implements a greedy longest-match approximation of Unigram tokenization.
func (t *Tokenizer) unigramTokenize(symbols []symbol) []symbol {
	var pieces []symbol
	start := 0
	for start < len(symbols) {
		end := len(symbols)
		found := false
		for end > start {
			substr := joinSymbols(symbols[start:end])
			if id, ok := t.tokenizer.Model.Vocab[substr]; ok {
				piece := mergeSymbols(symbols[start:end])
				piece.id = id
				pieces = append(pieces, piece)
				found = true
				start = end
				break
			}
			end--
		}
		if !found {
			if unk := t.unknown(symbols[start : start+1]); unk != nil {
				pieces = append(pieces, unk...)
			}
			start++
		}
	}
	return pieces
}

// trimSpans removes the leading byte-level space ("Ġ") from the spans, like the
// trim_offsets option of the RoBERTa post-processor does.
func trimSpans(pieces []symbol) []symbol {
	space := string(byteToUnicode[' '])
	for i, p := range pieces {
		if strings.HasPrefix(p.text, space) && p.end > p.start && len(p.text) > len(space) {
			pieces[i].start++
		}
	}
	return pieces
}

func joinSymbols(symbols []symbol) string {
	var sb strings.Builder
	for _, s := range symbols {
		sb.WriteString(s.text)
	}
	return sb.String()
}

func mergeSymbols(symbols []symbol) symbol {
	return symbol{
		text:  joinSymbols(symbols),
		start: symbols[0].start,
		end:   symbols[len(symbols)-1].end,
	}
}

// postProcess truncates the encoding and adds the special tokens of the post-processor.
func (t *Tokenizer) postProcess(res api.EncodingResult) api.EncodingResult {
	before, after := t.specialTokens()
	if t.maxLength > 0 {
		limit := t.maxLength - len(before) - len(after)
		if limit < 0 {
			limit = 0
		}
		if res.Len() > limit {
			res.IDs = res.IDs[:limit]
			res.Spans = res.Spans[:limit]
			res.WordIDs = res.WordIDs[:limit]
			res.Pieces = res.Pieces[:limit]
		}
	}
	if len(before) == 0 && len(after) == 0 {
		return res
	}

	n := len(before) + res.Len() + len(after)
	out := api.EncodingResult{
		IDs:     make([]int, 0, n),
		Spans:   make([]api.TokenSpan, 0, n),
		WordIDs: make([]int, 0, n),
		Pieces:  make([]string, 0, n),
	}
	appendSpecial := func(ids []int) {
		for _, id := range ids {
			out.IDs = append(out.IDs, id)
			out.Spans = append(out.Spans, api.TokenSpan{})
			out.WordIDs = append(out.WordIDs, api.NoWordID)
			out.Pieces = append(out.Pieces, t.idToToken[id])
		}
	}
	appendSpecial(before)
	out.IDs = append(out.IDs, res.IDs...)
	out.Spans = append(out.Spans, res.Spans...)
	out.WordIDs = append(out.WordIDs, res.WordIDs...)
	out.Pieces = append(out.Pieces, res.Pieces...)
	appendSpecial(after)
	return out
}

// specialTokens returns the ids of the special tokens the post-processor places before and
// after a single sequence.
func (t *Tokenizer) specialTokens() (before, after []int) {
	pp := t.tokenizer.PostProcessor
	if pp == nil {
		return nil, nil
	}
	switch pp.Type {
	case "BertProcessing", "RobertaProcessing":
		if t.clsID >= 0 {
			before = []int{t.clsID}
		}
		if t.sepID >= 0 {
			after = []int{t.sepID}
		}
	case "TemplateProcessing":
		seenSequence := false
		for _, item := range pp.Single {
			switch {
			case item.Sequence != nil:
				seenSequence = true
			case item.SpecialToken != nil:
				ids := pp.SpecialTokens[item.SpecialToken.ID].IDs
				if len(ids) == 0 {
					if id, ok := t.TokenToID(item.SpecialToken.ID); ok {
						ids = []int{id}
					}
				}
				if seenSequence {
					after = append(after, ids...)
				} else {
					before = append(before, ids...)
				}
			}
		}
	}
	return before, after
}

// Decode converts a sequence of token IDs back to text.
func (t *Tokenizer) Decode(ids []int) string {
	var tokens []string
	for _, id := range ids {
		if token, ok := t.idToToken[id]; ok {
			tokens = append(tokens, token)
		}
	}
	if t.tokenizer.Decoder == nil {
		return t.wordPieceDecode(tokens, t.continuingPrefix())
	}
	return t.applyDecoder(tokens, t.tokenizer.Decoder)
}

func (t *Tokenizer) applyDecoder(tokens []string, d *Decoder) string {
	switch d.Type {
	case "WordPiece":
		prefix := d.Prefix
		if prefix == "" {
			prefix = "##"
		}
		return t.wordPieceDecode(tokens, prefix)
	case "ByteLevel":
		return byteLevelDecode(strings.Join(tokens, ""))
	case "Metaspace":
		decoded := strings.ReplaceAll(strings.Join(tokens, ""), "▁", " ")
		return strings.TrimLeft(decoded, " ")
	case "BPEDecoder":
		return t.bpeDecode(tokens)
	case "Sequence":
		// The steps of a decoding sequence (Replace, Strip, ByteFallback...) are folded into
		// the first decoder we know how to apply.
		for _, child := range d.Decoders {
			switch child.Type {
			case "WordPiece", "ByteLevel", "Metaspace", "BPEDecoder":
				childCopy := child
				return t.applyDecoder(tokens, &childCopy)
			}
		}
		return strings.Join(tokens, "")
	default:
		return t.wordPieceDecode(tokens, t.continuingPrefix())
	}
}

func (t *Tokenizer) wordPieceDecode(tokens []string, prefix string) string {
	var result strings.Builder
	for i, token := range tokens {
		if strings.HasPrefix(token, prefix) {
			result.WriteString(strings.TrimPrefix(token, prefix))
		} else {
			if i > 0 {
				result.WriteString(" ")
			}
			result.WriteString(token)
		}
	}
	return result.String()
}

func (t *Tokenizer) bpeDecode(tokens []string) string {
	suffix := t.tokenizer.Model.EndOfWordSuffix

	var result strings.Builder
	for i, token := range tokens {
		if suffix != "" && strings.HasSuffix(token, suffix) {
			result.WriteString(strings.TrimSuffix(token, suffix))
			if i < len(tokens)-1 {
				result.WriteString(" ")
			}
		} else {
			result.WriteString(token)
		}
	}
	return result.String()
}

// SpecialTokenID returns the ID for a given special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		if t.unkID >= 0 {
			return t.unkID, nil
		}
	case api.TokPad:
		if t.padID >= 0 {
			return t.padID, nil
		}
	case api.TokBeginningOfSentence:
		if t.bosID >= 0 {
			return t.bosID, nil
		}
		// Fall back to CLS for BERT-style models
		if t.clsID >= 0 {
			return t.clsID, nil
		}
	case api.TokEndOfSentence:
		if t.eosID >= 0 {
			return t.eosID, nil
		}
		// Fall back to SEP for BERT-style models
		if t.sepID >= 0 {
			return t.sepID, nil
		}
	case api.TokMask:
		if t.maskID >= 0 {
			return t.maskID, nil
		}
	case api.TokClassification:
		if t.clsID >= 0 {
			return t.clsID, nil
		}
	}
	return 0, errors.Errorf("special token %s not found", token)
}

// GetTokenizerType returns the model type (WordPiece, BPE, Unigram).
func (t *Tokenizer) GetTokenizerType() string {
	return t.tokenizer.Model.Type
}

// ContinuationScheme returns how the pieces of this tokenizer mark word boundaries:
// "wordpiece" (continuations carry a "##" prefix), "metaspace" (word starts carry "▁")
// or "bytelevel" (word starts carry "Ġ").
func (t *Tokenizer) ContinuationScheme() string {
	if t.tokenizer.Model.Type == "WordPiece" {
		return "wordpiece"
	}
	if t.isByteLevel() {
		return "bytelevel"
	}
	return "metaspace"
}

// TokenToID converts a token string to its ID.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	if id, ok := t.addedTokens[token]; ok {
		return id, true
	}
	id, ok := t.tokenizer.Model.Vocab[token]
	return id, ok
}

// IDToToken converts a token ID to its string.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	token, ok := t.idToToken[id]
	return token, ok
}

// Helper functions

func cleanText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if r == 0 || r == 0xFFFD || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			result.WriteRune(' ')
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	// ASCII punctuation
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func removeAccents(text string) string {
	var result strings.Builder
	for _, r := range text {
		if !unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing
			result.WriteRune(r)
		}
	}
	return result.String()
}

// runSplit splits text into maximal runs of runes with the same class. Runes of class 0 are
// dropped, and runes of class -1 always form a run on their own.
func runSplit(text string, class func(rune) int) [][2]int {
	var out [][2]int
	runStart, runClass := -1, 0
	flush := func(end int) {
		if runStart >= 0 {
			out = append(out, [2]int{runStart, end})
			runStart = -1
		}
	}
	for i, r := range text {
		c := class(r)
		switch {
		case c == 0:
			flush(i)
		case c == -1:
			flush(i)
			out = append(out, [2]int{i, i + utf8.RuneLen(r)})
		case runStart < 0:
			runStart, runClass = i, c
		case c != runClass:
			flush(i)
			runStart, runClass = i, c
		}
	}
	flush(len(text))
	return out
}

func whitespaceSplit(text string) [][2]int {
	return runSplit(text, func(r rune) int {
		if isWhitespace(r) {
			return 0
		}
		return 1
	})
}

func bertSplit(text string) [][2]int {
	return runSplit(text, func(r rune) int {
		switch {
		case isWhitespace(r):
			return 0
		case isPunctuation(r):
			return -1
		default:
			return 1
		}
	})
}

// wordCharSplit mimics the `\w+|[^\w\s]+` split of the Whitespace pre-tokenizer.
func wordCharSplit(text string) [][2]int {
	return runSplit(text, func(r rune) int {
		switch {
		case isWhitespace(r):
			return 0
		case isWordChar(r):
			return 1
		default:
			return 2
		}
	})
}

func punctuationSplit(text string) [][2]int {
	return runSplit(text, func(r rune) int {
		if isPunctuation(r) {
			return -1
		}
		return 1
	})
}

// byteLevelSplit approximates the GPT-2 split pattern: runs of letters, of digits or of other
// symbols, each optionally preceded by one space which stays attached to the word.
// The add_prefix_space option is handled by the caller with a zero-width prefix.
func byteLevelSplit(text string) [][2]int {
	class := func(r rune) int {
		switch {
		case isWhitespace(r):
			return 0
		case unicode.IsLetter(r):
			return 1
		case unicode.IsNumber(r):
			return 2
		default:
			return 3
		}
	}
	runs := runSplit(text, class)
	for i, r := range runs {
		if r[0] > 0 && text[r[0]-1] == ' ' {
			runs[i][0]--
		}
	}
	return runs
}

// metaspaceWords splits words on spaces and marks word starts with the replacement
// character ("▁" by default).
//
// A word preceded by a space within its incoming split is always marked. The first word of
// every split is marked with prepend_scheme "always" (or the legacy add_prefix_space), and
// only the one at offset 0 with "first". Except with "never", a word separated from the
// previous one by a gap, which an earlier pre-tokenizer removed, is marked too.
func metaspaceWords(words []word, pt *PreTokenizer) []word {
	replacement := pt.Replacement
	if replacement == "" {
		replacement = "▁"
	}
	scheme := pt.PrependScheme
	if scheme == "" && pt.AddPrefixSpace {
		scheme = "always"
	}
	var out []word
	prevEnd := -1
	for _, w := range words {
		for i, r := range whitespaceSplit(w.text) {
			nw := word{text: w.text[r[0]:r[1]], start: w.start + r[0], end: w.start + r[1]}
			switch {
			case i > 0 || r[0] > 0:
				nw.prefix = replacement
			case w.prefix != "":
				nw.prefix = w.prefix
			case scheme == "always":
				nw.prefix = replacement
			case scheme == "first" && nw.start == 0:
				nw.prefix = replacement
			case scheme != "never" && scheme != "" && prevEnd >= 0 && nw.start > prevEnd:
				nw.prefix = replacement
			}
			prevEnd = nw.end
			out = append(out, nw)
		}
	}
	return out
}

// compilePreTokenizer prepares the Split pre-tokenizers of pt, failing on patterns or
// behaviors that can't be reproduced.
func compilePreTokenizer(pt *PreTokenizer) error {
	for i := range pt.PreTokenizers {
		if err := compilePreTokenizer(&pt.PreTokenizers[i]); err != nil {
			return err
		}
	}
	if pt.Type != "Split" {
		return nil
	}
	if pt.Pattern == nil || (pt.Pattern.String == "" && pt.Pattern.Regex == "") {
		return errors.New("Split pre-tokenizer without a pattern")
	}
	expr := pt.Pattern.Regex
	if pt.Pattern.String != "" {
		expr = regexp.QuoteMeta(pt.Pattern.String)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return errors.Wrapf(err, "unsupported Split pre-tokenizer pattern %q", expr)
	}
	switch pt.Behavior {
	case "", "Removed", "Isolated", "MergedWithPrevious", "MergedWithNext", "Contiguous":
	default:
		return errors.Errorf("unsupported Split pre-tokenizer behavior %q", pt.Behavior)
	}
	pt.split = patternSplit(re, pt.Behavior, pt.Invert)
	return nil
}

// patternSplit splits text on the matches of re, handling the delimiters according to
// behavior. With invert the matches are the kept pieces and the text between them the
// delimiters.
func patternSplit(re *regexp.Regexp, behavior string, invert bool) func(string) [][2]int {
	type piece struct {
		r     [2]int
		delim bool
	}
	return func(text string) [][2]int {
		var pieces []piece
		prev := 0
		for _, m := range re.FindAllStringIndex(text, -1) {
			if m[0] == m[1] {
				continue
			}
			if m[0] > prev {
				pieces = append(pieces, piece{[2]int{prev, m[0]}, invert})
			}
			pieces = append(pieces, piece{[2]int{m[0], m[1]}, !invert})
			prev = m[1]
		}
		if prev < len(text) {
			pieces = append(pieces, piece{[2]int{prev, len(text)}, invert})
		}

		var out [][2]int
		prevDelim := false
		switch behavior {
		case "Isolated":
			for _, p := range pieces {
				out = append(out, p.r)
			}
		case "MergedWithPrevious":
			for _, p := range pieces {
				if p.delim && !prevDelim && len(out) > 0 {
					out[len(out)-1][1] = p.r[1]
				} else {
					out = append(out, p.r)
				}
				prevDelim = p.delim
			}
		case "MergedWithNext":
			for i := len(pieces) - 1; i >= 0; i-- {
				p := pieces[i]
				if p.delim && !prevDelim && len(out) > 0 {
					out[len(out)-1][0] = p.r[0]
				} else {
					out = append(out, p.r)
				}
				prevDelim = p.delim
			}
			slices.Reverse(out)
		case "Contiguous":
			for i, p := range pieces {
				if i > 0 && p.delim == prevDelim {
					out[len(out)-1][1] = p.r[1]
				} else {
					out = append(out, p.r)
				}
				prevDelim = p.delim
			}
		default:
			for _, p := range pieces {
				if !p.delim {
					out = append(out, p.r)
				}
			}
		}
		return out
	}
}

// Byte-level BPE encoding/decoding
// GPT-2 uses a specific byte-to-unicode mapping
var byteToUnicode map[byte]rune
var unicodeToByte map[rune]byte

func init() {
	byteToUnicode = make(map[byte]rune)
	unicodeToByte = make(map[rune]byte)

	// Build the byte-to-unicode mapping used by GPT-2
	n := 0
	for b := 0; b < 256; b++ {
		if (b >= '!' && b <= '~') || (b >= '\xa1' && b <= '\xac') || (b >= '\xae' && b <= '\xff') {
			byteToUnicode[byte(b)] = rune(b)
			unicodeToByte[rune(b)] = byte(b)
		} else {
			byteToUnicode[byte(b)] = rune(256 + n)
			unicodeToByte[rune(256+n)] = byte(b)
			n++
		}
	}
}

func byteLevelDecode(text string) string {
	var result []byte
	for _, r := range text {
		if b, ok := unicodeToByte[r]; ok {
			result = append(result, b)
		} else {
			// Fallback for characters not in the mapping
			result = append(result, []byte(string(r))...)
		}
	}
	return string(result)
}
