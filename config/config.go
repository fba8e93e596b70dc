// Package config holds the configuration of the span detection tools, loaded from a YAML file
// and overridden by SPANDETECT_* environment variables.
//
// Example:
//
//	tokenizer:
//	  path: models/xlm-roberta-base/tokenizer.json
//	encoder:
//	  train_ratio: 0.9
//	  seed: 42
//	  language_filter: [uk]
//	output:
//	  dataset_dir: data/processed
package config

import (
	"path/filepath"
	"strings"

	"github.com/melalex/unlp-2025-manipulation-detector/encoder"
)

// Tokenizer kinds.
const (
	KindHF            = "hf"
	KindSentencePiece = "sentencepiece"
)

// Config is the root configuration.
type Config struct {
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	Output    OutputConfig    `yaml:"output"`
}

// TokenizerConfig selects the tokenizer used to encode documents.
type TokenizerConfig struct {
	// Path to a tokenizer.json (KindHF) or a SentencePiece .model file.
	Path string `yaml:"path"`

	// Kind is KindHF or KindSentencePiece. If empty it is inferred from the Path extension.
	Kind string `yaml:"kind"`

	// Scheme is the continuation scheme used for visualization: "wordpiece", "metaspace" or
	// "bytelevel". If empty it is taken from the tokenizer.
	Scheme string `yaml:"scheme"`

	// MaxLength truncates encoded documents, including special tokens. It defaults to
	// DefaultMaxLength, the input size of bert and xlm-roberta models.
	MaxLength int `yaml:"max_length"`
}

// EffectiveKind returns Kind, or the kind inferred from Path.
func (t *TokenizerConfig) EffectiveKind() string {
	if t.Kind != "" {
		return t.Kind
	}
	if strings.EqualFold(filepath.Ext(t.Path), ".model") {
		return KindSentencePiece
	}
	return KindHF
}

// EncoderConfig configures the dataset encoding, see encoder.Options.
type EncoderConfig struct {
	TrainRatio        float64  `yaml:"train_ratio"`
	Seed              *uint64  `yaml:"seed"`
	ExcludeTail       *bool    `yaml:"exclude_tail"`
	LanguageFilter    []string `yaml:"language_filter"`
	SplitBeforeEncode *bool    `yaml:"split_before_encode"`
	Workers           int      `yaml:"workers"`
}

// Options returns the encoder options. ApplyDefaults must have been called.
func (e *EncoderConfig) Options() encoder.Options {
	opts := encoder.DefaultOptions()
	opts.TrainRatio = e.TrainRatio
	opts.LanguageFilter = e.LanguageFilter
	opts.Workers = e.Workers
	if e.Seed != nil {
		opts.Seed = *e.Seed
	}
	if e.ExcludeTail != nil {
		opts.ExcludeTail = *e.ExcludeTail
	}
	if e.SplitBeforeEncode != nil {
		opts.SplitBeforeEncode = *e.SplitBeforeEncode
	}
	return opts
}

// OutputConfig locates the artifacts written by the tools.
type OutputConfig struct {
	// DatasetDir receives train.parquet and test.parquet.
	DatasetDir string `yaml:"dataset_dir"`

	// VisualizationPath is the markdown file confusion renderings are appended to.
	VisualizationPath string `yaml:"visualization_path"`

	// ReportPath is the CSV evaluation log.
	ReportPath string `yaml:"report_path"`
}
