package main

import (
	"github.com/melalex/unlp-2025-manipulation-detector/config"
	"github.com/melalex/unlp-2025-manipulation-detector/confusion"
	"github.com/melalex/unlp-2025-manipulation-detector/tokenizers/api"
	"github.com/melalex/unlp-2025-manipulation-detector/tokenizers/hftokenizer"
	"github.com/melalex/unlp-2025-manipulation-detector/tokenizers/sentencepiece"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// loadTokenizer creates the configured tokenizer and returns it with its continuation scheme name.
func loadTokenizer(cfg *config.TokenizerConfig) (api.TokenizerWithSpans, string, error) {
	if cfg.Path == "" {
		return nil, "", errors.New("no tokenizer configured: set tokenizer.path or SPANDETECT_TOKENIZER_PATH")
	}
	tokConfig := &api.Config{MaxLength: cfg.MaxLength}
	var (
		tok    api.TokenizerWithSpans
		scheme string
	)
	switch kind := cfg.EffectiveKind(); kind {
	case config.KindHF:
		hf, err := hftokenizer.NewFromFile(tokConfig, cfg.Path)
		if err != nil {
			return nil, "", err
		}
		tok, scheme = hf, hf.ContinuationScheme()
		klog.V(1).Infof("loaded %s tokenizer from %s", hf.GetTokenizerType(), cfg.Path)
	case config.KindSentencePiece:
		tokConfig.BosToken, tokConfig.EosToken = "<s>", "</s>"
		sp, err := sentencepiece.New(tokConfig, cfg.Path)
		if err != nil {
			return nil, "", err
		}
		tok, scheme = sp, confusion.SchemeMetaspace
		klog.V(1).Infof("loaded sentencepiece tokenizer from %s", cfg.Path)
	default:
		return nil, "", errors.Errorf("unknown tokenizer kind %q", kind)
	}
	if cfg.Scheme != "" {
		scheme = cfg.Scheme
	}
	return tok, scheme, nil
}

// resolveScheme returns the configured continuation scheme, asking the tokenizer if the
// configuration doesn't name one.
func resolveScheme(cfg *config.TokenizerConfig, override string) (confusion.Scheme, error) {
	name := override
	if name == "" {
		name = cfg.Scheme
	}
	if name == "" && cfg.Path != "" {
		var err error
		if _, name, err = loadTokenizer(cfg); err != nil {
			return nil, err
		}
	}
	if name == "" {
		return nil, errors.New("no continuation scheme: use --scheme, tokenizer.scheme or tokenizer.path")
	}
	return confusion.DetectorForScheme(name)
}
