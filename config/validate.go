package config

import (
	"fmt"
	"strings"

	"github.com/melalex/unlp-2025-manipulation-detector/confusion"
)

// FieldError is a validation error of one configuration field.
type FieldError struct {
	// Field is the dotted path of the field, e.g. "encoder.train_ratio".
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError holds all the validation errors of a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "configuration validation failed: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - " + err.Error())
	}
	return sb.String()
}

// Validate checks the configuration, collecting all errors into a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError
	errs = append(errs, validateTokenizer(&cfg.Tokenizer)...)
	errs = append(errs, validateEncoder(&cfg.Encoder)...)
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateTokenizer(cfg *TokenizerConfig) []FieldError {
	var errs []FieldError
	switch cfg.Kind {
	case "", KindHF, KindSentencePiece:
	default:
		errs = append(errs, FieldError{
			Field:   "tokenizer.kind",
			Message: fmt.Sprintf("unknown kind %q, want %q or %q", cfg.Kind, KindHF, KindSentencePiece),
		})
	}
	if cfg.Scheme != "" {
		if _, err := confusion.DetectorForScheme(cfg.Scheme); err != nil {
			errs = append(errs, FieldError{Field: "tokenizer.scheme", Message: err.Error()})
		}
	}
	if cfg.MaxLength < 0 {
		errs = append(errs, FieldError{Field: "tokenizer.max_length", Message: "must be non-negative"})
	}
	return errs
}

func validateEncoder(cfg *EncoderConfig) []FieldError {
	var errs []FieldError
	if cfg.TrainRatio <= 0 || cfg.TrainRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "encoder.train_ratio",
			Message: fmt.Sprintf("must be in (0, 1], got %g", cfg.TrainRatio),
		})
	}
	if cfg.Workers < 0 {
		errs = append(errs, FieldError{Field: "encoder.workers", Message: "must be non-negative"})
	}
	for i, lang := range cfg.LanguageFilter {
		if strings.TrimSpace(lang) == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("encoder.language_filter[%d]", i), Message: "empty language"})
		}
	}
	return errs
}
