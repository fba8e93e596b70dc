package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// EnvPrefix prefixes the environment variables overriding configuration fields.
const EnvPrefix = "SPANDETECT_"

// LoadConfig loads the configuration at path, applies defaults and validates it.
// An empty path returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read configuration file %q", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse configuration file %q", path)
		}
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides is LoadConfig followed by the SPANDETECT_SECTION_FIELD environment
// variable overrides (e.g. SPANDETECT_ENCODER_TRAIN_RATIO), which take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, errors.WithMessage(err, "after environment overrides")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []FieldError
	env := func(name string, apply func(val string) error) {
		val, found := lookup(EnvPrefix + name)
		if !found {
			return
		}
		if err := apply(val); err != nil {
			errs = append(errs, FieldError{Field: EnvPrefix + name, Message: err.Error()})
			return
		}
		klog.V(2).Infof("configuration overridden by %s%s", EnvPrefix, name)
	}
	setString := func(target *string) func(string) error {
		return func(val string) error {
			*target = val
			return nil
		}
	}
	setInt := func(target *int) func(string) error {
		return func(val string) (err error) {
			*target, err = strconv.Atoi(val)
			return err
		}
	}
	setBool := func(target **bool) func(string) error {
		return func(val string) error {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return err
			}
			*target = &b
			return nil
		}
	}

	env("TOKENIZER_PATH", setString(&cfg.Tokenizer.Path))
	env("TOKENIZER_KIND", setString(&cfg.Tokenizer.Kind))
	env("TOKENIZER_SCHEME", setString(&cfg.Tokenizer.Scheme))
	env("TOKENIZER_MAX_LENGTH", setInt(&cfg.Tokenizer.MaxLength))

	env("ENCODER_TRAIN_RATIO", func(val string) (err error) {
		cfg.Encoder.TrainRatio, err = strconv.ParseFloat(val, 64)
		return err
	})
	env("ENCODER_SEED", func(val string) error {
		seed, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return err
		}
		cfg.Encoder.Seed = &seed
		return nil
	})
	env("ENCODER_EXCLUDE_TAIL", setBool(&cfg.Encoder.ExcludeTail))
	env("ENCODER_SPLIT_BEFORE_ENCODE", setBool(&cfg.Encoder.SplitBeforeEncode))
	env("ENCODER_WORKERS", setInt(&cfg.Encoder.Workers))
	env("ENCODER_LANGUAGE_FILTER", func(val string) error {
		cfg.Encoder.LanguageFilter = nil
		for _, lang := range strings.Split(val, ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				cfg.Encoder.LanguageFilter = append(cfg.Encoder.LanguageFilter, lang)
			}
		}
		return nil
	})

	env("OUTPUT_DATASET_DIR", setString(&cfg.Output.DatasetDir))
	env("OUTPUT_VISUALIZATION_PATH", setString(&cfg.Output.VisualizationPath))
	env("OUTPUT_REPORT_PATH", setString(&cfg.Output.ReportPath))

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
