package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
tokenizer:
  path: models/xlm-roberta-base/tokenizer.json
  scheme: metaspace
  max_length: 256
encoder:
  train_ratio: 0.8
  seed: 0
  exclude_tail: false
  language_filter: [uk]
output:
  report_path: out/eval.csv
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "models/xlm-roberta-base/tokenizer.json", cfg.Tokenizer.Path)
	assert.Equal(t, KindHF, cfg.Tokenizer.EffectiveKind())
	assert.Equal(t, 256, cfg.Tokenizer.MaxLength)
	assert.Equal(t, "out/eval.csv", cfg.Output.ReportPath)
	assert.Equal(t, DefaultDatasetDir, cfg.Output.DatasetDir)

	opts := cfg.Encoder.Options()
	assert.Equal(t, 0.8, opts.TrainRatio)
	assert.Equal(t, uint64(0), opts.Seed, "an explicit zero seed is kept")
	assert.False(t, opts.ExcludeTail)
	assert.True(t, opts.SplitBeforeEncode)
	assert.Equal(t, []string{"uk"}, opts.LanguageFilter)
	assert.NoError(t, opts.Validate())
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	opts := cfg.Encoder.Options()
	assert.Equal(t, DefaultTrainRatio, opts.TrainRatio)
	assert.Equal(t, uint64(DefaultSeed), opts.Seed)
	assert.True(t, opts.ExcludeTail)
	assert.Equal(t, DefaultVisualizationPath, cfg.Output.VisualizationPath)
	assert.Equal(t, DefaultMaxLength, cfg.Tokenizer.MaxLength)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "encoder: [not, a, map]"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `
tokenizer:
  kind: bpe
  scheme: morse
encoder:
  train_ratio: 1.5
  workers: -2
`))
	var validationErr ValidationError
	require.ErrorAs(t, err, &validationErr)
	fields := make([]string, len(validationErr.Errors))
	for i, fe := range validationErr.Errors {
		fields[i] = fe.Field
	}
	assert.Equal(t, []string{"tokenizer.kind", "tokenizer.scheme", "encoder.train_ratio", "encoder.workers"}, fields)
}

func TestEffectiveKind(t *testing.T) {
	assert.Equal(t, KindSentencePiece, (&TokenizerConfig{Path: "m/tokenizer.model"}).EffectiveKind())
	assert.Equal(t, KindHF, (&TokenizerConfig{Path: "m/tokenizer.json"}).EffectiveKind())
	assert.Equal(t, KindHF, (&TokenizerConfig{Path: "m/tokenizer.model", Kind: KindHF}).EffectiveKind())
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "encoder:\n  train_ratio: 0.8\n")
	t.Setenv("SPANDETECT_ENCODER_TRAIN_RATIO", "0.5")
	t.Setenv("SPANDETECT_ENCODER_EXCLUDE_TAIL", "false")
	t.Setenv("SPANDETECT_ENCODER_LANGUAGE_FILTER", "uk, ru,")
	t.Setenv("SPANDETECT_TOKENIZER_PATH", "spm.model")
	t.Setenv("SPANDETECT_OUTPUT_DATASET_DIR", "/tmp/ds")
	t.Setenv("SPANDETECT_TOKENIZER_MAX_LENGTH", "128")

	cfg, err := LoadConfigWithEnvOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Encoder.TrainRatio)
	assert.False(t, *cfg.Encoder.ExcludeTail)
	assert.Equal(t, []string{"uk", "ru"}, cfg.Encoder.LanguageFilter)
	assert.Equal(t, KindSentencePiece, cfg.Tokenizer.EffectiveKind())
	assert.Equal(t, "/tmp/ds", cfg.Output.DatasetDir)
	assert.Equal(t, 128, cfg.Tokenizer.MaxLength)
}

func TestLoadConfigWithEnvOverrides_Invalid(t *testing.T) {
	t.Setenv("SPANDETECT_ENCODER_WORKERS", "many")
	_, err := LoadConfigWithEnvOverrides("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPANDETECT_ENCODER_WORKERS")

	t.Setenv("SPANDETECT_ENCODER_WORKERS", "2")
	t.Setenv("SPANDETECT_ENCODER_TRAIN_RATIO", "2")
	_, err = LoadConfigWithEnvOverrides("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoder.train_ratio")
}
