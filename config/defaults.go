package config

// Default values for configuration fields.
const (
	DefaultMaxLength = 512

	DefaultTrainRatio        = 0.9
	DefaultSeed              = 42
	DefaultExcludeTail       = true
	DefaultSplitBeforeEncode = true

	DefaultDatasetDir        = "data/processed"
	DefaultVisualizationPath = "reports/visualization.md"
	DefaultReportPath        = "reports/evaluation.csv"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills the fields left unset.
func ApplyDefaults(cfg *Config) {
	if cfg.Tokenizer.MaxLength == 0 {
		cfg.Tokenizer.MaxLength = DefaultMaxLength
	}

	if cfg.Encoder.TrainRatio == 0 {
		cfg.Encoder.TrainRatio = DefaultTrainRatio
	}
	if cfg.Encoder.Seed == nil {
		seed := uint64(DefaultSeed)
		cfg.Encoder.Seed = &seed
	}
	if cfg.Encoder.ExcludeTail == nil {
		excludeTail := DefaultExcludeTail
		cfg.Encoder.ExcludeTail = &excludeTail
	}
	if cfg.Encoder.SplitBeforeEncode == nil {
		split := DefaultSplitBeforeEncode
		cfg.Encoder.SplitBeforeEncode = &split
	}

	if cfg.Output.DatasetDir == "" {
		cfg.Output.DatasetDir = DefaultDatasetDir
	}
	if cfg.Output.VisualizationPath == "" {
		cfg.Output.VisualizationPath = DefaultVisualizationPath
	}
	if cfg.Output.ReportPath == "" {
		cfg.Output.ReportPath = DefaultReportPath
	}
}
