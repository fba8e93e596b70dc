// spandetect prepares manipulation span detection datasets and evaluates token classification
// predictions against them.
//
// Usage:
//
//	spandetect encode data/raw/train.parquet
//	spandetect evaluate data/processed/test.parquet predictions.jsonl --log
//	spandetect baseline data/processed/test.parquet
//	spandetect visualize data/processed/test.parquet predictions.jsonl
//	spandetect show data/processed/test.parquet predictions.jsonl --id 0bd0b5c5
package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/melalex/unlp-2025-manipulation-detector/config"
	"k8s.io/klog/v2"
)

const version = "0.1.0"

// Globals are the flags shared by every command.
type Globals struct {
	Config    string `short:"c" help:"YAML configuration file." type:"path" env:"SPANDETECT_CONFIG"`
	Verbosity int    `short:"v" help:"Log verbosity level." default:"0"`
}

// LoadConfig loads the configuration file, with environment overrides.
func (g *Globals) LoadConfig() (*config.Config, error) {
	return config.LoadConfigWithEnvOverrides(g.Config)
}

// CLI defines the command-line interface of spandetect.
type CLI struct {
	Globals

	Encode    EncodeCmd    `cmd:"" help:"Encode annotated documents into train and test token classification splits."`
	Evaluate  EvaluateCmd  `cmd:"" help:"Score predicted labels against an encoded split."`
	Baseline  BaselineCmd  `cmd:"" help:"Score trivial predictors against an encoded split."`
	Visualize VisualizeCmd `cmd:"" help:"Append markdown confusion renderings of predictions."`
	Show      ShowCmd      `cmd:"" help:"Print the confusion rendering of one document to the terminal."`
	Version   VersionCmd   `cmd:"" help:"Print version information."`
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("spandetect version %s\n", version)
	return nil
}

func setupLogging(verbosity int) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	_ = fs.Set("v", strconv.Itoa(verbosity))
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("spandetect"),
		kong.Description("Manipulation span detection dataset and evaluation tools."),
		kong.UsageOnError(),
	)
	setupLogging(cli.Verbosity)
	defer klog.Flush()

	err := ctx.Run(&cli.Globals)
	if err != nil {
		klog.Errorf("%s failed: %+v", ctx.Command(), err)
	}
	ctx.FatalIfErrorf(err)
}
