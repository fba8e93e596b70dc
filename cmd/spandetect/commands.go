package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/melalex/unlp-2025-manipulation-detector/baseline"
	"github.com/melalex/unlp-2025-manipulation-detector/confusion"
	"github.com/melalex/unlp-2025-manipulation-detector/dataset"
	"github.com/melalex/unlp-2025-manipulation-detector/encoder"
	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/melalex/unlp-2025-manipulation-detector/metrics"
	"github.com/melalex/unlp-2025-manipulation-detector/report"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// EncodeCmd encodes a raw parquet file into train.parquet and test.parquet.
type EncodeCmd struct {
	Input     string   `arg:"" help:"Parquet file with content, trigger_words, lang and id columns." type:"existingfile"`
	OutDir    string   `help:"Output directory, defaults to output.dataset_dir." type:"path"`
	Languages []string `help:"Only keep documents in these languages, overrides encoder.language_filter."`
	NoSplit   bool     `help:"Encode every document into train.parquet, in input order."`
}

func (c *EncodeCmd) Run(g *Globals) error {
	cfg, err := g.LoadConfig()
	if err != nil {
		return err
	}
	tok, _, err := loadTokenizer(&cfg.Tokenizer)
	if err != nil {
		return err
	}
	opts := cfg.Encoder.Options()
	if len(c.Languages) > 0 {
		opts.LanguageFilter = c.Languages
	}
	if c.NoSplit {
		opts.SplitBeforeEncode = false
	}
	outDir := c.OutDir
	if outDir == "" {
		outDir = cfg.Output.DatasetDir
	}

	docs, err := dataset.LoadDocuments(c.Input)
	if err != nil {
		return err
	}
	splits, err := encoder.Prepare(context.Background(), docs, tok, opts)
	if err != nil {
		return err
	}
	if err := dataset.WriteEncoded(filepath.Join(outDir, "train.parquet"), splits.Train); err != nil {
		return err
	}
	if opts.SplitBeforeEncode {
		if err := dataset.WriteEncoded(filepath.Join(outDir, "test.parquet"), splits.Test); err != nil {
			return err
		}
	}
	fmt.Printf("encoded %d train and %d test documents into %s (%d filtered out by language)\n",
		len(splits.Train), len(splits.Test), outDir, splits.Filtered)
	return nil
}

// LogFlags are the flags of the commands that can append to the evaluation log.
type LogFlags struct {
	Log    bool   `help:"Append the results to the CSV evaluation log (output.report_path)."`
	Report string `help:"CSV evaluation log path, overrides output.report_path." type:"path"`
}

func (f *LogFlags) append(g *Globals, run string, r metrics.Report) error {
	if !f.Log && f.Report == "" {
		return nil
	}
	path := f.Report
	if path == "" {
		cfg, err := g.LoadConfig()
		if err != nil {
			return err
		}
		path = cfg.Output.ReportPath
	}
	return report.NewEvaluationLog(path).Append(context.Background(), run, r)
}

// EvaluateCmd scores a predictions file against an encoded split.
type EvaluateCmd struct {
	Encoded     string `arg:"" help:"Encoded split written by encode." type:"existingfile"`
	Predictions string `arg:"" help:"JSONL predictions: {id, labels|logits|entities} per line." type:"existingfile"`
	RunName     string `help:"Run name recorded in the evaluation log." default:"model"`
	LogFlags    `embed:""`
}

func (c *EvaluateCmd) Run(g *Globals) error {
	rows, err := dataset.ReadEncoded(c.Encoded)
	if err != nil {
		return err
	}
	predictions, err := readPredictionsFile(c.Predictions)
	if err != nil {
		return err
	}
	batch, err := alignPredictions(rows, predictions)
	if err != nil {
		return err
	}
	r, err := metrics.New(nil).Evaluate(batch.trueSeqs, batch.predicted)
	if err != nil {
		return err
	}
	if err := printJSON(r.Map()); err != nil {
		return err
	}
	return c.append(g, c.RunName, r)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "writing results")
}

// BaselineCmd scores the baseline predictors against an encoded split.
type BaselineCmd struct {
	Encoded  string   `arg:"" help:"Encoded split written by encode." type:"existingfile"`
	Names    []string `help:"Baselines to run." default:"all-zeros,all-ones,uniform,normal"`
	Seed     uint64   `help:"Seed of the random baselines." default:"42"`
	LogFlags `embed:""`
}

func (c *BaselineCmd) Run(g *Globals) error {
	rows, err := dataset.ReadEncoded(c.Encoded)
	if err != nil {
		return err
	}
	trueSeqs := make([][]labels.Label, len(rows))
	inputIDs := make([][]int, len(rows))
	for i := range rows {
		if trueSeqs[i], err = rows[i].LabelSequence(); err != nil {
			return err
		}
		inputIDs[i] = make([]int, len(rows[i].InputIDs))
		for j, id := range rows[i].InputIDs {
			inputIDs[i][j] = int(id)
		}
	}

	evaluator := metrics.New(nil)
	results := make(map[string]map[string]float64, len(c.Names))
	for _, name := range c.Names {
		predictor, err := baseline.New(name, c.Seed)
		if err != nil {
			return err
		}
		r, err := evaluator.EvaluateLogits(trueSeqs, predictor.Predict(inputIDs))
		if err != nil {
			return errors.WithMessagef(err, "baseline %s", name)
		}
		results[name] = r.Map()
		klog.V(1).Infof("baseline %s: span f1 %.4f, token f1 %.4f", name, r.Span.F1, r.Token.F1)
		if err := c.append(g, "baseline-"+name, r); err != nil {
			return err
		}
	}
	return printJSON(results)
}

// RenderFlags select the documents to render and how.
type RenderFlags struct {
	Encoded     string `arg:"" help:"Encoded split written by encode." type:"existingfile"`
	Predictions string `arg:"" help:"JSONL predictions: {id, labels|logits|entities} per line." type:"existingfile"`
	Scheme      string `help:"Continuation scheme (wordpiece, metaspace or bytelevel), overrides tokenizer.scheme."`
}

// annotate returns the batch with its confusion classes, and the scheme used.
func (f *RenderFlags) annotate(g *Globals) (*alignedBatch, [][]confusion.Class, confusion.Scheme, error) {
	cfg, err := g.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	scheme, err := resolveScheme(&cfg.Tokenizer, f.Scheme)
	if err != nil {
		return nil, nil, nil, err
	}
	rows, err := dataset.ReadEncoded(f.Encoded)
	if err != nil {
		return nil, nil, nil, err
	}
	predictions, err := readPredictionsFile(f.Predictions)
	if err != nil {
		return nil, nil, nil, err
	}
	batch, err := alignPredictions(rows, predictions)
	if err != nil {
		return nil, nil, nil, err
	}
	classes := make([][]confusion.Class, len(rows))
	for i := range rows {
		classes[i], err = confusion.Annotate(rows[i].Tokens, batch.trueSeqs[i], batch.predicted[i], scheme)
		if err != nil {
			return nil, nil, nil, errors.WithMessagef(err, "document %q", rows[i].ID)
		}
	}
	return batch, classes, scheme, nil
}

// VisualizeCmd appends the markdown rendering of every document to the visualization file.
type VisualizeCmd struct {
	RenderFlags `embed:""`
	Out         string `help:"Markdown file to append to, overrides output.visualization_path." type:"path"`
}

func (c *VisualizeCmd) Run(g *Globals) error {
	batch, classes, scheme, err := c.annotate(g)
	if err != nil {
		return err
	}
	entries := make([]report.Entry, len(batch.rows))
	for i, row := range batch.rows {
		body, err := confusion.RenderMarkdown(row.Tokens, classes[i], scheme)
		if err != nil {
			return errors.WithMessagef(err, "document %q", row.ID)
		}
		entries[i] = report.Entry{ID: row.ID, Body: body}
	}
	out := c.Out
	if out == "" {
		cfg, err := g.LoadConfig()
		if err != nil {
			return err
		}
		out = cfg.Output.VisualizationPath
	}
	if err := report.NewMarkdownWriter(out).Append(context.Background(), entries); err != nil {
		return err
	}
	fmt.Printf("appended %d documents to %s\n", len(entries), out)
	return nil
}

// ShowCmd prints one document to the terminal.
type ShowCmd struct {
	RenderFlags `embed:""`
	ID          string `help:"Document id, defaults to the first document of the split."`
}

func (c *ShowCmd) Run(g *Globals) error {
	batch, classes, scheme, err := c.annotate(g)
	if err != nil {
		return err
	}
	for i, row := range batch.rows {
		if c.ID != "" && row.ID != c.ID {
			continue
		}
		text, err := confusion.RenderTerminal(row.Tokens, classes[i], scheme)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n\n%s\n", row.ID, strings.TrimSpace(text), confusion.Legend())
		return nil
	}
	return errors.Errorf("document %q not found in %s", c.ID, c.Encoded)
}
