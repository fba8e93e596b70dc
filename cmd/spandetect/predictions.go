package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/melalex/unlp-2025-manipulation-detector/confusion"
	"github.com/melalex/unlp-2025-manipulation-detector/dataset"
	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/pkg/errors"
)

// Prediction is one line of a predictions JSONL file. Exactly one of Labels, Logits or
// Entities is expected; they are tried in that order.
type Prediction struct {
	ID       string             `json:"id"`
	Labels   []int              `json:"labels,omitempty"`
	Logits   [][]float32        `json:"logits,omitempty"`
	Entities []confusion.Entity `json:"entities,omitempty"`
}

// LabelSequence returns the predicted labels for a document of n tokens.
func (p *Prediction) LabelSequence(n int) ([]labels.Label, error) {
	switch {
	case p.Labels != nil:
		return labels.FromIDs(p.Labels)
	case p.Logits != nil:
		return labels.ArgMax(p.Logits), nil
	default:
		return confusion.PredictionsFromEntities(p.Entities, n)
	}
}

// ReadPredictions reads a predictions JSONL stream, keyed by document id.
func ReadPredictions(r io.Reader) (map[string]*Prediction, error) {
	predictions := make(map[string]*Prediction)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		p := &Prediction{}
		if err := json.Unmarshal(scanner.Bytes(), p); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if p.ID == "" {
			return nil, errors.Errorf("line %d: missing document id", line)
		}
		if _, found := predictions[p.ID]; found {
			return nil, errors.Errorf("line %d: duplicated predictions for document %q", line, p.ID)
		}
		predictions[p.ID] = p
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading predictions")
	}
	return predictions, nil
}

func readPredictionsFile(path string) (map[string]*Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening predictions %q", path)
	}
	defer func() { _ = f.Close() }()
	predictions, err := ReadPredictions(f)
	return predictions, errors.WithMessagef(err, "reading %q", path)
}

// alignedBatch holds the reference and predicted labels of the documents of an encoded split.
type alignedBatch struct {
	rows      []dataset.EncodedRow
	trueSeqs  [][]labels.Label
	predicted [][]labels.Label
}

// alignPredictions matches every row with its predictions. Rows without predictions are an error.
func alignPredictions(rows []dataset.EncodedRow, predictions map[string]*Prediction) (*alignedBatch, error) {
	batch := &alignedBatch{
		rows:      rows,
		trueSeqs:  make([][]labels.Label, len(rows)),
		predicted: make([][]labels.Label, len(rows)),
	}
	for i := range rows {
		row := &rows[i]
		var err error
		if batch.trueSeqs[i], err = row.LabelSequence(); err != nil {
			return nil, err
		}
		p, found := predictions[row.ID]
		if !found {
			return nil, errors.Errorf("no predictions for document %q", row.ID)
		}
		if batch.predicted[i], err = p.LabelSequence(len(row.InputIDs)); err != nil {
			return nil, errors.WithMessagef(err, "predictions for document %q", row.ID)
		}
	}
	return batch, nil
}
