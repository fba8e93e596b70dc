package report

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/melalex/unlp-2025-manipulation-detector/metrics"
	"github.com/pkg/errors"
)

// Columns of the evaluation log. The file has no header row.
var Columns = []string{
	"timestamp",
	"run",
	"eval_precision",
	"eval_recall",
	"eval_f1",
	"eval_accuracy",
	"eval_token_precision",
	"eval_token_recall",
	"eval_token_f1",
	"eval_token_accuracy",
	"eval_support",
}

// Row is one evaluation of the log.
type Row struct {
	Timestamp time.Time
	Run       string
	Report    metrics.Report
}

func (r Row) record() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		r.Timestamp.Format(time.RFC3339),
		r.Run,
		f(r.Report.Span.Precision),
		f(r.Report.Span.Recall),
		f(r.Report.Span.F1),
		f(r.Report.Span.Accuracy),
		f(r.Report.Token.Precision),
		f(r.Report.Token.Recall),
		f(r.Report.Token.F1),
		f(r.Report.Token.Accuracy),
		strconv.Itoa(r.Report.Support),
	}
}

func parseRow(record []string) (row Row, err error) {
	if len(record) != len(Columns) {
		return row, errors.Errorf("want %d columns, got %d", len(Columns), len(record))
	}
	if row.Timestamp, err = time.Parse(time.RFC3339, record[0]); err != nil {
		return row, errors.Wrap(err, "timestamp")
	}
	row.Run = record[1]
	targets := []*float64{
		&row.Report.Span.Precision, &row.Report.Span.Recall, &row.Report.Span.F1, &row.Report.Span.Accuracy,
		&row.Report.Token.Precision, &row.Report.Token.Recall, &row.Report.Token.F1, &row.Report.Token.Accuracy,
	}
	for i, target := range targets {
		if *target, err = strconv.ParseFloat(record[2+i], 64); err != nil {
			return row, errors.Wrapf(err, "column %s", Columns[2+i])
		}
	}
	if row.Report.Support, err = strconv.Atoi(record[len(record)-1]); err != nil {
		return row, errors.Wrap(err, "column eval_support")
	}
	return row, nil
}

// EvaluationLog is an append-only CSV file of evaluation results.
type EvaluationLog struct {
	Path string

	// now is replaced in tests.
	now func() time.Time
}

// NewEvaluationLog returns the log stored at path.
func NewEvaluationLog(path string) *EvaluationLog {
	return &EvaluationLog{Path: path, now: time.Now}
}

// Append adds one row for report, timestamped now.
func (l *EvaluationLog) Append(ctx context.Context, run string, report metrics.Report) error {
	row := Row{Timestamp: l.now().UTC(), Run: run, Report: report}
	return appendLocked(ctx, l.Path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write(row.record()); err != nil {
			return errors.Wrapf(err, "writing to %q", l.Path)
		}
		w.Flush()
		return errors.Wrapf(w.Error(), "writing to %q", l.Path)
	})
}

// Read returns all the rows of the log, oldest first. A missing log has no rows.
func (l *EvaluationLog) Read() ([]Row, error) {
	f, err := os.Open(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", l.Path)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)
	var rows []Row
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %q", l.Path)
		}
		row, err := parseRow(record)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s:%d", l.Path, line)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
