// Package dataset reads annotated documents from parquet files and writes encoded splits back
// to parquet.
//
// Input files follow the layout of the manipulation detection dataset: a `content` column, the
// annotated `trigger_words` as a list of [start, end) character offset pairs, and the `lang` and
// `id` of each document. Other columns are ignored.
package dataset

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/melalex/unlp-2025-manipulation-detector/encoder"
	"github.com/melalex/unlp-2025-manipulation-detector/labels"
	"github.com/melalex/unlp-2025-manipulation-detector/tokenizers/api"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
	"k8s.io/klog/v2"
)

// Record is one row of an input file.
type Record struct {
	ID           string    `parquet:"id,optional"`
	Content      string    `parquet:"content"`
	TriggerWords [][]int64 `parquet:"trigger_words,optional,list"`
	Lang         string    `parquet:"lang,optional"`
}

// Document converts the record to an encoder.Document: trigger word character offsets are
// converted to byte offsets of Content, and a record without id gets a random one.
func (r *Record) Document() (encoder.Document, error) {
	doc := encoder.Document{ID: r.ID, Content: r.Content, Language: r.Lang}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	for i, pair := range r.TriggerWords {
		if len(pair) != 2 {
			return doc, errors.Errorf("document %q: trigger word #%d has %d offsets, want 2", doc.ID, i, len(pair))
		}
		span, err := api.RuneSpanToByteSpan(r.Content, i, int(pair[0]), int(pair[1]))
		if err != nil {
			return doc, errors.WithMessagef(err, "document %q", doc.ID)
		}
		doc.Spans = append(doc.Spans, encoder.Span{Start: span.Start, End: span.End})
	}
	return doc, nil
}

// Documents converts all records, failing on the first invalid one.
func Documents(records []Record) ([]encoder.Document, error) {
	docs := make([]encoder.Document, len(records))
	for i := range records {
		var err error
		if docs[i], err = records[i].Document(); err != nil {
			return nil, errors.WithMessagef(err, "record #%d", i)
		}
	}
	return docs, nil
}

// File is a read-only memory mapped file.
type File struct {
	path   string
	reader *mmap.ReaderAt
}

// Open maps the file at path to memory.
func Open(path string) (*File, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %q", path)
	}
	return &File{path: path, reader: reader}, nil
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.reader.ReadAt(p, off)
}

// Size of the file in bytes.
func (f *File) Size() int64 {
	return int64(f.reader.Len())
}

// Close unmaps the file.
func (f *File) Close() error {
	return f.reader.Close()
}

// ReadRecords reads all the records of a parquet file.
func ReadRecords(r io.ReaderAt, size int64) ([]Record, error) {
	records, err := parquet.Read[Record](r, size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read records")
	}
	return records, nil
}

// LoadDocuments reads the parquet file at path and converts its records to documents.
func LoadDocuments(path string) ([]encoder.Document, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	records, err := ReadRecords(f, f.Size())
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %q", path)
	}
	klog.V(1).Infof("read %d records from %s", len(records), path)
	return Documents(records)
}

// EncodedRow is one row of an encoded split, as consumed by token classification training.
type EncodedRow struct {
	ID            string   `parquet:"id"`
	Lang          string   `parquet:"lang,optional"`
	Content       string   `parquet:"content"`
	InputIDs      []int32  `parquet:"input_ids,list"`
	AttentionMask []int32  `parquet:"attention_mask,list"`
	Labels        []int32  `parquet:"labels,list"`
	Tokens        []string `parquet:"tokens,list"`
}

// NewEncodedRow converts an encoded document to its parquet row.
func NewEncodedRow(e *encoder.Encoded) EncodedRow {
	row := EncodedRow{
		ID:            e.ID,
		Lang:          e.Language,
		Content:       e.Content,
		InputIDs:      make([]int32, len(e.Tokens)),
		AttentionMask: make([]int32, len(e.Tokens)),
		Labels:        labels.IDs(e.Labels),
		Tokens:        e.Pieces(),
	}
	for i, tok := range e.Tokens {
		row.InputIDs[i] = int32(tok.ID)
		row.AttentionMask[i] = 1
	}
	return row
}

// LabelSequence returns the labels of the row.
func (r *EncodedRow) LabelSequence() ([]labels.Label, error) {
	seq, err := labels.FromIDs(r.Labels)
	if err != nil {
		return nil, errors.WithMessagef(err, "document %q", r.ID)
	}
	return seq, nil
}

// WriteEncoded writes the encoded documents to a parquet file at path, creating its directory.
func WriteEncoded(path string, encoded []*encoder.Encoded) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %q", path)
	}
	rows := make([]EncodedRow, len(encoded))
	for i, e := range encoded {
		rows[i] = NewEncodedRow(e)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return errors.Wrapf(err, "writing %q", path)
	}
	klog.V(1).Infof("wrote %d encoded documents to %s", len(rows), path)
	return nil
}

// ReadEncoded reads an encoded split written by WriteEncoded.
func ReadEncoded(path string) ([]EncodedRow, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	rows, err := parquet.Read[EncodedRow](f, f.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return rows, nil
}
