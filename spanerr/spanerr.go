// Package spanerr defines the errors shared by the span label encoder, the metrics
// evaluator and the confusion annotator.
//
// Every error type unwraps to one of the sentinel errors, so callers can test
// with errors.Is(err, spanerr.ErrAlignment) without caring which component failed.
package spanerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpan indicates span coordinates outside of the document or with start >= end.
	ErrInvalidSpan = errors.New("invalid span")
	// ErrAlignment indicates two sequences that must be positionally aligned have different lengths.
	ErrAlignment = errors.New("alignment error")
	// ErrEmptyBatch indicates there was nothing left to score after masking.
	ErrEmptyBatch = errors.New("empty batch")
)

// InvalidSpanError reports an annotated span that can't be mapped onto its document.
type InvalidSpanError struct {
	Index  int // Position of the span in the document's span list.
	Start  int
	End    int
	Length int // Length of the document in the span's coordinate system.
}

func (e *InvalidSpanError) Error() string {
	return fmt.Sprintf("invalid span #%d [%d, %d) for document of length %d", e.Index, e.Start, e.End, e.Length)
}

func (e *InvalidSpanError) Unwrap() error {
	return ErrInvalidSpan
}

// AlignmentError reports a length mismatch between sequences that must line up one to one.
type AlignmentError struct {
	What     string // e.g. "true/predicted labels" or "token spans/word ids"
	Document int    // Index of the document in its batch, -1 if not applicable.
	Want     int
	Got      int
}

func (e *AlignmentError) Error() string {
	if e.Document >= 0 {
		return fmt.Sprintf("%s misaligned in document #%d: want %d, got %d", e.What, e.Document, e.Want, e.Got)
	}
	return fmt.Sprintf("%s misaligned: want %d, got %d", e.What, e.Want, e.Got)
}

func (e *AlignmentError) Unwrap() error {
	return ErrAlignment
}

// EmptyBatchWarning is non-fatal: a batch had no scorable positions and all metrics fell back to 0.
type EmptyBatchWarning struct {
	Documents int
}

func (e *EmptyBatchWarning) Error() string {
	return fmt.Sprintf("no scorable positions in batch of %d documents, metrics default to 0", e.Documents)
}

func (e *EmptyBatchWarning) Unwrap() error {
	return ErrEmptyBatch
}
