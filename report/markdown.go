package report

import (
	"bufio"
	"context"
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Entry is one document of the markdown visualization.
type Entry struct {
	ID string
	// Body is the rendered token sequence, see confusion.RenderMarkdown.
	Body string
}

// MarkdownWriter appends confusion visualizations to a markdown file.
type MarkdownWriter struct {
	Path string
}

// NewMarkdownWriter returns a writer appending to path.
func NewMarkdownWriter(path string) *MarkdownWriter {
	return &MarkdownWriter{Path: path}
}

// Append writes each entry as "<id><br><body>" followed by a blank line.
func (w *MarkdownWriter) Append(ctx context.Context, entries []Entry) error {
	err := appendLocked(ctx, w.Path, func(f *os.File) error {
		buf := bufio.NewWriter(f)
		for _, e := range entries {
			if _, err := buf.WriteString(e.ID + "<br>" + e.Body + "\n\n"); err != nil {
				return errors.Wrapf(err, "writing entry %q", e.ID)
			}
		}
		return errors.Wrapf(buf.Flush(), "writing to %q", w.Path)
	})
	if err != nil {
		return err
	}
	klog.V(1).Infof("appended %d entries to %s", len(entries), w.Path)
	return nil
}
