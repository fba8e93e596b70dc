package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/melalex/unlp-2025-manipulation-detector/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownWriter_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "visualization.md")
	w := NewMarkdownWriter(path)
	ctx := context.Background()

	require.NoError(t, w.Append(ctx, []Entry{{ID: "a", Body: " one"}, {ID: "b", Body: " two"}}))
	require.NoError(t, w.Append(ctx, []Entry{{ID: "c", Body: "<mark style='background-color:green'> три</mark>"}}))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a<br> one\n\nb<br> two\n\nc<br><mark style='background-color:green'> три</mark>\n\n", string(contents))
}

func TestMarkdownWriter_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visualization.md")
	const writers, perWriter = 8, 20

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := NewMarkdownWriter(path)
			entries := make([]Entry, perWriter)
			for j := range entries {
				entries[j] = Entry{ID: fmt.Sprintf("w%d-%d", i, j), Body: strings.Repeat("x", 100)}
			}
			assert.NoError(t, w.Append(context.Background(), entries))
		}()
	}
	wg.Wait()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	blocks := strings.Split(strings.TrimSuffix(string(contents), "\n\n"), "\n\n")
	require.Len(t, blocks, writers*perWriter)

	// Entries of one Append are never interleaved with another's.
	for start := 0; start < len(blocks); start += perWriter {
		writer := strings.SplitN(blocks[start], "-", 2)[0]
		for j := range perWriter {
			assert.Equal(t, fmt.Sprintf("%s-%d<br>%s", writer, j, strings.Repeat("x", 100)), blocks[start+j])
		}
	}
}

func TestExecOnFileLock_Cancelled(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "held.lock")
	release := make(chan struct{})
	acquired := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- execOnFileLock(context.Background(), lockPath, func() error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	called := false
	err := execOnFileLock(ctx, lockPath, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)

	close(release)
	require.NoError(t, <-done)
}

func TestEvaluationLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval", "report.csv")
	log := NewEvaluationLog(path)
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	log.now = func() time.Time { return now }

	rows, err := log.Read()
	require.NoError(t, err)
	assert.Empty(t, rows)

	first := metrics.Report{
		Token:   metrics.Scores{Precision: 0.5, Recall: 0.25, F1: 1.0 / 3.0, Accuracy: 0.9},
		Span:    metrics.Scores{Precision: 0.1, Recall: 0.2, F1: 0.3, Accuracy: 0.4},
		Support: 1234,
	}
	ctx := context.Background()
	require.NoError(t, log.Append(ctx, "xlm-roberta, epoch 3", first))
	now = now.Add(time.Hour)
	require.NoError(t, log.Append(ctx, "all-zeros", metrics.Report{}))

	rows, err = log.Read()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Timestamp.Equal(time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)))
	assert.Equal(t, "xlm-roberta, epoch 3", rows[0].Run)
	assert.Equal(t, first, rows[0].Report)
	assert.Equal(t, "all-zeros", rows[1].Run)
	assert.True(t, rows[1].Timestamp.After(rows[0].Timestamp))
}

func TestEvaluationLog_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	line := "2025-03-14T15:09:26Z,run,x,0,0,0,0,0,0,0,0\n"
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))
	_, err := NewEvaluationLog(path).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eval_precision")
}
