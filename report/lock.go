// Package report appends evaluation artifacts to files shared between runs: the markdown
// confusion visualization and the CSV evaluation log.
//
// Writers to the same artifact, in this or other processes, are serialized with a lock file
// next to it (path + ".lock"). Files are only ever appended to.
package report

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// execOnFileLock runs fn while holding an exclusive lock on lockPath.
// The lock is released even if fn panics.
func execOnFileLock(ctx context.Context, lockPath string, fn func() error) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		// Wait from 50 to 100 milliseconds.
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for lock %q", lockPath)
		case <-time.After(time.Millisecond * time.Duration(50+rand.IntN(50))):
		}
	}

	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil && err == nil {
			err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
		}
	}()
	return fn()
}

// appendLocked opens path for appending, creating it and its parent directories if needed,
// and calls write with the file while holding the artifact lock.
// The file is closed on every path, and a close error is reported if write succeeded.
func appendLocked(ctx context.Context, path string, write func(f *os.File) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating directory for %q", path)
		}
	}
	return execOnFileLock(ctx, path+".lock", func() (err error) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrapf(err, "opening %q for append", path)
		}
		defer func() {
			closeErr := f.Close()
			if closeErr != nil && err == nil {
				err = errors.Wrapf(closeErr, "closing %q", path)
			}
		}()
		return write(f)
	})
}
