package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetry = 5 * time.Millisecond

// File stores each document as <dir>/<name>.json, the layout the economy has
// always used on disk. A multi-document commit renames files one after the
// other; a crash between two renames leaves the earlier documents updated and
// the later ones not. There is no reconciliation for that window.
//
// Every document also has a <dir>/.<name>.lock file. Do holds an flock on it
// for the whole read-modify-write, so an API and a worker sharing the
// directory exclude each other the same way goroutines in one process do.
type File struct {
	dir   string
	locks lockSet
}

func OpenFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) Do(ctx context.Context, names []Name, fn func(rw ReadWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	release := f.locks.acquire(names)
	defer release()
	unlock, err := f.lockFiles(ctx, names)
	if err != nil {
		return err
	}
	defer unlock()

	st := newStaged(names, f.read)
	if err := fn(st); err != nil {
		return err
	}
	for _, n := range st.pending() {
		if err := f.writeAtomic(n, st.writes[n]); err != nil {
			return fmt.Errorf("write %s: %w", n, err)
		}
	}
	return nil
}

// lockFiles takes the per-document flocks in lockOrder.
func (f *File) lockFiles(ctx context.Context, names []Name) (func(), error) {
	var held []*flock.Flock
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Unlock()
		}
	}
	for _, n := range lockOrder(names) {
		fl := flock.New(filepath.Join(f.dir, "."+string(n)+".lock"))
		ok, err := fl.TryLockContext(ctx, lockRetry)
		if err == nil && !ok {
			err = ctx.Err()
		}
		if err != nil {
			unlock()
			return nil, fmt.Errorf("lock %s: %w", n, err)
		}
		held = append(held, fl)
	}
	return unlock, nil
}

func (f *File) path(name Name) string {
	return filepath.Join(f.dir, string(name)+".json")
}

func (f *File) read(_ context.Context, name Name) ([]byte, error) {
	raw, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (f *File) writeAtomic(name Name, body []byte) error {
	tmp, err := os.CreateTemp(f.dir, "."+string(name)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path(name))
}

func (f *File) Close() error { return nil }
