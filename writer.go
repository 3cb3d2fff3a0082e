package diskcache

import (
	"sync"

	"github.com/calvinalkan/diskcache/internal/fsx"
)

type writerState int

const (
	writerOpen writerState = iota
	writerCommitted
	writerAborted
)

// WriterHandle is a write-open stream over an entry's dirty file.
//
// Writes are silently tolerant of I/O errors: a failed write sets an
// internal flag instead of returning an error, because by the time a
// caller is midway through producing bytes there is nothing useful it
// can do except finish and let Commit report the failure. Commit and
// Abort are terminal; either may run exactly once, and every call after
// the first returns [ErrWriterClosed].
type WriterHandle struct {
	cache *Cache
	key   string

	mu        sync.Mutex
	file      fsx.File
	state     writerState
	hasErrors bool
}

// Write appends p to the dirty file. While the handle is open it always
// reports len(p) written and a nil error; a failing write is recorded
// internally and surfaces only when Commit is called. After Commit or
// Abort, Write returns [ErrWriterClosed].
func (w *WriterHandle) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != writerOpen {
		return 0, ErrWriterClosed
	}

	if _, err := w.file.Write(p); err != nil {
		w.hasErrors = true
	}

	return len(p), nil
}

// Commit closes the dirty file and, if no write ever failed, publishes
// it as the entry's new clean file. It returns false if the edit
// produced no usable bytes (some write failed) or the writer's own
// file close failed; in that case the entry is abandoned as if aborted.
//
// Commit returns [ErrWriterClosed] if already terminal, or
// [ErrStaleWriter] if a second editor somehow raced this one for the
// same key.
func (w *WriterHandle) Commit() (bool, error) {
	w.mu.Lock()

	if w.state != writerOpen {
		w.mu.Unlock()
		return false, ErrWriterClosed
	}

	w.state = writerCommitted
	closeErr := w.file.Close()
	failed := w.hasErrors || closeErr != nil
	w.mu.Unlock()

	if failed {
		if err := w.cache.abortThenRemove(w); err != nil {
			return false, err
		}

		return false, nil
	}

	return w.cache.commitWriter(w)
}

// Abort closes the dirty file and discards it without publishing
// anything. It returns [ErrWriterClosed] if already terminal, or
// [ErrStaleWriter] if a second editor somehow raced this one.
func (w *WriterHandle) Abort() error {
	w.mu.Lock()

	if w.state != writerOpen {
		w.mu.Unlock()
		return ErrWriterClosed
	}

	w.state = writerAborted
	_ = w.file.Close()
	w.mu.Unlock()

	return w.cache.abortWriter(w)
}

// AbortUnlessCommitted aborts the writer if it has not already reached
// a terminal state. It is the idempotent safety net callers defer right
// after Edit succeeds, so a panicking or early-returning caller never
// leaves a dirty file and a live writer slot behind.
func (w *WriterHandle) AbortUnlessCommitted() {
	w.mu.Lock()
	done := w.state != writerOpen
	w.mu.Unlock()

	if done {
		return
	}

	_ = w.Abort()
}
