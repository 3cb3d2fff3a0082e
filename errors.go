package diskcache

import "errors"

// ErrInvalidKey is returned when a key does not match the grammar
// [a-z0-9_-]{1,120}. It is returned synchronously from every public
// operation before any state is touched.
var ErrInvalidKey = errors.New("diskcache: invalid key")

// ErrEditInProgress is returned when a caller tries to edit a key that
// already has a live WriterHandle, or removes a key that is currently
// being edited. It signals a programmer-visible race, not a routine
// condition, and is never absorbed internally.
var ErrEditInProgress = errors.New("diskcache: edit already in progress for key")

// ErrWriterClosed is returned by WriterHandle methods called after the
// handle has already reached a terminal state (committed or aborted).
var ErrWriterClosed = errors.New("diskcache: writer already closed")

// ErrStaleWriter is returned when a WriterHandle's terminal call finds
// that the engine's current writer for its key is no longer this
// handle. Two concurrent editors were started for the same key; this
// closes the race window instead of silently reconciling it.
var ErrStaleWriter = errors.New("diskcache: writer is no longer current for key")

// ErrOnUIThread is returned by Open and Cache.Close when invoked from
// the thread the embedder designated as its UI thread.
var ErrOnUIThread = errors.New("diskcache: must not be called from the UI thread")
