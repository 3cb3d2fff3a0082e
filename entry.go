package diskcache

import (
	"path/filepath"
	"sync"
)

// entry is the engine's per-key bookkeeping record. It is never exposed
// outside the package; callers only ever see a ReaderHandle, a
// WriterHandle, or a bool.
//
// The entry's own mutex guards currentWriter exclusively, per the
// read-check-write requirement on concurrent edit/commit/abort calls.
// Once the cache is open, lengthBytes and readable are only mutated while
// the cache's map lock is held (journal replay during Open sets them
// before the cache is shared), mirroring the teacher's convention of nesting a narrow
// per-record lock inside a coarser collection lock instead of sharing
// one lock for both.
type entry struct {
	key string

	cleanPath string
	dirtyPath string

	lengthBytes int64
	readable    bool

	mu            sync.Mutex
	currentWriter *WriterHandle
}

func newEntry(dir, key string) *entry {
	return &entry{
		key:       key,
		cleanPath: filepath.Join(dir, key+".clean"),
		dirtyPath: filepath.Join(dir, key+".tmp"),
	}
}

// setWriter installs w as the entry's live writer iff none is live.
// Returns false without mutating state if a writer is already present.
func (e *entry) setWriter(w *WriterHandle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentWriter != nil {
		return false
	}

	e.currentWriter = w

	return true
}

// clearWriterIfCurrent clears currentWriter iff it still equals w,
// comparing pointer identity. Returns false if w is stale.
func (e *entry) clearWriterIfCurrent(w *WriterHandle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentWriter != w {
		return false
	}

	e.currentWriter = nil

	return true
}

func (e *entry) hasLiveWriter() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.currentWriter != nil
}

func (e *entry) isCurrentWriter(w *WriterHandle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.currentWriter == w
}
