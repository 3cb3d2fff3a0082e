// Package diskcache implements a bounded, journaled, LRU disk cache: a
// directory of <key>.clean files with an append-only journal for
// crash-safe recovery, eviction under byte and entry-count budgets, and
// reader/writer stream handles over the individual entries.
package diskcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/calvinalkan/diskcache/internal/fsx"
)

// DefaultMaxBytes is the byte budget a cache uses when callers want the
// stock limit rather than tuning it themselves.
const DefaultMaxBytes int64 = 30 * 1024 * 1024

// DefaultMaxCount is the entry-count budget a cache uses when callers
// want the stock limit rather than tuning it themselves.
const DefaultMaxCount = 1000

// OpenOption configures optional behavior not carried by Open's
// required parameters.
type OpenOption func(*Cache)

// WithUIThreadCheck installs a predicate the cache asks, at construction
// and at Close, whether it is currently executing on the embedder's
// designated UI thread. If it ever answers true, the call fails with
// [ErrOnUIThread] instead of doing blocking file I/O there. A nil or
// never-installed predicate disables the check.
func WithUIThreadCheck(isUIThread func() bool) OpenOption {
	return func(c *Cache) {
		c.isUIThread = isUIThread
	}
}

// withFS overrides the filesystem implementation, used by tests to
// substitute [fsx.Chaos] for fault injection.
func withFS(fs fsx.FS) OpenOption {
	return func(c *Cache) {
		c.fs = fs
	}
}

// Cache is a bounded, journaled, LRU disk cache over one directory.
//
// Multiple goroutines may call Cache's methods concurrently. Journal
// writes are serialized through the [SerialExecutor] supplied to Open;
// evictions run on an internal single-slot executor. No method other
// than Close blocks the caller on that background work.
type Cache struct {
	dir  string
	stub bool
	fs   fsx.FS

	maxCount   int
	isUIThread func() bool

	st stats

	muIndex sync.Mutex
	index   *lruIndex

	muRetry   sync.Mutex
	retryList []*entry

	executor SerialExecutor
	trim     *trimExecutor

	j *journal
}

// Open constructs a cache over dir, replaying or discarding its journal
// as described in the directory-reconciliation rules, and returns a
// ready-to-use Cache.
//
// A zero dir, zero maxBytes, or zero maxCount puts the cache into
// degenerate (stub) mode: Has always reports false, Get and Edit always
// return absent, Remove and Flush are no-ops, and no journal is ever
// created. This lets an embedder wire a disk cache unconditionally and
// simply pass an empty configuration to disable it.
//
// executor must actually run submitted tasks for the cache to make
// progress; Open does not start one on the caller's behalf, mirroring
// the "caller-supplied single-slot FIFO executor" requirement.
func Open(dir string, maxBytes, maxCount int64, executor SerialExecutor, opts ...OpenOption) (*Cache, error) {
	c := &Cache{
		dir:      dir,
		maxCount: int(maxCount),
		fs:       fsx.NewReal(),
		index:    newLRUIndex(),
		executor: executor,
	}
	c.st.maxBytes.Store(maxBytes)

	for _, opt := range opts {
		opt(c)
	}

	if c.isUIThread != nil && c.isUIThread() {
		return nil, ErrOnUIThread
	}

	if dir == "" || maxBytes == 0 || maxCount == 0 || executor == nil {
		c.stub = true
		return c, nil
	}

	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	// Held only across reconciliation (backup promotion, journal replay
	// and any corruption sweep), so a second process opening the same
	// directory gets a clear lock timeout instead of racing the corruption
	// sweep. Later journal rebuilds run without it.
	lock, err := c.fs.Lock(filepath.Join(dir, journalName))
	if err != nil {
		return nil, fmt.Errorf("locking cache directory: %w", err)
	}
	defer lock.Close()

	j, err := reconcile(c.fs, dir, c.index, &c.st)
	if err != nil {
		return nil, fmt.Errorf("reconciling cache directory: %w", err)
	}

	c.j = j
	c.trim = newTrimExecutor(c.trimPass)

	return c, nil
}

// Has reports whether key names a readable entry whose clean file
// currently exists on disk. The check does not move key in LRU order.
//
// Because eviction can run concurrently, a true result is only
// advisory: a subsequent Get may still miss.
func (c *Cache) Has(key string) (bool, error) {
	if !validKey(key) {
		return false, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if c.stub {
		return false, nil
	}

	c.muIndex.Lock()
	e, ok := c.index.get(key)
	c.muIndex.Unlock()

	if !ok || !e.readable {
		return false, nil
	}

	exists, err := c.fs.Exists(e.cleanPath)

	return exists && err == nil, nil
}

// Get opens a reader over key's committed bytes, bumping key to
// most-recently-used and counting a hit. It returns (nil, nil) if the
// key is absent, unreadable, or its clean file fails to open — none of
// those are errors, only ErrInvalidKey is.
func (c *Cache) Get(key string) (*ReaderHandle, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if c.stub {
		return nil, nil
	}

	c.muIndex.Lock()
	e, ok := c.index.get(key)
	if ok && e.readable {
		c.index.touch(e)
	}
	c.muIndex.Unlock()

	if !ok || !e.readable {
		c.st.miss()
		return nil, nil
	}

	f, err := c.fs.Open(e.cleanPath)
	if err != nil {
		c.st.miss()
		return nil, nil
	}

	c.st.hit()

	return &ReaderHandle{file: f, length: e.lengthBytes}, nil
}

// Edit opens a writer for key, creating its entry if absent. Only one
// writer may be live per key at a time; a second concurrent Edit call
// for the same key fails with [ErrEditInProgress] rather than queuing
// or silently returning the existing writer.
//
// Edit returns (nil, nil) if the cache is in stub mode or the dirty
// file could not be created even after one directory-recreation retry.
func (c *Cache) Edit(key string) (*WriterHandle, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if c.stub {
		return nil, nil
	}

	// The get-or-create and index insertion happen under the same lock
	// acquisition so two concurrent Edit calls on a brand-new key race
	// on one shared entry object's own mutex, not on two independent
	// ones - otherwise both could believe they are the sole writer.
	c.muIndex.Lock()
	e, ok := c.index.get(key)
	if !ok {
		e = newEntry(c.dir, key)
		c.index.touch(e)
	}
	c.muIndex.Unlock()

	w := &WriterHandle{cache: c, key: key}
	if !e.setWriter(w) {
		return nil, fmt.Errorf("%w: %q", ErrEditInProgress, key)
	}

	f, err := c.fs.OpenFile(e.dirtyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		if mkErr := c.fs.MkdirAll(c.dir, 0o755); mkErr == nil {
			f, err = c.fs.OpenFile(e.dirtyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		}
	}

	if err != nil {
		e.clearWriterIfCurrent(w)
		c.dropIfUnreadable(e)

		return nil, nil
	}

	w.file = f

	c.muIndex.Lock()
	c.index.touch(e)
	c.muIndex.Unlock()

	c.executor.Submit(func() {
		_ = c.j.appendDirty(key)
		c.maybeRebuildLocked()
	})

	return w, nil
}

// Remove deletes key's entry. The clean file is removed best-effort: a
// failed delete parks the entry on the retry list instead of losing
// track of the still-counted bytes. Remove fails with
// [ErrEditInProgress] if key currently has a live writer.
func (c *Cache) Remove(key string) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if c.stub {
		return nil
	}

	c.muIndex.Lock()
	e, ok := c.index.get(key)
	if !ok {
		c.muIndex.Unlock()
		return nil
	}

	if e.hasLiveWriter() {
		c.muIndex.Unlock()
		return fmt.Errorf("%w: %q", ErrEditInProgress, key)
	}

	c.index.remove(key)
	c.muIndex.Unlock()

	c.deleteCleanFile(e)

	return nil
}

// Flush synchronously evicts down to the current budgets and, if the
// journal has crossed its rebuild threshold, compacts it.
func (c *Cache) Flush() error {
	if c.stub {
		return nil
	}

	c.trimPass()

	return c.rebuildIfNeededSync()
}

// Close runs a final synchronous eviction pass, unconditionally
// compacts the journal, closes it, and stops the internal trim
// executor. It must not be called from the embedder's UI thread.
func (c *Cache) Close() error {
	if c.isUIThread != nil && c.isUIThread() {
		return ErrOnUIThread
	}

	if c.stub {
		return nil
	}

	c.trimPass()

	if c.trim != nil {
		c.trim.close()
	}

	var rebuildErr error

	done := make(chan struct{})
	c.executor.Submit(func() {
		defer close(done)
		rebuildErr = c.j.rebuild(c.snapshotJournalLines())
	})
	<-done

	if closeErr := c.j.close(); closeErr != nil && rebuildErr == nil {
		rebuildErr = closeErr
	}

	return rebuildErr
}

// SetMaxBytes updates the byte budget and schedules an eviction pass.
// Raising the limit still schedules a trim, which will be a practical
// no-op, to preserve the invariant that every limit change is followed
// by a trim attempt.
func (c *Cache) SetMaxBytes(n int64) {
	c.st.maxBytes.Store(n)

	if c.trim != nil {
		c.trim.schedule()
	}
}

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.muIndex.Lock()
	defer c.muIndex.Unlock()

	return c.index.len()
}

// SizeBytes returns the sum of length_bytes over all readable entries.
func (c *Cache) SizeBytes() int64 {
	return c.st.sizeBytes.Load()
}

// MaxBytes returns the current byte budget.
func (c *Cache) MaxBytes() int64 {
	return c.st.maxBytes.Load()
}

// MaxCount returns the entry-count budget.
func (c *Cache) MaxCount() int {
	return c.maxCount
}

// Stats returns a snapshot of the cache's size and hit-rate counters.
func (c *Cache) Stats() Stats {
	return Stats{
		MaxBytes:  c.MaxBytes(),
		MaxCount:  c.maxCount,
		SizeBytes: c.SizeBytes(),
		Count:     c.Len(),
		Hits:      c.st.hits.Load(),
		Misses:    c.st.misses.Load(),
	}
}

// String renders the cache's stats snapshot.
func (c *Cache) String() string {
	return c.Stats().String()
}

// commitWriter runs the engine side of the commit protocol (§4.1.2) for
// a writer whose file has already been closed successfully.
func (c *Cache) commitWriter(w *WriterHandle) (bool, error) {
	c.muIndex.Lock()
	e, ok := c.index.get(w.key)
	c.muIndex.Unlock()

	if !ok {
		return false, fmt.Errorf("commit: %w", ErrStaleWriter)
	}

	if !e.isCurrentWriter(w) {
		return false, ErrStaleWriter
	}

	exists, err := c.fs.Exists(e.dirtyPath)
	if err != nil {
		exists = false
	}

	if !exists {
		e.clearWriterIfCurrent(w)
		c.dropIfUnreadable(e)

		return false, nil
	}

	if err := c.fs.Rename(e.dirtyPath, e.cleanPath); err != nil {
		if abortErr := c.runAbort(e, w); abortErr != nil {
			return false, abortErr
		}

		c.muIndex.Lock()
		c.index.remove(e.key)
		c.muIndex.Unlock()

		if e.readable {
			c.deleteCleanFile(e)
		}

		return false, nil
	}

	info, statErr := c.fs.Stat(e.cleanPath)

	var newLength int64
	if statErr == nil {
		newLength = info.Size()
	}

	c.muIndex.Lock()
	oldLength := e.lengthBytes
	e.lengthBytes = newLength
	e.readable = true
	c.index.touch(e)
	c.muIndex.Unlock()

	e.clearWriterIfCurrent(w)
	c.st.addSize(newLength - oldLength)

	c.executor.Submit(func() {
		_ = c.j.appendClean(w.key, newLength)
		c.maybeRebuildLocked()
	})

	c.scheduleTrimIfOverBudget()

	return true, nil
}

// scheduleTrimIfOverBudget schedules an async eviction pass if the
// cache is currently over either budget, per the "after every
// commit/abort" trigger point.
func (c *Cache) scheduleTrimIfOverBudget() {
	c.muIndex.Lock()
	over := c.st.sizeBytes.Load() > c.st.maxBytes.Load() || c.index.len() > c.maxCount
	c.muIndex.Unlock()

	if over {
		c.trim.schedule()
	}
}

// abortThenRemove implements WriterHandle.Commit's failure path: the
// write produced no usable bytes, so the engine aborts the in-progress
// edit and discards the entry entirely, not just the dirty file.
func (c *Cache) abortThenRemove(w *WriterHandle) error {
	c.muIndex.Lock()
	e, ok := c.index.get(w.key)
	c.muIndex.Unlock()

	if !ok {
		return nil
	}

	if err := c.runAbort(e, w); err != nil {
		return err
	}

	c.muIndex.Lock()
	c.index.remove(e.key)
	c.muIndex.Unlock()

	if e.readable {
		c.deleteCleanFile(e)
	}

	return nil
}

// abortWriter runs the engine side of WriterHandle.Abort.
func (c *Cache) abortWriter(w *WriterHandle) error {
	c.muIndex.Lock()
	e, ok := c.index.get(w.key)
	c.muIndex.Unlock()

	if !ok {
		return nil
	}

	return c.runAbort(e, w)
}

// runAbort deletes the dirty file best-effort, clears the writer slot,
// and drops the entry from the index if it has never been readable.
func (c *Cache) runAbort(e *entry, w *WriterHandle) error {
	if !e.isCurrentWriter(w) {
		return ErrStaleWriter
	}

	_ = c.fs.Remove(e.dirtyPath)
	e.clearWriterIfCurrent(w)
	c.dropIfUnreadable(e)

	return nil
}

func (c *Cache) dropIfUnreadable(e *entry) {
	if e.readable {
		return
	}

	c.muIndex.Lock()
	c.index.remove(e.key)
	c.muIndex.Unlock()
}

// trimPass drains the retry list and then evicts least-recently-used
// entries until both budgets are satisfied or every remaining entry is
// under active edit.
func (c *Cache) trimPass() {
	c.drainRetries()

	for {
		c.muIndex.Lock()

		over := c.st.sizeBytes.Load() > c.st.maxBytes.Load() || c.index.len() > c.maxCount
		if !over {
			c.muIndex.Unlock()
			return
		}

		victim := c.index.nextEvictable()
		if victim == nil {
			c.muIndex.Unlock()
			return
		}

		c.index.remove(victim.key)
		c.muIndex.Unlock()

		c.deleteCleanFile(victim)
	}
}

// deleteCleanFile removes e's clean file and, only on success, frees
// its accounted bytes. A failing delete parks e on the retry list so
// the bytes stay counted against the budget until the delete actually
// succeeds, per the "freeing the accounted bytes on success" rule.
func (c *Cache) deleteCleanFile(e *entry) {
	err := c.fs.Remove(e.cleanPath)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		if e.readable {
			c.st.addSize(-e.lengthBytes)
		}

		return
	}

	c.muRetry.Lock()
	c.retryList = append(c.retryList, e)
	c.muRetry.Unlock()
}

func (c *Cache) drainRetries() {
	c.muRetry.Lock()
	pending := c.retryList
	c.retryList = nil
	c.muRetry.Unlock()

	for _, e := range pending {
		c.deleteCleanFile(e)
	}
}

// snapshotJournalLines reads the current entry set under the index lock
// and renders it as the one-line-per-entry form a rebuild writes out.
func (c *Cache) snapshotJournalLines() []journalLine {
	c.muIndex.Lock()
	entries := c.index.entriesOldestFirst()
	c.muIndex.Unlock()

	lines := make([]journalLine, 0, len(entries))

	for _, e := range entries {
		if e.readable {
			lines = append(lines, journalLine{kind: lineClean, key: e.key, length: e.lengthBytes})
		} else {
			lines = append(lines, journalLine{kind: lineDirty, key: e.key})
		}
	}

	return lines
}

// maybeRebuildLocked is only ever invoked from the serial executor
// goroutine, per the journal's single-writer-thread contract.
func (c *Cache) maybeRebuildLocked() {
	if !c.j.needsRebuild() {
		return
	}

	_ = c.j.rebuild(c.snapshotJournalLines())
}

// rebuildIfNeededSync submits a conditional rebuild to the executor and
// blocks until it has run (or been skipped), for Flush's "rebuild if
// the threshold is crossed" requirement.
func (c *Cache) rebuildIfNeededSync() error {
	var rebuildErr error

	done := make(chan struct{})
	c.executor.Submit(func() {
		defer close(done)

		if !c.j.needsRebuild() {
			return
		}

		rebuildErr = c.j.rebuild(c.snapshotJournalLines())
	})
	<-done

	return rebuildErr
}
