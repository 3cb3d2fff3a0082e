package diskcache

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/diskcache/internal/fsx"
)

// reconcile performs the directory-reconciliation sequence run when a
// cache is opened over an existing directory (spec §4.1.1): promote or
// discard a leftover journal backup, replay the journal into index and
// st, and on any corruption sweep the directory clean instead of
// trusting a partial read.
//
// index and st are populated in place; reconcile returns the journal
// ready for append.
func reconcile(fs fsx.FS, dir string, index *lruIndex, st *stats) (*journal, error) {
	if err := promoteOrDiscardBackup(fs, dir); err != nil {
		return nil, err
	}

	exists, err := fs.Exists(journalPath(dir))
	if err != nil {
		return nil, err
	}

	if !exists {
		return openJournalAppend(fs, dir, 0)
	}

	lineCount, corrupt, err := replayJournal(fs, dir, index, st)
	if err != nil || corrupt {
		sweepDirectory(fs, dir)
		index.reset()
		st.sizeBytes.Store(0)

		if rmErr := fs.Remove(journalPath(dir)); rmErr != nil && !osIsNotExist(rmErr) {
			return nil, rmErr
		}

		return openJournalAppend(fs, dir, 0)
	}

	return openJournalAppend(fs, dir, lineCount)
}

func promoteOrDiscardBackup(fs fsx.FS, dir string) error {
	bkpExists, err := fs.Exists(journalBkpPath(dir))
	if err != nil || !bkpExists {
		return err
	}

	primaryExists, err := fs.Exists(journalPath(dir))
	if err != nil {
		return err
	}

	if primaryExists {
		return fs.Remove(journalBkpPath(dir))
	}

	return fs.Rename(journalBkpPath(dir), journalPath(dir))
}

// replayJournal scans the primary journal line by line, populating
// index and st, and returns the number of lines read. A dirty-pending
// key with no later CLEAN line has its files deleted and is dropped
// once the scan completes successfully.
func replayJournal(fs fsx.FS, dir string, index *lruIndex, st *stats) (lineCount int, corrupt bool, err error) {
	f, err := fs.Open(journalPath(dir))
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	dirtyPending := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()

		parsed, ok := parseJournalLine(line)
		if !ok {
			return 0, true, nil
		}

		lineCount++

		switch parsed.kind {
		case lineClean:
			e, existed := index.get(parsed.key)
			if !existed {
				e = newEntry(dir, parsed.key)
			}

			e.readable = true
			e.lengthBytes = parsed.length
			index.touch(e)
			delete(dirtyPending, parsed.key)

		case lineDirty:
			if _, existed := index.get(parsed.key); !existed {
				index.touch(newEntry(dir, parsed.key))
			}

			dirtyPending[parsed.key] = true
		}
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return 0, false, scanErr
	}

	if lineCount > 0 {
		last := make([]byte, 1)
		if _, err := f.Seek(-1, io.SeekEnd); err != nil {
			return 0, false, err
		}

		if _, err := io.ReadFull(f, last); err != nil {
			return 0, false, err
		}

		if last[0] != '\n' {
			return 0, true, nil
		}
	}

	for key := range dirtyPending {
		e, ok := index.get(key)
		if !ok {
			continue
		}

		_ = fs.Remove(e.cleanPath)
		_ = fs.Remove(e.dirtyPath)
		index.remove(key)
	}

	var total int64
	for _, e := range index.entriesOldestFirst() {
		if e.readable {
			total += e.lengthBytes
		}
	}

	st.sizeBytes.Store(total)

	return lineCount, false, nil
}

// sweepDirectory deletes every *.clean and *.tmp file in dir, used when
// the journal is corrupted and the on-disk state can no longer be
// trusted to match any in-memory record of it.
func sweepDirectory(fs fsx.FS, dir string) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return
	}

	for _, de := range entries {
		if de.IsDir() {
			continue
		}

		name := de.Name()
		if strings.HasSuffix(name, ".clean") || strings.HasSuffix(name, ".tmp") {
			_ = fs.Remove(filepath.Join(dir, name))
		}
	}
}

func osIsNotExist(err error) bool {
	return os.IsNotExist(err)
}
