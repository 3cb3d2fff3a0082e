package diskcache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calvinalkan/diskcache/internal/fsx"
)

const (
	journalName    = "journal"
	journalTmpName = "journal.tmp"
	journalBkpName = "journal.bkp"

	// rebuildThreshold is the soft line-count bound past which an
	// append schedules a compaction. It is re-checked inside the
	// rebuild task itself to absorb bursts that cross it multiple
	// times before the executor gets to run.
	rebuildThreshold = 1000
)

type lineKind int

const (
	lineDirty lineKind = iota
	lineClean
)

type journalLine struct {
	kind   lineKind
	key    string
	length int64
}

// formatDirty and formatClean render the two journal record shapes.
// Both lines are plain ASCII terminated by a single newline; any other
// shape fails to parse and marks the journal corrupted.

func formatDirty(key string) string {
	return "DIRTY " + key + "\n"
}

func formatClean(key string, length int64) string {
	return "CLEAN " + key + " " + strconv.FormatInt(length, 10) + "\n"
}

// parseJournalLine parses a single journal line, excluding the trailing
// newline. ok is false for anything that isn't exactly one of the two
// grammar productions in spec §6.
func parseJournalLine(line string) (parsed journalLine, ok bool) {
	fields := strings.Split(line, " ")

	switch fields[0] {
	case "DIRTY":
		if len(fields) != 2 || !validKey(fields[1]) {
			return journalLine{}, false
		}

		return journalLine{kind: lineDirty, key: fields[1]}, true

	case "CLEAN":
		if len(fields) != 3 || !validKey(fields[1]) {
			return journalLine{}, false
		}

		length, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || length < 0 {
			return journalLine{}, false
		}

		return journalLine{kind: lineClean, key: fields[1], length: length}, true

	default:
		return journalLine{}, false
	}
}

// journal is the append-only log of entry transitions. Every method but
// close is only ever called from the cache's serial executor goroutine
// and therefore needs no lock of its own, per the concurrency model's
// "journal writer touched only from the serial executor" rule; Cache.Close
// calls close itself, after its final executor task has returned.
type journal struct {
	fs  fsx.FS
	dir string

	file      fsx.File
	lineCount int
}

func journalPath(dir string) string    { return filepath.Join(dir, journalName) }
func journalTmpPath(dir string) string { return filepath.Join(dir, journalTmpName) }
func journalBkpPath(dir string) string { return filepath.Join(dir, journalBkpName) }

// openJournalAppend opens (creating if needed) the live journal file in
// append mode and reports the starting line count.
func openJournalAppend(fs fsx.FS, dir string, lineCount int) (*journal, error) {
	f, err := fs.OpenFile(journalPath(dir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal for append: %w", err)
	}

	return &journal{fs: fs, dir: dir, file: f, lineCount: lineCount}, nil
}

func (j *journal) appendDirty(key string) error {
	return j.append(formatDirty(key))
}

func (j *journal) appendClean(key string, length int64) error {
	return j.append(formatClean(key, length))
}

func (j *journal) append(line string) error {
	if _, err := j.file.Write([]byte(line)); err != nil {
		return fmt.Errorf("appending journal line: %w", err)
	}

	j.lineCount++

	return nil
}

// needsRebuild reports whether the soft line-count bound has been
// crossed.
func (j *journal) needsRebuild() bool {
	return j.lineCount > rebuildThreshold
}

// rebuild performs the crash-safe compaction swap described in spec
// §4.2: write a fresh journal to journal.tmp, back up the live journal,
// promote the tmp file, then drop the backup and reopen the append
// writer. snapshot must be called while the caller holds whatever lock
// makes the entry set consistent; rebuild itself does no locking.
func (j *journal) rebuild(snapshot []journalLine) error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("closing journal before rebuild: %w", err)
	}

	var buf strings.Builder
	for _, l := range snapshot {
		if l.kind == lineClean {
			buf.WriteString(formatClean(l.key, l.length))
		} else {
			buf.WriteString(formatDirty(l.key))
		}
	}

	if err := j.fs.WriteFileAtomic(journalTmpPath(j.dir), []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("writing journal.tmp: %w", err)
	}

	exists, err := j.fs.Exists(journalPath(j.dir))
	if err != nil {
		return fmt.Errorf("checking journal existence: %w", err)
	}

	if exists {
		if err := j.fs.Rename(journalPath(j.dir), journalBkpPath(j.dir)); err != nil {
			return fmt.Errorf("backing up journal: %w", err)
		}
	}

	if err := j.fs.Rename(journalTmpPath(j.dir), journalPath(j.dir)); err != nil {
		return fmt.Errorf("promoting journal.tmp: %w", err)
	}

	_ = j.fs.Remove(journalBkpPath(j.dir))

	f, err := j.fs.OpenFile(journalPath(j.dir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopening journal after rebuild: %w", err)
	}

	j.file = f
	j.lineCount = len(snapshot)

	return nil
}

func (j *journal) close() error {
	if j.file == nil {
		return nil
	}

	err := j.file.Close()
	j.file = nil

	return err
}
