package diskcache

import (
	"io"

	"github.com/calvinalkan/diskcache/internal/fsx"
)

// ReaderHandle is a stable read-only view over a committed entry's
// bytes, captured at the moment it was opened.
//
// The handle stays valid across concurrent commits of the same key: a
// commit replaces the clean file via rename, which unlinks the old
// inode without disturbing any file descriptor already open on it. A
// ReaderHandle therefore always reads the bytes that were clean when it
// was opened, never a newer overwrite, until it runs off the end of
// those original bytes.
type ReaderHandle struct {
	file   fsx.File
	length int64
}

// Length returns the byte length of the entry as of the moment this
// handle was opened.
func (r *ReaderHandle) Length() int64 {
	return r.length
}

// Read implements io.Reader. I/O errors propagate to the caller, unlike
// WriterHandle's silent-tolerance policy.
func (r *ReaderHandle) Read(p []byte) (int, error) {
	return r.file.Read(p)
}

// Close releases the underlying file descriptor. Safe to call once;
// subsequent calls return the error from the underlying close.
func (r *ReaderHandle) Close() error {
	return r.file.Close()
}

var _ io.ReadCloser = (*ReaderHandle)(nil)
