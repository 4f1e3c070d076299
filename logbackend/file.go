package logbackend

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileBackend appends (id, content) records to an append-only file
// using a length-prefixed, id-tagged record:
//
//	[4-byte BE length of id+content][8-byte BE id][content bytes]
//
// letting Query scan the file and return the most recent matching
// record. Durability policy: writes go through (*os.File).Write, which
// lands in the OS page cache; fsync is not called on every write.
type FileBackend struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenFile creates path if absent and opens it for append.
func OpenFile(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("logbackend: open %q: %w", path, err)
	}
	return &FileBackend{path: path, f: f}, nil
}

// Write appends one length-prefixed record and flushes to the OS before
// returning.
func (fb *FileBackend) Write(id uint64, content []byte) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	record := make([]byte, 4+8+len(content))
	binary.BigEndian.PutUint32(record[0:4], uint32(8+len(content)))
	binary.BigEndian.PutUint64(record[4:12], id)
	copy(record[12:], content)

	if _, err := fb.f.Write(record); err != nil {
		return fmt.Errorf("logbackend: write to %q: %w", fb.path, err)
	}
	return nil
}

// Query scans the file from the start and returns the most recent
// record's content for id. This is O(file size); acceptable for a
// backend whose primary role is write durability rather than hot-path
// reads.
func (fb *FileBackend) Query(id uint64) ([]byte, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if _, err := fb.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("logbackend: seek %q: %w", fb.path, err)
	}

	var found []byte
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(fb.f, header); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("logbackend: read header in %q: %w", fb.path, err)
		}
		recLen := binary.BigEndian.Uint32(header)
		body := make([]byte, recLen)
		if _, err := io.ReadFull(fb.f, body); err != nil {
			return nil, fmt.Errorf("logbackend: read record body in %q: %w", fb.path, err)
		}
		recID := binary.BigEndian.Uint64(body[:8])
		if recID == id {
			content := make([]byte, len(body)-8)
			copy(content, body[8:])
			found = content
		}
	}
	if _, err := fb.f.Seek(0, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("logbackend: reset to end of %q: %w", fb.path, err)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// Close closes the underlying file handle.
func (fb *FileBackend) Close() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.f.Close()
}
