// Package image provides random-access reading over Hikvision DVR disk
// images, whether stored as a raw byte-for-byte dump or as an EnCase/EWF
// (.e01/.ewf) evidence container.
package image

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Reader is the random-access contract every hikvision parser depends on.
// It is intentionally narrow: offset/size reads, total size, and close.
type Reader interface {
	ReadAt(offset int64, size int) ([]byte, error)
	Size() int64
	Close() error
}

// Open inspects the file extension and returns the appropriate Reader
// implementation. ".e01"/".ewf" (case-insensitive) dispatch to the EWF
// container reader; anything else is treated as a raw image.
func Open(path string) (Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".e01") || strings.HasSuffix(lower, ".ewf") {
		return OpenEwf(path)
	}
	return OpenRaw(path)
}

// RawReader reads directly off a raw disk image file.
type RawReader struct {
	mu   sync.Mutex
	file *os.File
	size int64
}

// OpenRaw opens a raw (non-EWF) image file for random-access reads.
func OpenRaw(path string) (*RawReader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}
	return &RawReader{file: f, size: info.Size()}, nil
}

func (r *RawReader) ReadAt(offset int64, size int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil, ErrNotOpen
	}
	buf := make([]byte, size)
	n, err := r.file.ReadAt(buf, offset)
	if n < size {
		if err == nil {
			return nil, fmt.Errorf("%w: short read at offset %d: got %d of %d bytes", ErrIO, offset, n, size)
		}
		return nil, fmt.Errorf("%w: read at offset %d: %v", ErrIO, offset, err)
	}
	return buf, nil
}

func (r *RawReader) Size() int64 {
	return r.size
}

func (r *RawReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	if err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	return nil
}
