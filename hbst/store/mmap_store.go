package store

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// FileView provides read-only access to a persisted database.
type FileView interface {
	// Bytes returns the full mapped file. The slice is valid until Close is called.
	// Caller must not modify it.
	Bytes() []byte
	// Close releases resources (e.g. unmaps the file).
	Close() error
}

// MmapFileView is a FileView backed by an mmap'd file.
type MmapFileView struct {
	f    *os.File
	data mmap.MMap
}

// OpenMmap opens a file and maps it read-only.
func OpenMmap(path string) (FileView, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, errors.Errorf("database file %s is empty", path)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "mmap database file")
	}
	return &MmapFileView{f: f, data: m}, nil
}

// Bytes returns the full mapped file.
func (s *MmapFileView) Bytes() []byte {
	return s.data
}

// Close unmaps the file and closes it.
func (s *MmapFileView) Close() error {
	if s.data != nil {
		if err := s.data.Unmap(); err != nil {
			return err
		}
		s.data = nil
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}
