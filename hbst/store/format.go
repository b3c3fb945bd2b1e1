package store

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	// EndiannessCheck is the value of the first byte of every database file.
	EndiannessCheck byte = 0

	// TreeHeaderSize is the encoded size of TreeHeader.
	TreeHeaderSize = 40

	// NodeHeaderSize is the encoded size of NodeHeader.
	NodeHeaderSize = 24

	// SplitBitSentinel terminates the split bit path of a leaf.
	SplitBitSentinel int32 = -1
)

// ErrEndianness is returned when the endianness check byte is not EndiannessCheck.
var ErrEndianness = errors.New("hbst: invalid endianness, database saved on different arch")

// TreeHeader holds the persisted tree metadata.
type TreeHeader struct {
	Identifier                     uint64
	NumberOfMatchablesCompressed   uint64
	NumberOfTrainingEntries        uint64
	NumberOfMatchablesUncompressed uint64
	NumberOfLeafs                  uint64
}

// NodeHeader holds the persisted leaf metadata.
type NodeHeader struct {
	Depth                          uint64
	NumberOfMatchablesUncompressed uint64
	NumberOfMatchablesCompressed   uint64
}

// WriteEndianness writes the endianness check byte.
func WriteEndianness(w io.Writer) error {
	_, err := w.Write([]byte{EndiannessCheck})
	return errors.Wrap(err, "write endianness byte")
}

// ReadEndianness reads and verifies the endianness check byte.
func ReadEndianness(r io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return errors.Wrap(err, "read endianness byte")
	}
	if b[0] != EndiannessCheck {
		return ErrEndianness
	}
	return nil
}

// WriteTreeHeader writes h.
func WriteTreeHeader(w io.Writer, h *TreeHeader) error {
	if h == nil {
		return errors.New("tree header is nil")
	}
	return errors.Wrap(binary.Write(w, binary.LittleEndian, h), "write database header")
}

// ReadTreeHeader reads a TreeHeader.
func ReadTreeHeader(r io.Reader) (TreeHeader, error) {
	var h TreeHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, errors.Wrap(err, "read database header")
	}
	return h, nil
}

// WriteNodeHeader writes h.
func WriteNodeHeader(w io.Writer, h *NodeHeader) error {
	return errors.Wrap(binary.Write(w, binary.LittleEndian, h), "write leaf header")
}

// ReadNodeHeader reads a NodeHeader.
func ReadNodeHeader(r io.Reader) (NodeHeader, error) {
	var h NodeHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, errors.Wrap(err, "read leaf header")
	}
	return h, nil
}
