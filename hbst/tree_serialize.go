package hbst

import (
	"bufio"
	"encoding/binary"
	"io"
	"sort"

	"github.com/ic-timon/hbst/hbst/store"
	"github.com/pkg/errors"
)

// countingWriter tracks the number of bytes written for io.WriterTo.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo writes the trained tree in the database format (see package store). Buffered,
// untrained matchables are not written.
func (t *Tree[T]) WriteTo(w io.Writer) (int64, error) {
	if t.codec == nil {
		return 0, ErrNoCodec
	}
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	if err := t.serialize(bw); err != nil {
		return cw.n, err
	}
	if err := bw.Flush(); err != nil {
		return cw.n, errors.Wrap(err, "flush database")
	}
	return cw.n, nil
}

func (t *Tree[T]) serialize(w io.Writer) error {
	leaves := t.arena.leaves(t.root)
	header := t.header
	header.NumberOfLeafs = uint64(len(leaves))
	header.NumberOfTrainingEntries = uint64(t.trained.Len())

	if err := store.WriteEndianness(w); err != nil {
		return err
	}
	if err := store.WriteTreeHeader(w, &header); err != nil {
		return err
	}
	ids := t.TrainedIdentifiers()
	if err := binary.Write(w, binary.LittleEndian, ids); err != nil {
		return errors.Wrap(err, "write trained identifiers")
	}

	descriptorBytes := t.cfg.DescriptorBits / 8
	payloadBytes := t.codec.Size()
	buf := make([]byte, descriptorBytes+8)
	entry := make([]byte, 8+payloadBytes)
	for _, id := range leaves {
		n := t.arena.at(id)
		h := store.NodeHeader{
			Depth:                          n.header.Depth,
			NumberOfMatchablesUncompressed: n.header.NumberOfMatchablesUncompressed,
			NumberOfMatchablesCompressed:   uint64(len(n.matchables)),
		}
		if err := store.WriteNodeHeader(w, &h); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, t.arena.path(id)); err != nil {
			return errors.Wrap(err, "write bit index order")
		}
		for _, m := range n.matchables {
			m.descriptor.putBytes(buf[:descriptorBytes])
			binary.LittleEndian.PutUint64(buf[descriptorBytes:], uint64(len(m.objects)))
			if _, err := w.Write(buf); err != nil {
				return errors.Wrap(err, "write descriptor data")
			}
			keys := make([]uint64, 0, len(m.objects))
			for k := range m.objects {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
			for _, k := range keys {
				binary.LittleEndian.PutUint64(entry[:8], k)
				t.codec.Put(entry[8:], m.objects[k])
				if _, err := w.Write(entry); err != nil {
					return errors.Wrap(err, "write object data")
				}
			}
		}
	}
	return nil
}
