package hbst

import (
	"bytes"
	"os"
	"runtime"

	"github.com/ic-timon/hbst/hbst/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewTreeFromFile loads a tree from a database file. cfg may be nil to use DefaultConfig();
// its DescriptorBits must match the width the database was written with.
func NewTreeFromFile[T any](path string, cfg *Config) (*Tree[T], error) {
	t, err := NewTree[T](0, cfg)
	if err != nil {
		return nil, err
	}
	if err := t.LoadFrom(path); err != nil {
		return nil, err
	}
	return t, nil
}

// SaveTo writes the tree to a file, overwriting it.
func (t *Tree[T]) SaveTo(path string) error {
	log := t.log.WithFields(logrus.Fields{"path": path, "op": "write"})
	f, err := os.Create(path)
	if err != nil {
		log.WithError(err).Error("unable to open file")
		return errors.Wrapf(err, "open %s", path)
	}
	if _, err := t.WriteTo(f); err != nil {
		f.Close()
		log.WithError(err).Error("unable to write database")
		return errors.Wrapf(err, "write %s", path)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		log.WithError(err).Error("unable to sync database")
		return errors.Wrapf(err, "sync %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	log.WithFields(logrus.Fields{
		"matchables":  t.header.NumberOfMatchablesCompressed,
		"identifiers": t.trained.Len(),
	}).Debug("saved database")
	return nil
}

// SaveToAtomic writes the tree to path+".tmp" and renames it over path, so readers see
// either the old or the new database. On Windows, where Rename cannot replace an existing
// file, the target is removed first.
func (t *Tree[T]) SaveToAtomic(path string) error {
	tmp := path + ".tmp"
	if err := t.SaveTo(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(path) // ignore error if not exists
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "rename %s", tmp)
	}
	return nil
}

// LoadFrom replaces the content of t with the database stored at path. The file is mapped
// read-only for the duration of the call. On error t is left unchanged.
func (t *Tree[T]) LoadFrom(path string) error {
	log := t.log.WithFields(logrus.Fields{"path": path, "op": "read"})
	view, err := store.OpenMmap(path)
	if err != nil {
		log.WithError(err).Error("unable to open file")
		return errors.Wrapf(err, "open %s", path)
	}
	defer view.Close()

	if _, err := t.ReadFrom(bytes.NewReader(view.Bytes())); err != nil {
		log.WithError(err).Error("unable to read database")
		return errors.Wrapf(err, "read %s", path)
	}
	log.WithFields(logrus.Fields{
		"matchables": t.header.NumberOfMatchablesCompressed,
		"leaves":     t.header.NumberOfLeafs,
	}).Debug("loaded database")
	return nil
}

// AppendTo loads the database at path (or starts an empty tree with identifier if the file
// does not exist), adds batch with strategy and saves atomically. Returns the updated tree.
// T must have a default codec (uint64, uint32 or Keypoint).
func AppendTo[T any](path string, identifier uint64, batch []*Matchable[T], strategy SplittingStrategy, cfg *Config) (*Tree[T], error) {
	var t *Tree[T]
	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		t, err = NewTreeFromFile[T](path, cfg)
	} else {
		t, err = NewTree[T](identifier, cfg)
	}
	if err != nil {
		return nil, err
	}
	if err := t.Add(batch, strategy); err != nil {
		return nil, err
	}
	if err := t.SaveToAtomic(path); err != nil {
		return nil, err
	}
	return t, nil
}
