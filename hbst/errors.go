package hbst

import (
	"github.com/ic-timon/hbst/hbst/store"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownStrategy is returned for a SplittingStrategy outside the known set.
	ErrUnknownStrategy = errors.New("hbst: unknown splitting strategy")

	// ErrInvalidDescriptorWidth is returned when the configured descriptor width is not a
	// positive multiple of 8.
	ErrInvalidDescriptorWidth = errors.New("hbst: invalid descriptor width")

	// ErrDescriptorWidthMismatch is returned when a matchable's descriptor does not have the
	// tree's width.
	ErrDescriptorWidthMismatch = errors.New("hbst: descriptor width mismatch")

	// ErrMixedIdentifiers is returned when a batch spans more than one source identifier.
	ErrMixedIdentifiers = errors.New("hbst: batch spans multiple identifiers")

	// ErrEndianness is returned when a database file was written on a different architecture.
	ErrEndianness = store.ErrEndianness

	// ErrInconsistentDatabase is returned when a database file does not reconstruct into a
	// valid tree.
	ErrInconsistentDatabase = errors.New("hbst: inconsistent database")
)

var (
	// ErrAlreadyOwned is the panic value when a matchable is handed to a tree twice or reused
	// after being absorbed by a merge.
	ErrAlreadyOwned = errors.New("hbst: matchable already owned by a tree")

	// ErrIdentifierPresent is the panic value when MergeSingle would overwrite an entry the
	// resident already holds.
	ErrIdentifierPresent = errors.New("hbst: identifier already present in matchable")

	// ErrNoCodec is returned when persisting a tree whose payload type has no codec.
	ErrNoCodec = errors.New("hbst: no payload codec, use WithCodec")
)
