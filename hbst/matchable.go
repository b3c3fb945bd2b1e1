package hbst

import (
	"sort"

	"github.com/pkg/errors"
)

// Matchable wraps a descriptor together with the (source identifier -> payload) entries it
// represents. A fresh matchable carries a single entry; merging accumulates entries of
// identical or near-identical descriptors.
type Matchable[T any] struct {
	descriptor      Descriptor
	objects         map[uint64]T
	numberOfObjects uint64

	// single value access (primary entry)
	identifier uint64
	object     T

	owned    bool // handed to a tree
	consumed bool // absorbed by a merge
}

// NewMatchable creates a matchable for a descriptor computed on the image identified by
// identifier, with an associated payload object (e.g. keypoint index).
func NewMatchable[T any](object T, descriptor Descriptor, identifier uint64) *Matchable[T] {
	m := &Matchable[T]{
		descriptor:      descriptor,
		objects:         map[uint64]T{identifier: object},
		numberOfObjects: 1,
		identifier:      identifier,
		object:          object,
	}
	return m
}

// NewMatchableFromObjects creates a matchable carrying several entries. The entry with the
// smallest identifier becomes the primary one. objects must not be empty.
func NewMatchableFromObjects[T any](objects map[uint64]T, descriptor Descriptor) *Matchable[T] {
	m := &Matchable[T]{
		descriptor:      descriptor,
		objects:         make(map[uint64]T, len(objects)),
		numberOfObjects: uint64(len(objects)),
	}
	for id, o := range objects {
		m.objects[id] = o
	}
	ids := m.Identifiers()
	if len(ids) > 0 {
		m.identifier = ids[0]
		m.object = m.objects[ids[0]]
	}
	return m
}

// Descriptor returns the wrapped descriptor.
func (m *Matchable[T]) Descriptor() Descriptor { return m.descriptor }

// Identifier returns the primary source identifier.
func (m *Matchable[T]) Identifier() uint64 { return m.identifier }

// Object returns the primary payload.
func (m *Matchable[T]) Object() T { return m.object }

// Objects returns all (identifier -> payload) entries. Caller must not modify the map.
func (m *Matchable[T]) Objects() map[uint64]T { return m.objects }

// NumberOfObjects returns the number of represented entries (1 unless merged).
func (m *Matchable[T]) NumberOfObjects() uint64 { return m.numberOfObjects }

// Identifiers returns the identifiers of all entries in ascending order.
func (m *Matchable[T]) Identifiers() []uint64 {
	ids := make([]uint64, 0, len(m.objects))
	for id := range m.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Distance returns the Hamming distance between the descriptors of m and other.
func (m *Matchable[T]) Distance(other *Matchable[T]) uint32 {
	return m.descriptor.Distance(other.descriptor)
}

// Merge absorbs all entries of other. Entries for identifiers m already holds keep m's
// payload. The caller must ensure that the descriptors are within the merge distance and
// must drop other afterwards.
func (m *Matchable[T]) Merge(other *Matchable[T]) {
	for id, o := range other.objects {
		if _, ok := m.objects[id]; !ok {
			m.objects[id] = o
		}
	}
	m.numberOfObjects = uint64(len(m.objects))
	other.consumed = true
}

// MergeSingle absorbs only the primary entry of other. It panics with
// ErrIdentifierPresent if m already holds an entry for other's identifier.
func (m *Matchable[T]) MergeSingle(other *Matchable[T]) {
	if _, ok := m.objects[other.identifier]; ok {
		panic(errors.Wrapf(ErrIdentifierPresent, "identifier %d", other.identifier))
	}
	m.objects[other.identifier] = other.object
	m.numberOfObjects = uint64(len(m.objects))
	other.consumed = true
}

// SetObject replaces the primary payload without touching the entry map.
func (m *Matchable[T]) SetObject(object T) {
	m.object = object
}

// SetObjects replaces every payload, keeping the identifiers.
func (m *Matchable[T]) SetObjects(object T) {
	m.SetObject(object)
	for id := range m.objects {
		m.objects[id] = object
	}
}

// firstObject is the payload of the smallest identifier.
func (m *Matchable[T]) firstObject() T {
	if len(m.objects) <= 1 {
		for _, o := range m.objects {
			return o
		}
		return m.object
	}
	return m.objects[m.Identifiers()[0]]
}

func (m *Matchable[T]) take() {
	if m.owned || m.consumed {
		panic(ErrAlreadyOwned)
	}
	m.owned = true
}

// entries is the contribution of m to an uncompressed count.
func (m *Matchable[T]) entries(merge bool) uint64 {
	if merge {
		return m.numberOfObjects
	}
	return 1
}
