// Package store provides the persist file format and the mmap-backed file view for the
// hbst tree. It is used internally by hbst.SaveTo, hbst.LoadFrom and hbst.NewTreeFromFile.
//
// The file format consists of (all integers little endian):
//   - Endianness check byte, always 0
//   - Tree header (40 bytes): identifier, compressed matchable count, training entry count,
//     uncompressed matchable count, leaf count
//   - Trained identifiers: one uint64 per training entry, ascending
//   - Per leaf, left subtree first: node header (24 bytes: depth, uncompressed and compressed
//     matchable counts), depth+1 int32 split bits from the root terminated by -1, then per
//     matchable its raw descriptor bytes, a uint64 object count and (uint64 identifier,
//     payload) pairs
//
// Topology is not stored explicitly: it is rebuilt from the split bit paths of the leaves.
package store
