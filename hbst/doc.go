// Package hbst provides a hierarchical binary search tree (HBST) over fixed-length binary
// feature descriptors, for approximate nearest-neighbour matching of image features.
//
// Quick start:
//
//	tree, err := hbst.NewTree[uint64](0, hbst.DefaultConfig())
//	if err != nil {
//		// invalid configuration
//	}
//	batch := []*hbst.Matchable[uint64]{hbst.NewMatchable(uint64(0), descriptor, imageID)}
//	if err := tree.Add(batch, hbst.SplitEven); err != nil {
//		// invalid batch
//	}
//	matches := tree.MatchPerImage(queries, 25)
//
// The tree takes ownership of every Matchable passed to Add, Train or MatchAndAdd.
// Query matchables are never retained. A Tree is not safe for concurrent mutation;
// concurrent read-only queries on a tree that is not being modified are safe.
package hbst
