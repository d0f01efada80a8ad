package orcjit

import "orcjit/internal/strpool"

// LibraryID identifies a DynamicLibrary for the lifetime of its session.
type LibraryID uint32

// nodeKey addresses a single per-library symbol record; it is also the node
// key the readiness graph operates on.
type nodeKey struct {
	lib  LibraryID
	name strpool.ID
}

// materializerGroup is the set of names one MaterializationUnit declared,
// shared by pointer across every symbolRecord it still owns so that the
// last name removed/superseded can trigger OnDestroy exactly once.
type materializerGroup struct {
	mu        MaterializationUnit
	lib       *DynamicLibrary
	remaining map[strpool.ID]struct{} // declared names not yet discarded or claimed
	started   bool                    // materialization has begun; Discard/OnDestroy no longer apply here
}

// symbolRecord is the per-name, per-DL state described in spec.md §3.
type symbolRecord struct {
	name  strpool.ID
	stage Stage
	flags SymbolFlags
	addr  uint64

	owner *materializerGroup // set while NeverSearched and lazy; nil for absolute definitions
	mr    *MaterializationResponsibility // set while Materializing and after, until removed

	waitResolved []*Query
	waitReady    []*Query
}
