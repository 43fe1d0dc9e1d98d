// Package tree implements the virtual file tree of a prompt project.
//
// # Storage Model
//
// A Tree is arena-style: a flat map of node id to Node, where every node
// carries the id of its parent folder ("" for root level). An insertion-order
// list of ids sits beside the map so that children come back in a stable
// order. File bodies live in a separate content map keyed by file id.
//
// # Invariants
//
// Every mutation keeps the tree valid:
//   - a parent id references an existing folder
//   - no node is its own ancestor
//   - siblings of the same type have distinct names
//   - content exists only for live file nodes
//
// A failed mutation returns one of the package errors and leaves the tree
// untouched. Traversals (Children, Descendants, Ancestors, Walk) are pure
// functions over the map and never hand out references into it.
//
// # Concurrency
//
// A Tree is not safe for concurrent use. Callers that share a tree clone it,
// mutate the clone and swap it in (see package project).
package tree
