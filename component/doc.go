// Package component implements the ownership tree the runtime is built
// around: named, typed nodes with ordered children, options, properties,
// signal tables, and path-based addressing.
//
// # Ownership
//
// Every attached component has exactly one owner, its parent; sibling names
// are unique; traversal order is insertion order and never arbitrary.
// Construction and attachment are separate steps: a factory returns a
// detached node, and only AddChild makes it resolvable by path, so no
// observer can reach a half-initialized component.
//
// RemoveChild detaches and recursively destroys the subtree. Links pointing
// into a removed subtree are left alone; they fail lazily with
// ErrDanglingLink on their next resolution.
//
// # Paths and links
//
// Paths address components: "//Root/Mesh/topology" is absolute from the
// tree root, "." is the current node, ".." the parent, and every other
// segment a child-name lookup. The literal names "." and ".." are reserved
// and rejected as component names.
//
// A Link stores a target path instead of owning content. Resolution follows
// links transparently, bounded by MaxLinkHops against alias cycles, and
// reports ErrDanglingLink when a stored target no longer resolves.
//
// # Concurrency
//
// Nothing in this package locks. The engine's kernel owns the process-wide
// mutual-exclusion domain: structural mutation runs exclusively, pure reads
// (Resolve, TakeSnapshot, property reads) share.
package component
