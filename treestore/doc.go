// Package treestore persists named component-tree snapshots in a NATS
// JetStream key-value bucket.
//
// A snapshot is the serializable listing component.TakeSnapshot produces;
// the store wraps it in a Record with save metadata and keys it by name.
// Save is an unconditional upsert; SaveAt is the optimistic-concurrency
// variant that fails kerrors.ErrRevisionConflict when the stored revision
// moved. The revision is JetStream's, so two processes sharing a bucket
// contend correctly.
//
// The store also implements the kernel's TreeStore seam, which backs the
// save_tree, load_tree, delete_tree, and list_trees signals on the root.
package treestore
