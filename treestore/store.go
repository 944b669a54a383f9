package treestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/simkernel/component"
	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/natsclient"
	"github.com/c360/simkernel/pkg/timestamp"
)

// DefaultBucket is the KV bucket snapshots live in unless configured
// otherwise.
const DefaultBucket = "simkernel_trees"

// Config holds the bucket settings.
type Config struct {
	// Bucket is the KV bucket name. Empty means DefaultBucket.
	Bucket string `json:"bucket,omitempty"`

	// History is how many revisions JetStream keeps per snapshot name.
	// 0 means 10, enough to recover a recent overwrite.
	History uint8 `json:"history,omitempty"`
}

// Record is the stored document: the snapshot plus save metadata. Revision
// is JetStream's and rides outside the document.
type Record struct {
	Name    string             `json:"name"`
	SavedAt int64              `json:"saved_at"`
	Count   int                `json:"count"`
	Tree    component.Snapshot `json:"tree"`

	Revision uint64 `json:"-"`
}

// Store keeps named tree snapshots in one KV bucket.
type Store struct {
	kv     *natsclient.KVStore
	logger *slog.Logger
}

// NewStore creates the bucket if needed and returns a store over it. The
// client must be connected; a server without JetStream fails here, not at
// first save.
func NewStore(ctx context.Context, client *natsclient.Client, config Config, logger *slog.Logger) (*Store, error) {
	if client == nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("nats client cannot be nil: %w", kerrors.ErrInvalidConfig),
			"TreeStore", "NewStore", "dependency check")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Bucket == "" {
		config.Bucket = DefaultBucket
	}
	if config.History == 0 {
		config.History = 10
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      config.Bucket,
		Description: "Named component tree snapshots",
		History:     config.History,
	})
	if err != nil {
		return nil, kerrors.WrapTransient(
			fmt.Errorf("bucket %q: %v: %w", config.Bucket, err, kerrors.ErrStoreUnavailable),
			"TreeStore", "NewStore", "create KV bucket")
	}

	return &Store{
		kv:     client.NewKVStore(bucket),
		logger: logger,
	}, nil
}

// Save stores a snapshot under name, overwriting any previous revision.
func (s *Store) Save(ctx context.Context, name string, snap component.Snapshot) (*Record, error) {
	rec, data, err := s.encode(name, snap)
	if err != nil {
		return nil, err
	}

	rev, err := s.kv.Put(ctx, name, data)
	if err != nil {
		return nil, s.storeErr("Save", name, err)
	}
	rec.Revision = rev

	s.logger.Debug("Tree snapshot saved",
		"name", name,
		"count", rec.Count,
		"revision", rev)
	return rec, nil
}

// SaveAt stores a snapshot only if the stored revision still matches.
// Revision 0 means the name must not exist yet. A moved revision or an
// existing name fails ErrRevisionConflict; the caller reloads and decides.
func (s *Store) SaveAt(ctx context.Context, name string, snap component.Snapshot, revision uint64) (*Record, error) {
	rec, data, err := s.encode(name, snap)
	if err != nil {
		return nil, err
	}

	var rev uint64
	if revision == 0 {
		rev, err = s.kv.Create(ctx, name, data)
	} else {
		rev, err = s.kv.Update(ctx, name, data, revision)
	}
	if err != nil {
		if natsclient.IsKVConflictError(err) {
			return nil, kerrors.WrapTransient(
				fmt.Errorf("snapshot %q at revision %d: %v: %w",
					name, revision, err, kerrors.ErrRevisionConflict),
				"TreeStore", "SaveAt", "compare and swap")
		}
		return nil, s.storeErr("SaveAt", name, err)
	}
	rec.Revision = rev
	return rec, nil
}

// Load retrieves the named snapshot with its current revision.
func (s *Store) Load(ctx context.Context, name string) (*Record, error) {
	if name == "" {
		return nil, s.emptyName("Load")
	}

	entry, err := s.kv.Get(ctx, name)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, kerrors.WrapInvalid(
				fmt.Errorf("snapshot %q: %w", name, kerrors.ErrSnapshotNotFound),
				"TreeStore", "Load", "lookup")
		}
		return nil, s.storeErr("Load", name, err)
	}

	var rec Record
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return nil, kerrors.WrapFatal(
			fmt.Errorf("snapshot %q: %v", name, err),
			"TreeStore", "Load", "unmarshal record")
	}
	rec.Revision = entry.Revision
	return &rec, nil
}

// Delete removes the named snapshot.
func (s *Store) Delete(ctx context.Context, name string) error {
	if name == "" {
		return s.emptyName("Delete")
	}

	if err := s.kv.Delete(ctx, name); err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return kerrors.WrapInvalid(
				fmt.Errorf("snapshot %q: %w", name, kerrors.ErrSnapshotNotFound),
				"TreeStore", "Delete", "lookup")
		}
		return s.storeErr("Delete", name, err)
	}

	s.logger.Debug("Tree snapshot deleted", "name", name)
	return nil
}

// List loads every stored snapshot. An empty bucket yields an empty slice.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	names, err := s.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(names))
	for _, name := range names {
		rec, err := s.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// The four methods below are the kernel's TreeStore seam.

// SaveSnapshot stores a snapshot, ignoring the record metadata.
func (s *Store) SaveSnapshot(ctx context.Context, name string, snap component.Snapshot) error {
	_, err := s.Save(ctx, name, snap)
	return err
}

// LoadSnapshot retrieves just the tree of the named snapshot.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (component.Snapshot, error) {
	rec, err := s.Load(ctx, name)
	if err != nil {
		return component.Snapshot{}, err
	}
	return rec.Tree, nil
}

// DeleteSnapshot removes the named snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, name string) error {
	return s.Delete(ctx, name)
}

// ListSnapshots returns the stored snapshot names.
func (s *Store) ListSnapshots(ctx context.Context) ([]string, error) {
	names, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, kerrors.WrapTransient(
			fmt.Errorf("%v: %w", err, kerrors.ErrStoreUnavailable),
			"TreeStore", "ListSnapshots", "list keys")
	}
	return names, nil
}

func (s *Store) encode(name string, snap component.Snapshot) (*Record, []byte, error) {
	if name == "" {
		return nil, nil, s.emptyName("Save")
	}

	rec := &Record{
		Name:    name,
		SavedAt: timestamp.Now(),
		Count:   snap.Count(),
		Tree:    snap,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, nil, kerrors.WrapFatal(
			fmt.Errorf("snapshot %q: %v", name, err),
			"TreeStore", "Save", "marshal record")
	}
	return rec, data, nil
}

func (s *Store) emptyName(method string) error {
	return kerrors.WrapInvalid(
		fmt.Errorf("snapshot name cannot be empty: %w", kerrors.ErrInvalidConfig),
		"TreeStore", method, "validate name")
}

func (s *Store) storeErr(method, name string, err error) error {
	return kerrors.WrapTransient(
		fmt.Errorf("snapshot %q: %v: %w", name, err, kerrors.ErrStoreUnavailable),
		"TreeStore", method, "KV operation")
}
