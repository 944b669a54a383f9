package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360/simkernel/component"
	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
)

// TreeStore persists named snapshots of the component tree. The kernel
// stays storage-agnostic; treestore.Store is the NATS-backed implementation.
type TreeStore interface {
	SaveSnapshot(ctx context.Context, name string, snap component.Snapshot) error
	LoadSnapshot(ctx context.Context, name string) (component.Snapshot, error)
	DeleteSnapshot(ctx context.Context, name string) error
	ListSnapshots(ctx context.Context) ([]string, error)
}

// EnableTreeStore registers the persistence signals on the root: save_tree,
// load_tree, delete_tree, and list_trees. Call between New and Start; the
// signal table is not safe to grow once dispatch is open. Enabling twice
// fails ErrDuplicateRegistration.
//
// The handlers run under the kernel lock like any other signal, so a saved
// image is a consistent point-in-time tree and a load sees no concurrent
// mutation. The store call rides inside the lock hold; its own timeout
// bounds how long a slow store can stall dispatch.
func (k *Kernel) EnableTreeStore(store TreeStore) error {
	if store == nil {
		return kerrors.WrapInvalid(
			fmt.Errorf("nil tree store: %w", kerrors.ErrInvalidConfig),
			"Kernel", "EnableTreeStore", "dependency check")
	}
	if k.started.Load() {
		return kerrors.WrapInvalid(kerrors.ErrAlreadyStarted,
			"Kernel", "EnableTreeStore", "kernel already started")
	}
	sigs := k.root.Signals()

	sig, err := sigs.Register("save_tree",
		"persist a named snapshot of the whole tree",
		func(ctx context.Context, args signal.Values) (signal.Result, error) {
			name, err := args.Str("name")
			if err != nil {
				return nil, err
			}
			snap := component.TakeSnapshot(k.root)
			if err := store.SaveSnapshot(ctx, name, snap); err != nil {
				return nil, err
			}
			k.logger.Info("Tree saved", "name", name, "count", snap.Count())
			return signal.Result{
				signal.R("count", option.UInt(uint64(snap.Count()))),
			}, nil
		},
		signal.Schema{
			signal.Required("name", "snapshot name", option.KindString),
		})
	if err != nil {
		return kerrors.Wrap(err, "Kernel", "EnableTreeStore", "signal registration")
	}
	sig.ReadOnly().Returns(signal.Schema{
		signal.Required("count", "components in the saved snapshot", option.KindUInt),
	})

	sigs.MustRegister("load_tree",
		"recreate a saved snapshot's components under the current root",
		func(ctx context.Context, args signal.Values) (signal.Result, error) {
			name, err := args.Str("name")
			if err != nil {
				return nil, err
			}
			snap, err := store.LoadSnapshot(ctx, name)
			if err != nil {
				return nil, err
			}
			restored, err := k.restoreChildren(k.root, snap.Children)
			if err != nil {
				// No rollback: components attached before the failure
				// stay, same as a partially applied configure.
				k.logger.Warn("Tree restore aborted",
					"name", name,
					"restored", restored,
					"error", err)
				return nil, err
			}
			k.logger.Info("Tree restored", "name", name, "count", restored)
			return signal.Result{
				signal.R("count", option.UInt(uint64(restored))),
			}, nil
		},
		signal.Schema{
			signal.Required("name", "snapshot name", option.KindString),
		}).Returns(signal.Schema{
		signal.Required("count", "components recreated", option.KindUInt),
	})

	sigs.MustRegister("delete_tree",
		"remove a saved snapshot",
		func(ctx context.Context, args signal.Values) (signal.Result, error) {
			name, err := args.Str("name")
			if err != nil {
				return nil, err
			}
			return nil, store.DeleteSnapshot(ctx, name)
		},
		signal.Schema{
			signal.Required("name", "snapshot name", option.KindString),
		}).ReadOnly()

	sigs.MustRegister("list_trees",
		"names of the saved snapshots",
		func(ctx context.Context, _ signal.Values) (signal.Result, error) {
			names, err := store.ListSnapshots(ctx)
			if err != nil {
				return nil, err
			}
			return signal.Result{
				signal.R("names", option.Strings(names...)),
				signal.R("count", option.UInt(uint64(len(names)))),
			}, nil
		}, nil).ReadOnly().Returns(signal.Schema{
		signal.Required("names", "snapshot names", option.KindStringList),
		signal.Required("count", "saved snapshots", option.KindUInt),
	})

	return nil
}

// restoreChildren recreates a stored subtree list under parent, depth first,
// and returns how many components attached. The walk reuses createLocked, so
// restored components get core signals, journal adoption, and metrics the
// same as freshly created ones. A name collision or unknown type aborts the
// walk; earlier attachments stay.
func (k *Kernel) restoreChildren(parent component.Component, snaps []component.Snapshot) (int, error) {
	n := 0
	for _, snap := range snaps {
		m, err := k.restoreNode(parent, snap)
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (k *Kernel) restoreNode(parent component.Component, snap component.Snapshot) (int, error) {
	preset, err := presetFields(snap.Options)
	if err != nil {
		return 0, fmt.Errorf("restore %q: %w", snap.Name, err)
	}
	child, err := k.createLocked(parent, snap.Type, snap.Name, preset)
	if err != nil {
		return 0, err
	}
	n := 1
	for _, cs := range snap.Children {
		m, err := k.restoreNode(child, cs)
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// presetFields turns stored option metadata back into set calls. Only
// options moved off their default are replayed; defaults re-apply through
// the constructor, and locked declarations stay settable on a fresh
// instance until their first set.
func presetFields(infos []option.Info) ([]signal.Field, error) {
	var fields []signal.Field
	for _, info := range infos {
		if info.Current == info.Default {
			continue
		}
		kind, err := option.ParseKind(info.Kind)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", info.Name, err)
		}
		v, err := parseOptionText(kind, info.Current)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", info.Name, err)
		}
		fields = append(fields, signal.Field{Name: info.Name, Value: v})
	}
	return fields, nil
}

// parseOptionText decodes a Format rendering back into a value. List text
// is the comma-joined form, so string elements containing commas do not
// round-trip.
func parseOptionText(kind option.Kind, text string) (option.Value, error) {
	if !kind.IsList() {
		return option.Parse(kind, text)
	}
	if text == "" {
		return option.List(kind.Elem())
	}
	parts := strings.Split(text, ",")
	elems := make([]option.Value, len(parts))
	for i, part := range parts {
		v, err := option.Parse(kind.Elem(), part)
		if err != nil {
			return option.Value{}, err
		}
		elems[i] = v
	}
	return option.List(kind.Elem(), elems...)
}
