package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360/simkernel/component"
	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
)

// Core signal handlers run inside Invoke, which already holds the kernel
// lock on the side matching the signal's read-only flag. Handlers therefore
// call the unlocked helpers (createLocked, deleteLocked) and never the
// public Kernel methods, which would self-deadlock.

// installCoreSignals walks the subtree and registers the tree-management
// signals on every node that lacks them. Constructors may pre-attach
// children, so installation is per node, not per call.
func (k *Kernel) installCoreSignals(c component.Component) {
	c.AsBase().Walk(func(n component.Component) bool {
		if !n.Signals().Has("list_tree") {
			k.installOn(n)
		}
		return component.Continue
	})
}

func (k *Kernel) installOn(n component.Component) {
	sigs := n.Signals()

	sigs.MustRegister("create_component",
		"construct a child of a registered type and attach it here",
		func(_ context.Context, args signal.Values) (signal.Result, error) {
			return k.handleCreate(n, args)
		},
		signal.Schema{
			signal.Required("name", "instance name, unique among siblings", option.KindString),
			signal.Required("type", "registered type, bare or library-qualified", option.KindString),
			signal.Optional("basic", "include the basic options in the reply", option.Bool(false)),
			signal.Optional("target", "preset for the target option, links mostly", option.String("")),
		}).Returns(signal.Schema{
		signal.Required("path", "absolute path of the new component", option.KindString),
	})

	sigs.MustRegister("delete_component",
		"detach the named child and destroy its subtree",
		func(_ context.Context, args signal.Values) (signal.Result, error) {
			name, err := args.Str("name")
			if err != nil {
				return nil, err
			}
			return nil, k.deleteLocked(n, name)
		},
		signal.Schema{
			signal.Required("name", "child to remove", option.KindString),
		})

	sigs.MustRegister("rename_component",
		"change this component's name, keeping its position",
		func(_ context.Context, args signal.Values) (signal.Result, error) {
			name, err := args.Str("name")
			if err != nil {
				return nil, err
			}
			if n == k.root {
				return nil, fmt.Errorf("cannot rename the root: %w", kerrors.ErrInvalidType)
			}
			return nil, n.AsBase().Rename(name)
		},
		signal.Schema{
			signal.Required("name", "new name", option.KindString),
		})

	sigs.MustRegister("configure",
		"set options, applied in argument order",
		func(_ context.Context, args signal.Values) (signal.Result, error) {
			return nil, configureLocked(n, args.Fields())
		}, nil).Open()

	sigs.MustRegister("list_tree",
		"snapshot of this subtree",
		func(_ context.Context, _ signal.Values) (signal.Result, error) {
			snap := component.TakeSnapshot(n)
			tree, err := jsonArg("tree", snap)
			if err != nil {
				return nil, err
			}
			return signal.Result{
				tree,
				signal.R("count", option.UInt(uint64(snap.Count()))),
			}, nil
		}, nil).ReadOnly().Returns(signal.Schema{
		signal.Required("tree", "subtree as a JSON document", option.KindString),
		signal.Required("count", "components in the subtree", option.KindUInt),
	})

	sigs.MustRegister("list_options",
		"declared options in declaration order",
		func(_ context.Context, _ signal.Values) (signal.Result, error) {
			infos := n.Options().Describe()
			opts, err := jsonArg("options", infos)
			if err != nil {
				return nil, err
			}
			return signal.Result{
				opts,
				signal.R("count", option.UInt(uint64(len(infos)))),
			}, nil
		}, nil).ReadOnly().Returns(signal.Schema{
		signal.Required("options", "option metadata as a JSON array", option.KindString),
		signal.Required("count", "declared options", option.KindUInt),
	})

	sigs.MustRegister("list_signals",
		"visible signals in registration order",
		func(_ context.Context, _ signal.Values) (signal.Result, error) {
			infos := n.Signals().Describe()
			sigInfos, err := jsonArg("signals", infos)
			if err != nil {
				return nil, err
			}
			return signal.Result{
				sigInfos,
				signal.R("count", option.UInt(uint64(len(infos)))),
			}, nil
		}, nil).ReadOnly().Returns(signal.Schema{
		signal.Required("signals", "signal metadata as a JSON array", option.KindString),
		signal.Required("count", "visible signals", option.KindUInt),
	})

	sigs.MustRegister("list_properties",
		"property snapshot in declaration order",
		func(_ context.Context, _ signal.Values) (signal.Result, error) {
			infos := n.Properties().Describe()
			props, err := jsonArg("properties", infos)
			if err != nil {
				return nil, err
			}
			return signal.Result{
				props,
				signal.R("count", option.UInt(uint64(len(infos)))),
			}, nil
		}, nil).ReadOnly().Returns(signal.Schema{
		signal.Required("properties", "property values as a JSON array", option.KindString),
		signal.Required("count", "declared properties", option.KindUInt),
	})
}

func (k *Kernel) handleCreate(parent component.Component, args signal.Values) (signal.Result, error) {
	name, err := args.Str("name")
	if err != nil {
		return nil, err
	}
	typeName, err := args.Str("type")
	if err != nil {
		return nil, err
	}
	basic, err := args.Bool("basic")
	if err != nil {
		return nil, err
	}
	target, err := args.Str("target")
	if err != nil {
		return nil, err
	}

	var preset []signal.Field
	if target != "" {
		preset = append(preset, signal.Field{Name: "target", Value: option.String(target)})
	}
	child, err := k.createLocked(parent, typeName, name, preset)
	if err != nil {
		return nil, err
	}

	result := signal.Result{
		signal.R("path", option.String(child.AsBase().FullPath())),
	}
	if basic {
		var basics []option.Info
		for _, info := range child.Options().Describe() {
			if info.Basic {
				basics = append(basics, info)
			}
		}
		opts, err := jsonArg("options", basics)
		if err != nil {
			return nil, err
		}
		result = append(result, opts)
	}
	return result, nil
}

// jsonArg renders a listing as one string-kind reply argument. The wire
// carries scalars and scalar lists only, so structured listings ride as
// JSON documents.
func jsonArg(name string, v any) (signal.Field, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return signal.Field{}, kerrors.WrapFatal(err, "Kernel", "jsonArg", "listing serialization")
	}
	return signal.R(name, option.String(string(data))), nil
}
