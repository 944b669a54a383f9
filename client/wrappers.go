package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360/simkernel/component"
	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
	"github.com/c360/simkernel/wire"
)

// The typed wrappers cover the tree-management signals every attached
// component answers. They are thin: each one is a Call with the argument
// schema spelled out, plus decoding for the reply payloads that ride as
// JSON documents in string arguments.

// Configure sets options on the target component. Fields apply in the order
// given; the first failing option aborts the rest with earlier commits
// retained, so on error the component may be partially configured.
func (c *Client) Configure(ctx context.Context, target string, fields ...signal.Field) error {
	_, err := c.Call(ctx, target, "configure", fields...)
	return err
}

// CreateComponent constructs a child of a registered type under parent and
// returns the new component's absolute path. The type name may be bare or
// library-qualified ("Group" or "kernel.Group").
func (c *Client) CreateComponent(ctx context.Context, parent, typeName, name string) (string, error) {
	reply, err := c.Call(ctx, parent, "create_component",
		signal.R("name", option.String(name)),
		signal.R("type", option.String(typeName)))
	if err != nil {
		return "", err
	}
	return stringArg(reply, "path")
}

// CreateLink creates a link child under parent aimed at target, in one
// call, and returns the link's absolute path. A target that does not
// resolve fails before anything attaches.
func (c *Client) CreateLink(ctx context.Context, parent, name, target string) (string, error) {
	reply, err := c.Call(ctx, parent, "create_component",
		signal.R("name", option.String(name)),
		signal.R("type", option.String("kernel.Link")),
		signal.R("target", option.String(target)))
	if err != nil {
		return "", err
	}
	return stringArg(reply, "path")
}

// DeleteComponent detaches the named child of parent and destroys its
// subtree.
func (c *Client) DeleteComponent(ctx context.Context, parent, name string) error {
	_, err := c.Call(ctx, parent, "delete_component",
		signal.R("name", option.String(name)))
	return err
}

// RenameComponent renames the component at target in place.
func (c *Client) RenameComponent(ctx context.Context, target, newName string) error {
	_, err := c.Call(ctx, target, "rename_component",
		signal.R("name", option.String(newName)))
	return err
}

// ListTree returns the snapshot of the subtree rooted at target.
func (c *Client) ListTree(ctx context.Context, target string) (component.Snapshot, error) {
	reply, err := c.Call(ctx, target, "list_tree")
	if err != nil {
		return component.Snapshot{}, err
	}
	var snap component.Snapshot
	if err := jsonArgInto(reply, "tree", &snap); err != nil {
		return component.Snapshot{}, err
	}
	return snap, nil
}

// ListOptions returns the target's declared options in declaration order.
func (c *Client) ListOptions(ctx context.Context, target string) ([]option.Info, error) {
	reply, err := c.Call(ctx, target, "list_options")
	if err != nil {
		return nil, err
	}
	var infos []option.Info
	if err := jsonArgInto(reply, "options", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// ListSignals returns the target's visible signals in registration order.
func (c *Client) ListSignals(ctx context.Context, target string) ([]signal.Info, error) {
	reply, err := c.Call(ctx, target, "list_signals")
	if err != nil {
		return nil, err
	}
	var infos []signal.Info
	if err := jsonArgInto(reply, "signals", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// ListProperties returns the target's property snapshot in declaration
// order.
func (c *Client) ListProperties(ctx context.Context, target string) ([]option.PropertyInfo, error) {
	reply, err := c.Call(ctx, target, "list_properties")
	if err != nil {
		return nil, err
	}
	var infos []option.PropertyInfo
	if err := jsonArgInto(reply, "properties", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// SaveTree stores a named snapshot of the subtree at target. The signal is
// answered by the root when the server runs with a tree store.
func (c *Client) SaveTree(ctx context.Context, target, name string) error {
	_, err := c.Call(ctx, target, "save_tree",
		signal.R("name", option.String(name)))
	return err
}

// LoadTree rebuilds components under target from the named snapshot.
func (c *Client) LoadTree(ctx context.Context, target, name string) error {
	_, err := c.Call(ctx, target, "load_tree",
		signal.R("name", option.String(name)))
	return err
}

func stringArg(reply *wire.Frame, name string) (string, error) {
	val, ok := reply.Arg(name)
	if !ok {
		return "", fmt.Errorf("reply missing argument %q: %w", name, kerrors.ErrArgumentMismatch)
	}
	s, err := val.Str()
	if err != nil {
		return "", fmt.Errorf("reply argument %q: %w", name, err)
	}
	return s, nil
}

func jsonArgInto(reply *wire.Frame, name string, v any) error {
	text, err := stringArg(reply, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("decode %q listing: %v: %w", name, err, kerrors.ErrProtocolError)
	}
	return nil
}
