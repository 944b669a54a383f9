package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360/simkernel/client"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
)

// cmdLs prints one line per child of the addressed component.
func cmdLs(ctx context.Context, c *client.Client, flags *cliFlags, args []string) error {
	path, err := optionalPath(args, "ls [path]")
	if err != nil {
		return err
	}
	snap, err := c.ListTree(ctx, path)
	if err != nil {
		return err
	}
	if flags.jsonOutput {
		return printJSON(snap.Children)
	}
	for _, child := range snap.Children {
		name := child.Name
		if child.Target != "" {
			name += " -> " + child.Target
		}
		fmt.Printf("%-16s %-28s %s\n", child.Type, name, child.Descr)
	}
	return nil
}

// cmdTree prints the whole subtree, indented.
func cmdTree(ctx context.Context, c *client.Client, flags *cliFlags, args []string) error {
	path, err := optionalPath(args, "tree [path]")
	if err != nil {
		return err
	}
	snap, err := c.ListTree(ctx, path)
	if err != nil {
		return err
	}
	if flags.jsonOutput {
		return printJSON(snap)
	}
	printTree(snap, 0)
	return nil
}

func cmdCreate(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 3 {
		return usageError("create <parent> <type> <name>")
	}
	path, err := c.CreateComponent(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func cmdLink(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 3 {
		return usageError("link <parent> <name> <target>")
	}
	path, err := c.CreateLink(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func cmdDelete(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 2 {
		return usageError("delete <parent> <name>")
	}
	return c.DeleteComponent(ctx, args[0], args[1])
}

func cmdRename(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 2 {
		return usageError("rename <path> <new-name>")
	}
	return c.RenameComponent(ctx, args[0], args[1])
}

// cmdSet parses name=value pairs against the component's declared option
// kinds and applies them in the given order.
func cmdSet(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 2 {
		return usageError("set <path> <name=value ...>")
	}
	path := args[0]

	infos, err := c.ListOptions(ctx, path)
	if err != nil {
		return err
	}
	kinds := make(map[string]option.Kind, len(infos))
	for _, info := range infos {
		kind, err := option.ParseKind(info.Kind)
		if err != nil {
			return fmt.Errorf("option %q declares kind %q: %w", info.Name, info.Kind, err)
		}
		kinds[info.Name] = kind
	}

	fields := make([]signal.Field, 0, len(args)-1)
	for _, raw := range args[1:] {
		name, text, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("argument %q is not name=value", raw)
		}
		kind, ok := kinds[name]
		if !ok {
			return fmt.Errorf("component %s has no option %q", path, name)
		}
		val, err := parseValue(kind, text)
		if err != nil {
			return fmt.Errorf("option %q: %w", name, err)
		}
		fields = append(fields, signal.R(name, val))
	}
	return c.Configure(ctx, path, fields...)
}

func cmdOptions(ctx context.Context, c *client.Client, flags *cliFlags, args []string) error {
	if len(args) != 1 {
		return usageError("options <path>")
	}
	infos, err := c.ListOptions(ctx, args[0])
	if err != nil {
		return err
	}
	if flags.jsonOutput {
		return printJSON(infos)
	}
	for _, info := range infos {
		printOption(info)
	}
	return nil
}

func cmdSignals(ctx context.Context, c *client.Client, flags *cliFlags, args []string) error {
	if len(args) != 1 {
		return usageError("signals <path>")
	}
	infos, err := c.ListSignals(ctx, args[0])
	if err != nil {
		return err
	}
	if flags.jsonOutput {
		return printJSON(infos)
	}
	for _, info := range infos {
		printSignal(info)
	}
	return nil
}

// cmdCall invokes any signal by name. Arguments parse against the
// signal's declared schema; names the schema does not declare go over as
// strings, which is what open signals expect.
func cmdCall(ctx context.Context, c *client.Client, flags *cliFlags, args []string) error {
	if len(args) < 2 {
		return usageError("call <path> <signal> [name=value ...]")
	}
	path, signalName := args[0], args[1]

	fields, err := callFields(ctx, c, path, signalName, args[2:])
	if err != nil {
		return err
	}
	reply, err := c.Call(ctx, path, signalName, fields...)
	if err != nil {
		return err
	}
	return printReply(flags, reply)
}

func callFields(ctx context.Context, c *client.Client, path, signalName string, raw []string) ([]signal.Field, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	infos, err := c.ListSignals(ctx, path)
	if err != nil {
		return nil, err
	}
	kinds := make(map[string]option.Kind)
	for _, info := range infos {
		if info.Name != signalName {
			continue
		}
		for _, arg := range info.Args {
			kind, err := option.ParseKind(arg.Kind)
			if err != nil {
				return nil, fmt.Errorf("signal %q argument %q declares kind %q: %w",
					signalName, arg.Name, arg.Kind, err)
			}
			kinds[arg.Name] = kind
		}
	}

	fields := make([]signal.Field, 0, len(raw))
	for _, a := range raw {
		name, text, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q is not name=value", a)
		}
		val := option.String(text)
		if kind, ok := kinds[name]; ok {
			parsed, err := parseValue(kind, text)
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", name, err)
			}
			val = parsed
		}
		fields = append(fields, signal.R(name, val))
	}
	return fields, nil
}

func cmdSave(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 1 {
		return usageError("save <name>")
	}
	return c.SaveTree(ctx, ".", args[0])
}

func cmdLoad(ctx context.Context, c *client.Client, args []string) error {
	if len(args) != 1 {
		return usageError("load <name>")
	}
	return c.LoadTree(ctx, ".", args[0])
}

func cmdTrees(ctx context.Context, c *client.Client, flags *cliFlags, args []string) error {
	if len(args) != 0 {
		return usageError("trees")
	}
	reply, err := c.Call(ctx, ".", "list_trees")
	if err != nil {
		return err
	}
	return printReply(flags, reply)
}

// optionalPath reads an optional single path argument, defaulting to the
// server root.
func optionalPath(args []string, usage string) (string, error) {
	switch len(args) {
	case 0:
		return ".", nil
	case 1:
		return args[0], nil
	default:
		return "", usageError(usage)
	}
}

func usageError(usage string) error {
	return fmt.Errorf("usage: %s %s", appName, usage)
}
