package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/c360/simkernel/component"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
	"github.com/c360/simkernel/wire"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTree(snap component.Snapshot, depth int) {
	label := snap.Name
	if snap.Target != "" {
		label += " -> " + snap.Target
	}
	fmt.Printf("%s%s (%s)\n", strings.Repeat("  ", depth), label, snap.Type)
	for _, child := range snap.Children {
		printTree(child, depth+1)
	}
}

func printOption(info option.Info) {
	marks := make([]string, 0, 2)
	if info.Basic {
		marks = append(marks, "basic")
	}
	if info.Locked {
		marks = append(marks, "locked")
	}
	suffix := ""
	if len(marks) > 0 {
		suffix = " [" + strings.Join(marks, ",") + "]"
	}

	fmt.Printf("%-20s %-10s %-20s %s%s\n", info.Name, info.Kind, info.Current, info.Description, suffix)
	if len(info.Allowed) > 0 {
		fmt.Printf("%-20s %-10s allowed: %s\n", "", "", strings.Join(info.Allowed, ", "))
	}
	if info.Min != "" || info.Max != "" {
		fmt.Printf("%-20s %-10s range: %s..%s\n", "", "", info.Min, info.Max)
	}
}

func printSignal(info signal.Info) {
	params := make([]string, 0, len(info.Args))
	for _, arg := range info.Args {
		p := arg.Name + ":" + arg.Kind
		if !arg.Required {
			p += "?"
		}
		params = append(params, p)
	}
	if info.Open {
		params = append(params, "...")
	}

	mark := ""
	if info.ReadOnly {
		mark = " [read-only]"
	}
	fmt.Printf("%-24s (%s)%s %s\n", info.Name, strings.Join(params, ", "), mark, info.Description)
}

func printReply(flags *cliFlags, reply *wire.Frame) error {
	if flags.jsonOutput {
		doc := make(map[string]string, len(reply.Args))
		for _, f := range reply.Args {
			doc[f.Name] = f.Value.Format()
		}
		return printJSON(doc)
	}
	for _, f := range reply.Args {
		fmt.Printf("%s = %s\n", f.Name, f.Value.Format())
	}
	return nil
}

// parseValue turns CLI text into a typed value. List values are the
// comma-joined form, matching how Format renders them.
func parseValue(kind option.Kind, text string) (option.Value, error) {
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
