// Package main implements skctl, the command-line client for a running
// simkernel server. Each invocation dials the server, runs one command
// against the component tree, prints the reply, and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/c360/simkernel/client"
	"github.com/c360/simkernel/gateway"
	"github.com/c360/simkernel/pkg/security"
)

const (
	Version = "0.1.0"
	appName = "skctl"
)

// cliFlags holds the global flags shared by every command.
type cliFlags struct {
	addr        string
	authToken   string
	caFile      string
	timeout     time.Duration
	jsonOutput  bool
	showVersion bool
}

func main() {
	flags, args := parseCommandLine()

	if flags.showVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return
	}
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	os.Exit(execute(flags, args[0], args[1:]))
}

func parseCommandLine() (*cliFlags, []string) {
	flags := &cliFlags{}

	flag.StringVar(&flags.addr, "addr",
		getEnv("SIMKERNEL_ADDR", fmt.Sprintf("tcp://localhost:%d", gateway.DefaultPort)),
		"Server address: tcp://host:port, ws://host:port/path, or wss://... (env: SIMKERNEL_ADDR)")

	flag.StringVar(&flags.authToken, "token",
		getEnv("SIMKERNEL_AUTH_TOKEN", ""),
		"Bearer token for servers that require one (env: SIMKERNEL_AUTH_TOKEN)")

	flag.StringVar(&flags.caFile, "tls-ca", "",
		"CA certificate file for server verification; enables TLS over tcp")

	flag.DurationVar(&flags.timeout, "timeout", 10*time.Second, "Command timeout")
	flag.BoolVar(&flags.jsonOutput, "json", false, "Print listings as JSON")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version information")

	flag.Usage = printUsage
	flag.Parse()

	return flags, flag.Args()
}

func execute(flags *cliFlags, command string, args []string) int {
	c, err := connect(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	if err := runCommand(ctx, c, flags, command, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func connect(flags *cliFlags) (*client.Client, error) {
	opts := []client.ClientOption{client.WithDialTimeout(flags.timeout)}
	if flags.authToken != "" {
		opts = append(opts, client.WithAuthToken(flags.authToken))
	}
	if flags.caFile != "" {
		opts = append(opts, client.WithTLS(security.ClientTLSConfig{
			CAFiles: []string{flags.caFile},
		}))
	}
	return client.Dial(flags.addr, opts...)
}

func runCommand(ctx context.Context, c *client.Client, flags *cliFlags, command string, args []string) error {
	switch command {
	case "ls":
		return cmdLs(ctx, c, flags, args)
	case "tree":
		return cmdTree(ctx, c, flags, args)
	case "create":
		return cmdCreate(ctx, c, args)
	case "link":
		return cmdLink(ctx, c, args)
	case "delete", "rm":
		return cmdDelete(ctx, c, args)
	case "rename", "mv":
		return cmdRename(ctx, c, args)
	case "set":
		return cmdSet(ctx, c, args)
	case "options":
		return cmdOptions(ctx, c, flags, args)
	case "signals":
		return cmdSignals(ctx, c, flags, args)
	case "call":
		return cmdCall(ctx, c, flags, args)
	case "save":
		return cmdSave(ctx, c, args)
	case "load":
		return cmdLoad(ctx, c, args)
	case "trees":
		return cmdTrees(ctx, c, flags, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - command-line client for a simkernel server

Usage: %s [options] <command> [args...]

Commands:
  ls [path]                              list the children of a component
  tree [path]                            print the subtree under a component
  create <parent> <type> <name>          create a component of a registered type
  link <parent> <name> <target>          create a link aimed at target
  delete <parent> <name>                 delete a child and its subtree
  rename <path> <new-name>               rename a component in place
  set <path> <name=value ...>            set option values
  options <path>                         list declared options
  signals <path>                         list invocable signals
  call <path> <signal> [name=value ...]  invoke a signal and print the reply
  save <name>                            store a named snapshot of the tree
  load <name>                            rebuild components from a snapshot
  trees                                  list stored snapshots

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Paths: "." is the server root; absolute paths start with "//" followed by
the root name ("//root/sensors/imu"). List values are comma-joined
("set //root/f gains=0.5,1.5").
`)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
