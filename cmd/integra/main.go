package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

const usage = `integra evaluates definite integrals of expressions in x, y and z.

Usage:
  integra <command> [flags]

Commands:
  solve     integrate an expression or preset
  samples   evaluate an expression on a plotting grid
  presets   list ready-made problems
  history   list, show or prune recorded runs
  serve     run the MCP server on stdio and, optionally, the HTTP API
  config    print or write the effective configuration
  reload    ask a running server to reload its configuration
  version   print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "solve":
		err = runSolve(args, os.Stdout)
	case "samples":
		err = runSamples(args, os.Stdout)
	case "presets":
		err = runPresets(args, os.Stdout)
	case "history":
		err = runHistory(args, os.Stdout)
	case "serve":
		err = runServe(args)
	case "config":
		err = runConfig(args, os.Stdout)
	case "reload":
		err = runReload()
	case "version", "-v", "--version":
		printVersion(os.Stdout)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}
