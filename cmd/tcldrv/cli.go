package main

import (
	"flag"
	"fmt"
	"os"
)

// cliConfig holds the parsed command-line configuration for one invocation
// of the driver CLI.
type cliConfig struct {
	ConfigFile string
	ScriptPath string
	Subcommand string
	Args       []string

	Interact bool
	Debug    bool
}

// parseCLI parses command-line arguments into a cliConfig. Subcommand
// defaults to "eval" when no positional argument names one.
func parseCLI() *cliConfig {
	cfg := &cliConfig{}

	flag.StringVar(&cfg.ConfigFile, "f", "", "path to config file (default: none, built-in defaults apply)")
	flag.StringVar(&cfg.ScriptPath, "script", "", "path to the companion Tcl script the adapter sources at startup")
	flag.BoolVar(&cfg.Interact, "interact", false, "hand control to the Tcl tool interactively once the body finishes")
	flag.BoolVar(&cfg.Debug, "debug", false, "print driver-side lifecycle diagnostics")
	flag.Usage = printUsage
	flag.Parse()

	cfg.Args = flag.Args()
	cfg.Subcommand = "eval"
	if len(cfg.Args) > 0 {
		cfg.Subcommand = cfg.Args[0]
		cfg.Args = cfg.Args[1:]
	}

	return cfg
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  eval <tcl source>   Evaluate one Tcl command and print its result\n")
	fmt.Fprintf(os.Stderr, "  repl                 Start an interactive command/response REPL\n")
}
