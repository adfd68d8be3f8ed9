package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tcldrv/tcldrv"
	"github.com/tcldrv/tcldrv/internal/adapter"
	"github.com/tcldrv/tcldrv/internal/config"
	"github.com/tcldrv/tcldrv/internal/handle"
	"github.com/tcldrv/tcldrv/internal/replui"
)

func resolveAdapter(ac config.AdapterConfig) (tcldrv.Adapter, error) {
	switch strings.ToLower(ac.Kind) {
	case "", "tclsh":
		return adapter.Tclsh{Path: ac.Path}, nil
	case "vivado":
		return adapter.Vivado{Path: ac.Path}, nil
	case "yosys":
		return adapter.Yosys{Path: ac.Path}, nil
	case "custom":
		return adapter.Custom{Argv: ac.Argv}, nil
	default:
		return nil, fmt.Errorf("unknown adapter kind %q", ac.Kind)
	}
}

func optionsFromConfig(sc config.SessionConfig) tcldrv.Options {
	return tcldrv.Options{
		Cwd:             sc.Cwd,
		Interact:        sc.Interact,
		PTY:             sc.PTY,
		LogCommands:     sc.LogCommands,
		LogRetvals:      sc.LogRetvals,
		LogFancy:        sc.LogFancy,
		DebugTcl:        sc.DebugTcl,
		DebugPy:         sc.DebugPy,
		AbortOnError:    sc.AbortOnError,
		CalledObjectPos: handle.ObjectPosition(sc.CalledObjectPos),
		Env:             sc.Env,
		AddPath:         sc.AddPath,
		EvalHistorySize: sc.EvalHistorySize,
	}
}

func main() {
	cli := parseCLI()

	if !cli.Debug {
		log.SetOutput(os.Stderr)
	}

	var cfg config.Config
	if cli.ConfigFile != "" {
		loaded, err := config.Load(cli.ConfigFile)
		if err != nil {
			log.Fatalf("tcldrv: %v", err)
		}
		cfg = *loaded
	}

	ad, err := resolveAdapter(cfg.Adapter)
	if err != nil {
		log.Fatalf("tcldrv: %v", err)
	}

	if hash, err := cfg.ToHash(); err == nil && cli.Debug {
		log.Printf("tcldrv: running with config hash %s", hash)
	}

	opts := optionsFromConfig(cfg.Session)
	opts.ScriptPath = cli.ScriptPath
	opts.DebugPy = opts.DebugPy || cli.Debug
	opts.Interact = opts.Interact || cli.Interact

	switch cli.Subcommand {
	case "eval":
		if len(cli.Args) == 0 {
			fmt.Fprintln(os.Stderr, "tcldrv: eval requires a Tcl command argument")
			os.Exit(2)
		}
		cmd := strings.Join(cli.Args, " ")
		err := tcldrv.Run(ad, opts, func(t *tcldrv.Tool) error {
			h, err := t.Eval(cmd)
			if err != nil {
				return err
			}
			fmt.Println(h.String())
			return nil
		})
		if err != nil {
			log.Fatalf("tcldrv: %v", err)
		}
	case "repl":
		err := tcldrv.Run(ad, opts, func(t *tcldrv.Tool) error {
			return replui.Run(t)
		})
		if err != nil {
			log.Fatalf("tcldrv: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "tcldrv: unknown command %q\n", cli.Subcommand)
		printUsage()
		os.Exit(2)
	}
}
