package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/seqtest/seqtest/internal/env"
	"github.com/seqtest/seqtest/internal/oninterrupt"
	"github.com/seqtest/seqtest/internal/paths"
	"github.com/seqtest/seqtest/internal/registry"
	"github.com/seqtest/seqtest/internal/runner"
	"github.com/seqtest/seqtest/internal/summary"
	"github.com/seqtest/seqtest/internal/trace"
)

const runHelp = `seqtest [-flags] [test <suite>]... [select <source-file>]... [prune [--cutoff <token>]] [locate <N> [--sandbox]] [--serial] [--async-depth <depth>] [-v] [--recover] [--trace]

Build a run set from zero or more "test <suite>" / "select <source-file>"
selectors (selections accumulate), then either run it once or, with
"locate <N>", run it N times and report which tests were unstable across
replicas.

With no selector and without "prune", every registered test runs. With
"prune" and no explicit selector, the dependency analyzer supplies the
rerun set instead.
`

func openProject() (*paths.Project, error) {
	root := env.ProjectRoot
	return paths.New(paths.Config{
		ProjectRoot: root,
		ProjectName: filepath.Base(root),
		CompilerTag: env.CompilerTag(),
	})
}

// runCmd implements the default (no one-shot verb) invocation: building a
// run set from test/select/prune/locate tokens and the concurrency/verbosity
// flags, then driving internal/runner.
func runCmd(ctx context.Context, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}

	r := registry.New()
	if err := registerBuiltinTests(r); err != nil {
		return err
	}

	cfg := runner.Config{
		Project:     p,
		Registry:    r,
		Concurrency: runner.Dynamic,
	}

	var (
		locateReplicas int
		sandbox        bool
		explicitMode   bool
	)

	i := 0
	next := func() (string, error) {
		i++
		if i >= len(args) {
			return "", xerrors.New("seqtest: missing argument")
		}
		return args[i], nil
	}

	for i < len(args) {
		switch args[i] {
		case "test":
			name, err := next()
			if err != nil {
				return err
			}
			if !r.SelectBySuite(name) {
				log.Printf("warning: suite %q not found", name)
			}
		case "select":
			rel, err := next()
			if err != nil {
				return err
			}
			abs, err := filepath.Abs(filepath.Join(p.TestsRoot(), rel))
			if err != nil {
				return xerrors.Errorf("seqtest: resolving %q: %w", rel, err)
			}
			if !r.SelectBySource(abs) {
				log.Printf("warning: source %q not found", rel)
			}
		case "prune":
			cfg.Prune = true
		case "--cutoff":
			token, err := next()
			if err != nil {
				return err
			}
			cfg.Cutoff = token
		case "locate":
			n, err := next()
			if err != nil {
				return err
			}
			locateReplicas, err = strconv.Atoi(n)
			if err != nil {
				return xerrors.Errorf("seqtest: locate requires an integer replica count, got %q", n)
			}
		case "--sandbox":
			sandbox = true
		case "--serial":
			cfg.Concurrency = runner.Serial
			explicitMode = true
		case "--async-depth":
			n, err := next()
			if err != nil {
				return err
			}
			depth, err := strconv.Atoi(n)
			if err != nil {
				return xerrors.Errorf("seqtest: --async-depth requires an integer, got %q", n)
			}
			cfg.AsyncDepth = depth
		case "-v":
			cfg.Verbose = true
		case "--recover":
			cfg.Recovery = true
		case "--trace":
			if err := trace.Enable("run"); err != nil {
				return xerrors.Errorf("seqtest: enabling trace: %w", err)
			}
		case "--help", "-help", "help":
			fmt.Fprint(os.Stderr, runHelp)
			return nil
		default:
			return xerrors.Errorf("seqtest: unrecognized argument %q", args[i])
		}
		i++
	}

	// Recovery journalling needs one test at a time; unless the user asked
	// for a specific concurrency mode, quietly fall back to serial rather
	// than reject the default.
	if cfg.Recovery && !explicitMode {
		cfg.Concurrency = runner.Serial
	}

	verbosity := summary.DetailFailureMessages
	if cfg.Verbose {
		verbosity |= summary.DetailTimings
	}

	if locateReplicas > 0 {
		if sandbox {
			cfg.SandboxOutputRoot = filepath.Join(p.OutputRoot(), "LocateSandbox")
			oninterrupt.Register(func() { os.RemoveAll(cfg.SandboxOutputRoot) })
		}
		result, err := runner.Locate(ctx, cfg, locateReplicas)
		if err != nil {
			return err
		}
		fmt.Print(runner.FormatInstability(result))
		return nil
	}

	result, err := runner.Run(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Print(runner.FormatReport(result, verbosity))
	return nil
}
