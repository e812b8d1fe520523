package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/seqtest/seqtest/internal/scaffold"
	"github.com/seqtest/seqtest/internal/shell"
)

const createHelp = `seqtest create <kind> <forename> [gen-source] [-flags]

Create a new test header (and, with the trailing "gen-source" keyword, a
matching source file) under Tests/<family>.

<kind> is one of: regular_test, move_only_test, regular_allocation_test,
move_only_allocation_test, free_test, performance_test.

With -build, the canonical build directory is reconfigured and rebuilt
after the new files land, so the fresh test is immediately runnable.
`

func createCmd(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("create", flag.ExitOnError)
	var family, classHeader, forename, equivalentType string
	fset.StringVar(&family, "family", "", "suite/family the test belongs to")
	fset.StringVar(&family, "f", "", "alias for --family")
	fset.StringVar(&classHeader, "class-header", "", "header declaring the type under test")
	fset.StringVar(&classHeader, "ch", "", "alias for --class-header")
	fset.StringVar(&forename, "forename", "", "name of the generated test (alternative to the positional form)")
	fset.StringVar(&equivalentType, "equivalent-type", "", "type check_equality compares against")
	fset.StringVar(&equivalentType, "e", "", "alias for --equivalent-type")
	build := fset.Bool("build", false, "re-run cmake and rebuild the canonical build directory afterwards")
	fset.Usage = usage(fset, createHelp)
	fset.Parse(args)

	positional := fset.Args()
	if len(positional) < 1 {
		return xerrors.New("seqtest: create requires <kind>")
	}
	rest := positional[1:]
	if forename == "" {
		if len(rest) == 0 {
			return xerrors.New("seqtest: create requires a forename, positionally or via --forename")
		}
		forename, rest = rest[0], rest[1:]
	}
	req := scaffold.Request{
		Kind:           scaffold.Kind(positional[0]),
		Family:         family,
		ClassHeader:    classHeader,
		Forename:       forename,
		EquivalentType: equivalentType,
		GenSource:      len(rest) > 0 && rest[0] == "gen-source",
	}
	if req.Family == "" {
		return xerrors.New("seqtest: create requires --family/-f")
	}

	p, err := openProject()
	if err != nil {
		return err
	}
	header, err := scaffold.CreateTest(p.TestsRoot(), req)
	if err != nil {
		return err
	}
	fmt.Println(header)

	if *build {
		buildDir := p.CanonicalBuildDir()
		logFile := filepath.Join(p.OutputRoot(), "BuildOutput.txt")
		cmd := shell.InDir(p.Main().Dir(),
			shell.CMakeCmd(nil, buildDir, logFile).And(shell.BuildCmd(buildDir, logFile)))
		if err := shell.Invoke(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}
