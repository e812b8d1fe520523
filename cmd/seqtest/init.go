package main

import (
	"context"
	"flag"
	"os/exec"

	"github.com/seqtest/seqtest/internal/scaffold"
	"github.com/seqtest/seqtest/internal/shell"
	"golang.org/x/xerrors"
)

const initHelp = `seqtest init <copyright> <path> [-flags]

Scaffold a brand-new project's directory layout at <path>, named after its
base directory.
`

func initCmd(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("init", flag.ExitOnError)
	toFiles := fset.Bool("to-files", false, "stamp the copyright line into the generated main .cpp (other generated files are not stamped)")
	noIDE := fset.Bool("no-ide", false, "skip IDE project-file scaffolding")
	noGit := fset.Bool("no-git", false, "skip running git init")
	fset.Usage = usage(fset, initHelp)
	fset.Parse(args)

	positional := fset.Args()
	if len(positional) < 2 {
		return xerrors.New("seqtest: init requires <copyright> <path>")
	}

	req := scaffold.ProjectRequest{
		Copyright: positional[0],
		Path:      positional[1],
		ToFiles:   *toFiles,
		NoIDE:     *noIDE,
		NoGit:     *noGit,
	}
	if err := scaffold.InitProject(req); err != nil {
		return err
	}

	if !req.NoGit {
		if _, err := exec.LookPath("git"); err == nil {
			if err := shell.Invoke(ctx, shell.InDir(req.Path, shell.New("git init"))); err != nil {
				return xerrors.Errorf("seqtest: git init: %w", err)
			}
		}
	}
	return nil
}
