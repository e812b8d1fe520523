package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/seqtest/seqtest/internal/recovery"
)

const recoverHelp = `seqtest recover

Print the last check entered before the process last crashed, read from
the current project's recovery journal.
`

const dumpHelp = `seqtest dump

Print whatever diagnostic text the crashing test dumped into the recovery
journal.
`

func recoverCmd(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("recover", flag.ExitOnError)
	fset.Usage = usage(fset, recoverHelp)
	fset.Parse(args)

	p, err := openProject()
	if err != nil {
		return err
	}
	j, err := recovery.Open(p.RecoveryDir())
	if err != nil {
		return err
	}
	last, err := j.LastEntry()
	if err != nil {
		return err
	}
	if last == "" {
		fmt.Println("seqtest: no recovery entry recorded")
		return nil
	}
	fmt.Print(last)
	return nil
}

func dumpCmd(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("dump", flag.ExitOnError)
	fset.Usage = usage(fset, dumpHelp)
	fset.Parse(args)

	p, err := openProject()
	if err != nil {
		return err
	}
	j, err := recovery.Open(p.RecoveryDir())
	if err != nil {
		return err
	}
	dumps, err := j.Dumps()
	if err != nil {
		return err
	}
	if dumps == "" {
		fmt.Println("seqtest: nothing dumped")
		return nil
	}
	fmt.Print(dumps)
	return nil
}
