package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/seqtest/seqtest/internal/env"
)

const envHelp = `seqtest env [-flags]

Display seqtest variables.

Example:
  % seqtest env
`

func printenv(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("env", flag.ExitOnError)
	fset.Usage = usage(fset, envHelp)
	fset.Parse(args)
	if fset.NArg() > 0 {
		switch fset.Arg(0) {
		case "SEQTESTROOT":
			fmt.Println(env.ProjectRoot)
		case "SEQTEST_COMPILER":
			fmt.Println(env.CompilerTag())
		}
		return nil
	}
	fmt.Printf("SEQTESTROOT=%q\n", env.ProjectRoot)
	fmt.Printf("SEQTEST_COMPILER=%q\n", env.CompilerTag())
	return nil
}
