// Command seqtest is the dependency-aware test harness and build
// orchestration CLI: it drives the prune, select, execute, update-prune
// and summarize flow (internal/runner) and the `create`/`init`/
// `update-materials`/`recover`/`dump` ancillary verbs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/seqtest/seqtest"
)

var (
	debug       = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	versionFlag = flag.Bool("version", false, "print the seqtest build stamp and exit")
)

// version is a build stamp, overridable via -ldflags "-X main.version=...".
var version = "development"

type cmd struct {
	fn func(ctx context.Context, args []string) error
}

func funcmain() error {
	flag.Parse()

	if *versionFlag {
		fmt.Println("seqtest", version)
		return nil
	}

	verbs := map[string]cmd{
		"create":           {createCmd},
		"init":             {initCmd},
		"update-materials": {updateMaterialsCmd},
		"u":                {updateMaterialsCmd},
		"recover":          {recoverCmd},
		"dump":             {dumpCmd},
		"env":              {printenv},
	}

	args := flag.Args()
	verb := ""
	if len(args) > 0 {
		verb = args[0]
	}

	ctx, canc := seqtest.InterruptibleContext()
	defer canc()

	var err error
	if v, ok := verbs[verb]; ok {
		err = v.fn(ctx, args[1:])
	} else {
		// test/select/prune/locate and the run modifiers compose freely,
		// so they are not routed through the one-shot verbs map: the
		// whole remaining argument stream is the run's own grammar.
		err = runCmd(ctx, args)
	}
	if err != nil {
		if *debug {
			return fmt.Errorf("seqtest: %+v", err)
		}
		return fmt.Errorf("seqtest: %v", err)
	}

	return seqtest.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
