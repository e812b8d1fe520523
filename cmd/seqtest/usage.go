package main

import (
	"flag"
	"fmt"
	"os"
)

// usage returns a flag.FlagSet.Usage func that prints helpText followed by
// the set's own flag defaults.
func usage(fset *flag.FlagSet, helpText string) func() {
	return func() {
		fmt.Fprintln(os.Stderr, helpText)
		fmt.Fprintf(os.Stderr, "Flags for seqtest %s:\n", fset.Name())
		fset.PrintDefaults()
	}
}
