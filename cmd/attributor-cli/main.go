// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"attributor/internal/config"
	"attributor/internal/diag"
	"attributor/internal/driver"
	"attributor/internal/ir"
	"attributor/internal/irtext"
)

func main() {
	dumpAttrs := flag.Bool("dump-attrs", false, "print every surviving attribute record instead of the rewritten IR")
	iterationCap := flag.Int("iteration-cap", 0, "override the fixpoint loop's iteration cap (0 keeps the default)")
	noHeapToStack := flag.Bool("no-heap-to-stack", false, "disable the heap-to-stack rewrite")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: attributor-cli [flags] <file.air>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	m, err := irtext.ParseFile(path)
	if err != nil {
		if d, ok := err.(diag.Diagnostic); ok {
			r := diag.NewReporter()
			r.Print(d)
			fmt.Fprint(os.Stderr, r.String())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	cfg := config.Default()
	if *iterationCap > 0 {
		cfg.IterationCap = *iterationCap
	}
	if *noHeapToStack {
		cfg.HeapToStackEnabled = false
	}

	res := driver.RunOnFunctions(m, cfg)

	if diags := res.Diagnostics.String(); diags != "" {
		fmt.Fprint(os.Stderr, diags)
	}

	if *dumpAttrs {
		for _, r := range res.Engine.Records() {
			if r.IsValidState() {
				fmt.Println(r.String())
			}
		}
	} else {
		fmt.Print(ir.Print(m))
	}

	color.Green("✅ Successfully processed %s (%d iterations)", path, res.Iterations)
}
