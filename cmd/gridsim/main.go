// Command gridsim paper-trades a grid strategy against live market prices.
//
// Usage:
//
//	gridsim setup
//	gridsim run --config gridsim.gen.yaml
//	gridsim status --config gridsim.gen.yaml
package main

import (
	"os"

	"github.com/vadiminshakov/gridsim/cmd/gridsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
