// Command tuneset tunes solver parameters over a set of problem files and
// optionally saves the tuned settings.
package main

import (
	"os"

	"github.com/GoSim-25-26J-441/tuneset/internal/solver"
	_ "github.com/GoSim-25-26J-441/tuneset/internal/solver/builtin"
)

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr, open: solver.Open, lookupEnv: os.LookupEnv}
	os.Exit(a.run(os.Args[1:]))
}
