// Command tunecore-example runs worked synthetic scenarios
// directly against the registered strategies, with no compressor or host
// shell involved, so the search-strategy contract can be exercised and
// demonstrated standalone.
package main

import (
	"fmt"
	"os"

	"tunecore/examples"
	"tunecore/internal/search/strategy"

	_ "tunecore/internal/search/strategies" // registers the built-in strategies
)

func main() {
	run("binary", strategy.Options{
		"opt:lower_bound":          []float64{0.0},
		"opt:upper_bound":          []float64{1.0},
		"opt:target":               42.0,
		"opt:global_rel_tolerance": 0.01,
		"opt:max_iterations":       50,
	}, examples.BinaryCRTarget)

	run("fraz", strategy.Options{
		"opt:lower_bound":         []float64{1e-4},
		"opt:upper_bound":         []float64{0.1},
		"opt:objective_mode_name": "max",
		"opt:max_iterations":      60,
		"fraz:nthreads":           1,
	}, examples.FrazConstrainedMaximize)
}

func run(id string, opts strategy.Options, eval strategy.EvalFunc) {
	s, err := strategy.Default().Instantiate(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: instantiate: %v\n", id, err)
		os.Exit(1)
	}
	if err := s.SetOptions(opts); err != nil {
		fmt.Fprintf(os.Stderr, "%s: set options: %v\n", id, err)
		os.Exit(1)
	}
	res := s.Search(eval, strategy.NewStopToken())
	fmt.Printf("%s: status=%d inputs=%v output=%v msg=%q\n", id, res.Status, res.Inputs, res.Output, res.Msg)
}
