// Command hvmc runs the interaction-combinator evaluator: reduce a
// textual net program or a single expression to normal form, or dump its
// heap image, per spec.md §6.
package main

import (
	"os"

	"github.com/hvm-core/hvmc/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
