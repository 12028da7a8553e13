package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hvm-core/hvmc/internal/netrt"
	"github.com/hvm-core/hvmc/internal/syntax"
)

// NewReduceCommand builds `hvmc reduce -- <expr>`: wrap a single port
// expression in an implicit `@main = x & x ~ EXPR` definition and reduce
// it, mirroring original_source/src/main.rs's `hvmc reduce --` bare
// expression entry point.
func NewReduceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "reduce -- <expr>",
		Short:         "Reduce a single port expression to normal form",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := strings.Join(args, " ")
			src := "@main = x & x ~ " + expr

			bk, err := syntax.Build(src)
			if err != nil {
				return WrapExitError(ExitCommandError, "parsing expression", err)
			}

			pool, _, err := runBook(rootOpts, bk, "main")
			if err != nil {
				return err
			}
			n := pool.Net(0)
			text, err := netrt.Readback(n, pool.Root())
			if err != nil {
				return mapRuntimeError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	return cmd
}
