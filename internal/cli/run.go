package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hvm-core/hvmc/internal/netrt"
)

// NewRunCommand builds `hvmc run <file>`: load a §6 textual net program,
// boot its @main definition, and print the reduced root port.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var entry string

	cmd := &cobra.Command{
		Use:           "run <file>",
		Short:         "Reduce a net program to normal form",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bk, err := loadBook(args[0])
			if err != nil {
				return err
			}
			slog.Info("program loaded", "file", args[0], "definitions", bk.Len())

			pool, _, err := runBook(rootOpts, bk, entry)
			if err != nil {
				return err
			}
			n := pool.Net(0)
			counters := pool.Counters()
			slog.Debug("reduction complete",
				"annihilate", counters.Annihilate, "commute", counters.Commute,
				"operate1", counters.Operate1, "match", counters.Match)

			text, err := netrt.Readback(n, pool.Root())
			if err != nil {
				return mapRuntimeError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&entry, "entry", "main", "definition to boot as the root program")
	return cmd
}
