package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hvm-core/hvmc/internal/config"
)

// RootOptions holds the global flags every subcommand shares, grounded on
// roach88-nysm/brutalist/internal/cli/root.go's RootOptions/format-flag
// pattern.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json"
	ConfigPath string

	// Flag overrides layered onto the loaded config.Config in
	// PersistentPreRunE; zero values mean "use the config file's value".
	Workers int
	Trace   bool

	Config config.Config
}

var validFormats = []string{"text", "json"}

// NewRootCommand builds the hvmc command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hvmc",
		Short: "hvmc - a parallel evaluator for interaction combinators",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --format %q: must be one of %v", opts.Format, validFormats))
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading config", err)
			}
			if opts.Workers > 0 {
				cfg.Workers = opts.Workers
			}
			if opts.Trace {
				cfg.Trace = true
			}
			opts.Config = cfg

			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			var handler slog.Handler
			if opts.Format == "json" {
				handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			} else {
				handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			}
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().IntVar(&opts.Workers, "workers", 0, "override config's worker count (0 = leave config's value)")
	cmd.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "emit rule-by-rule trace events to stderr")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReduceCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Execute runs the hvmc command tree against os.Args and returns the
// process exit code the caller should use.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
