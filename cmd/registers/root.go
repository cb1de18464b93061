package main

import (
	"log/slog"
	"os"

	"github.com/acksell/registers/config"
	"github.com/spf13/cobra"
)

// rootOptions holds global flags and the configuration they resolve to.
type rootOptions struct {
	ConfigPath string
	Verbose    bool

	cfg config.Config
	log *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "registers",
		Short:         "Serve content-addressed registers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			level, err := cfg.ParseLogLevel()
			if err != nil {
				return err
			}
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.cfg = cfg
			opts.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(opts.log)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to registers.yaml (default: search upwards from the working directory)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newLoadCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newFindCommand(opts))

	return cmd
}
