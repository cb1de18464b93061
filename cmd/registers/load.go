package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

type loadOptions struct {
	*rootOptions
	Source string
}

func newLoadCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &loadOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <register>",
		Short: "Ingest a register archive into a new generation",
		Long: `Download a register archive, parse every record under its data/
directory and publish the records as the register's new generation. The
previous generation stays current if anything fails.

Example:
  registers load country
  registers load country --source ./country.register-master.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "archive URL or path (default: the configured archiveUrl)")

	return cmd
}

func runLoad(cmd *cobra.Command, opts *loadOptions, name string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.cfg, opts.log)
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := a.registry.Create(name)
	if err != nil {
		return err
	}
	report, err := reg.Load(ctx, opts.Source)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
