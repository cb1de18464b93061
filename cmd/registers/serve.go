package main

import (
	"github.com/acksell/registers/server"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	*rootOptions
	Listen   string
	Register string
}

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve registers over HTTP",
		Long: `Serve registers over HTTP. The register is taken from the first label
of the request host, so country.openregister.org serves the country register.

Example:
  registers serve --listen :8080
  registers serve --register country   # serve one register on any host`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Register, "register", "", "serve only this register, whatever the host")

	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.cfg, opts.log)
	if err != nil {
		return err
	}
	defer a.Close()

	handlerOpts := []server.Option{
		server.WithLogger(a.log),
		server.WithGatherer(a.gatherer),
	}
	if opts.Register != "" {
		handlerOpts = append(handlerOpts, server.WithRegister(opts.Register))
	}
	handler := server.NewHandler(a.registry, a.codecs, handlerOpts...)

	addr := a.cfg.Listen
	if opts.Listen != "" {
		addr = opts.Listen
	}
	return server.New(addr, handler.Routes(), a.log, a.metrics).Run(ctx)
}
