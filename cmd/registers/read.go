package main

import (
	"github.com/acksell/registers/server"
	"github.com/acksell/registers/store"
	"github.com/spf13/cobra"
)

type getOptions struct {
	*rootOptions
	Format string
}

func newGetCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &getOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <register> <hash>",
		Short: "Print the entry with the given hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", server.DefaultFormat, "representation (json, jsonl, yaml, csv, tsv, cbor, ttl, txt)")

	return cmd
}

func runGet(cmd *cobra.Command, opts *getOptions, name, hash string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.cfg, opts.log)
	if err != nil {
		return err
	}
	defer a.Close()

	codec, err := a.codecs.Get(opts.Format)
	if err != nil {
		return err
	}
	reg, err := a.registry.GetOrInit(ctx, name)
	if err != nil {
		return err
	}
	e, err := reg.Get(ctx, hash)
	if err != nil {
		return err
	}
	out, err := codec.Encode(e)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

type findOptions struct {
	*rootOptions
	Format  string
	Field   string
	Value   string
	Exact   bool
	OrderBy string
	Page    int
}

func newFindCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &findOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <register>",
		Short: "Print a page of entries, most recently ingested first",
		Long: `Print a page of entries. With --field and --value only entries whose
field contains the value (ignoring case, or exactly with --exact) are listed.

Example:
  registers find country --field name --value united --format csv
  registers find country --page 2 --order-by name`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", server.DefaultFormat, "representation (json, jsonl, yaml, csv, tsv, cbor, ttl, txt)")
	cmd.Flags().StringVar(&opts.Field, "field", "", "field to match")
	cmd.Flags().StringVar(&opts.Value, "value", "", "value to match")
	cmd.Flags().BoolVar(&opts.Exact, "exact", false, "match the whole value, case-sensitively")
	cmd.Flags().StringVar(&opts.OrderBy, "order-by", "", "sort by this field instead of recency")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number, from 1")
	cmd.MarkFlagsRequiredTogether("field", "value")

	return cmd
}

func runFind(cmd *cobra.Command, opts *findOptions, name string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts.cfg, opts.log)
	if err != nil {
		return err
	}
	defer a.Close()

	codec, err := a.codecs.Get(opts.Format)
	if err != nil {
		return err
	}
	reg, err := a.registry.GetOrInit(ctx, name)
	if err != nil {
		return err
	}

	q := store.Query{OrderBy: opts.OrderBy}
	if opts.Field != "" {
		m := store.Contains(opts.Value)
		if opts.Exact {
			m = store.Exact(opts.Value)
		}
		q = q.Where(opts.Field, m)
	}
	res, err := reg.Find(ctx, q, opts.Page)
	if err != nil {
		return err
	}

	out, err := codec.EncodeMany(res.Entries)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return err
	}
	opts.log.Info("page", "page", res.Meta.Page, "pages", res.Meta.Pages(), "total", res.Meta.Total)
	return nil
}
