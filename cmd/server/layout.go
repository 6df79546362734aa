package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"onlinemon/internal/factory"
	"onlinemon/internal/registry"
)

var (
	layoutCatalogue string
	layoutJSON      bool

	layoutCmd = &cobra.Command{
		Use:   "layout",
		Short: "Print the histogram layout",
		Long: `Register every histogram of the catalogue and print the resulting
sequential ID, unique ID and name of each, in registration order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := buildLayout(cmd, layoutCatalogue)
			if err != nil {
				return err
			}
			return printLayout(cmd.OutOrStdout(), entries, layoutJSON)
		},
	}
)

func init() {
	layoutCmd.Flags().StringVar(&layoutCatalogue, "catalogue", "", "catalogue YAML file (default: built-in layout)")
	layoutCmd.Flags().BoolVar(&layoutJSON, "json", false, "print JSON instead of a table")
}

func buildLayout(cmd *cobra.Command, path string) ([]registry.Entry, error) {
	cat, err := loadCatalogue(path)
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	maker := factory.New(reg, factory.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if _, err := maker.BuildAll(cmd.Context(), cat); err != nil {
		return nil, err
	}
	if _, err := maker.Flatten(); err != nil {
		return nil, err
	}
	return reg.Entries(), nil
}

func printLayout(w io.Writer, entries []registry.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tUNIQUE\tNAME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", e.Sequential, e.Unique, e.Name)
	}
	return tw.Flush()
}
