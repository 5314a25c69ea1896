package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/martinemde/toolloop/backend"
	"github.com/spf13/cobra"
)

func toolsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to a turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.closer.Close()

			defs := a.tools.Definitions()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}
			for _, def := range defs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", def.Name, def.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full definitions with schemas")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROVIDER\tCONTEXT\tALIASES")
			for _, m := range backend.ModelsFor(provider) {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", m.ID, m.Provider, m.ContextWindow, strings.Join(m.Aliases, ", "))
			}
			return w.Flush()
		},
	}
}
