package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newShowCommand(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show manager state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "active-runtime",
		Short: "Show the runtime that would be dispatched from the current directory",
		RunE: func(cc *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			resolved, err := (*a).resolver.ResolveWithPrecedence(cc.Context(), nil, cwd)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s (source: %s)\n", resolved.RuntimeID(), resolved.Source)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "home",
		Short: "Show the manager's on-disk roots",
		RunE: func(cc *cobra.Command, args []string) error {
			fmt.Fprintf(os.Stdout, "data:   %s\n", (*a).layout.DataRoot)
			fmt.Fprintf(os.Stdout, "cache:  %s\n", (*a).layout.CacheRoot)
			fmt.Fprintf(os.Stdout, "config: %s\n", (*a).layout.ConfigRoot)
			return nil
		},
	})

	return cmd
}
