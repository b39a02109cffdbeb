package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/selfmanage"
)

// newSelfCommand wires spec.md §4.I's self-management operations.
func newSelfCommand(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self",
		Short: "Manage the nodeup installation itself",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Replace the running binary with a newer one",
		RunE: func(cc *cobra.Command, args []string) error {
			result, err := selfmanage.Update()
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(result))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove nodeup's data, cache, and config directories",
		RunE: func(cc *cobra.Command, args []string) error {
			result, err := selfmanage.Uninstall((*a).layout)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(result))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "upgrade-data",
		Short: "Migrate on-disk settings and overrides to the current schema",
		RunE: func(cc *cobra.Command, args []string) error {
			settingsResult, err := selfmanage.UpgradeSettings((*a).store, (*a).layout)
			if err != nil {
				return err
			}
			overridesResult, err := selfmanage.UpgradeOverrides((*a).overrides, (*a).layout)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "settings: %s\n", settingsResult)
			fmt.Fprintf(os.Stdout, "overrides: %s\n", overridesResult)
			return nil
		},
	})

	return cmd
}
