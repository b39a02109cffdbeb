package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/selector"
)

func newOverrideCommand(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage directory-scoped selector overrides",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all overrides",
		RunE: func(cc *cobra.Command, args []string) error {
			doc, err := (*a).overrides.Load()
			if err != nil {
				return err
			}
			if len(doc.Entries) == 0 {
				fmt.Fprintln(os.Stdout, "(no overrides configured)")
				return nil
			}
			for _, e := range doc.Entries {
				fmt.Fprintf(os.Stdout, "%s -> %s\n", e.Path, e.Selector)
			}
			return nil
		},
	})

	var setPath string
	setCmd := &cobra.Command{
		Use:   "set <selector>",
		Short: "Set the override for a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			if _, err := selector.Parse(args[0]); err != nil {
				return err
			}
			path := setPath
			if path == "" {
				wd, err := os.Getwd()
				if err != nil {
					return errs.Wrap(errs.Internal, err, "determining working directory")
				}
				path = wd
			}
			if err := (*a).overrides.Set(path, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "override set: %s -> %s\n", path, args[0])
			return nil
		},
	}
	setCmd.Flags().StringVar(&setPath, "path", "", "directory to override (defaults to the current directory)")

	var unsetPath string
	var unsetNonexistent bool
	unsetCmd := &cobra.Command{
		Use:   "unset",
		Short: "Remove an override",
		RunE: func(cc *cobra.Command, args []string) error {
			if unsetNonexistent {
				removed, err := (*a).overrides.UnsetNonexistent()
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "removed %d stale override(s)\n", removed)
				return nil
			}
			if err := (*a).overrides.Unset(unsetPath); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "override removed")
			return nil
		},
	}
	unsetCmd.Flags().StringVar(&unsetPath, "path", "", "directory to unset (defaults to the current directory)")
	unsetCmd.Flags().BoolVar(&unsetNonexistent, "nonexistent", false, "remove every override whose path no longer exists")

	cmd.AddCommand(setCmd, unsetCmd)
	return cmd
}
