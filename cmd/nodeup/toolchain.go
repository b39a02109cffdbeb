package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/overrides"
	"github.com/nodeup-rs/nodeup/internal/render"
	"github.com/nodeup-rs/nodeup/internal/selector"
)

func newToolchainCommand(a **app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolchain",
		Short: "Manage installed Node.js runtimes",
	}

	var quiet, verbose bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List installed runtimes",
		RunE: func(cc *cobra.Command, args []string) error {
			versions, err := (*a).store.ListInstalledVersions()
			if err != nil {
				return err
			}
			render.Value(os.Stdout, (*a).outputMode, versions, func(v interface{}) string {
				vs := v.([]string)
				if len(vs) == 0 {
					return "(no runtimes installed)"
				}
				out := ""
				for i, s := range vs {
					if i > 0 {
						out += "\n"
					}
					if verbose && !quiet {
						out += s + "  " + (*a).store.RuntimeDir(s)
					} else {
						out += s
					}
				}
				return out
			})
			return nil
		},
	}
	listCmd.Flags().BoolVar(&quiet, "quiet", false, "print only version identifiers")
	listCmd.Flags().BoolVar(&verbose, "verbose", false, "print install directories alongside versions")

	installCmd := &cobra.Command{
		Use:   "install <selector...>",
		Short: "Install one or more runtimes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			for _, s := range args {
				sel, err := selector.Parse(s)
				if err != nil {
					return err
				}
				target, err := (*a).resolver.ResolveInstallTarget(ctx, sel)
				if err != nil {
					return err
				}
				outcome, err := (*a).installer.EnsureInstalled(ctx, target)
				if err != nil {
					return err
				}
				if err := (*a).store.TrackSelector(s); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "%s: %s\n", outcome.Version, outcome.State)
			}
			return nil
		},
	}

	uninstallCmd := &cobra.Command{
		Use:   "uninstall <selector...>",
		Short: "Remove one or more installed runtimes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			for _, s := range args {
				sel, err := selector.Parse(s)
				if err != nil {
					return err
				}
				if sel.Kind != selector.KindVersion {
					return errs.New(errs.InvalidInput, "uninstall requires a version selector, got %q", s)
				}
				if err := (*a).store.RemoveRuntime(sel.StableID()); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "removed %s\n", sel.StableID())
			}
			return nil
		},
	}

	linkCmd := &cobra.Command{
		Use:   "link <name> <path>",
		Short: "Register an externally-installed runtime under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cc *cobra.Command, args []string) error {
			name, path := args[0], args[1]
			if !selector.IsValidLinkedName(name) {
				return errs.New(errs.InvalidInput, "%q is not a valid linked name", name)
			}
			canon, err := overrides.CanonicalizePath(path)
			if err != nil {
				return err
			}
			if err := (*a).store.LinkRuntime(name, canon); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "linked %s -> %s\n", name, canon)
			return nil
		},
	}

	cmd.AddCommand(listCmd, installCmd, uninstallCmd, linkCmd)
	return cmd
}
