package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
)

func main() {
	os.Exit(run())
}

func run() int {
	var outputMode string
	var manifestPath string
	var a *app

	root := &cobra.Command{
		Use:           "cargo-mono",
		Short:         "Change-impact analysis, version bumping, and publishing for a Cargo workspace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir := manifestPath
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return errs.Wrap(errs.Internal, err, "determining working directory")
				}
				dir = wd
			}
			var err error
			a, err = newApp(cmd.Context(), dir, outputMode)
			return err
		},
	}
	root.PersistentFlags().StringVar(&outputMode, "output", "human", "output rendering: human or json")
	root.PersistentFlags().StringVar(&manifestPath, "manifest-path", "", "directory containing the workspace's root Cargo.toml (defaults to the current directory)")

	root.AddCommand(
		newListCommand(&a),
		newChangedCommand(&a),
		newBumpCommand(&a),
		newPublishCommand(&a),
	)

	if err := root.Execute(); err != nil {
		if a != nil {
			return a.fail(err)
		}
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return errs.KindOf(err).ExitCode()
	}
	return 0
}
