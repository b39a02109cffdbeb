package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/fsutil"
)

// newWhichCommand reports the absolute path of the binary that would be
// dispatched for a given command, without running it.
func newWhichCommand(a **app) *cobra.Command {
	var runtimeOverride string

	cmd := &cobra.Command{
		Use:   "which <command>",
		Short: "Print the path of the binary that would be dispatched for a command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			cwd, err := os.Getwd()
			if err != nil {
				return errs.Wrap(errs.Internal, err, "determining working directory")
			}

			var explicit *string
			if runtimeOverride != "" {
				explicit = &runtimeOverride
			}

			resolved, err := (*a).resolver.ResolveWithPrecedence(ctx, explicit, cwd)
			if err != nil {
				return err
			}

			execPath := resolved.ExecutablePath((*a).store, args[0])
			ok, err := fsutil.IsRegular(execPath)
			if err != nil {
				return errs.Wrap(errs.Internal, err, "checking %s", execPath)
			}
			if !ok {
				return errs.New(errs.NotFound, "%s does not provide command %q", resolved.RuntimeID(), args[0])
			}

			fmt.Fprintln(os.Stdout, execPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&runtimeOverride, "runtime", "", "resolve against this selector instead of the directory's active runtime")
	return cmd
}
