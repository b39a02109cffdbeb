package main

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/fsutil"
	"github.com/nodeup-rs/nodeup/internal/resolver"
)

// newRunCommand resolves a selector (bypassing the directory precedence
// chain) and execs a command against it directly, installing on demand
// when --install is given.
func newRunCommand(a **app) *cobra.Command {
	var install bool

	cmd := &cobra.Command{
		Use:                "run [--install] <selector> <command> [args...]",
		Short:              "Run a command against a specific runtime selector",
		Args:               cobra.MinimumNArgs(2),
		DisableFlagParsing: false,
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			sel := args[0]
			command := args[1]
			rest := args[2:]

			cwd, err := os.Getwd()
			if err != nil {
				return errs.Wrap(errs.Internal, err, "determining working directory")
			}

			resolved, err := (*a).resolver.ResolveWithPrecedence(ctx, &sel, cwd)
			if err != nil {
				return err
			}

			if install && resolved.Kind == resolver.TargetVersion {
				installed, err := (*a).store.IsInstalled(resolved.Version)
				if err != nil {
					return err
				}
				if !installed {
					if _, err := (*a).installer.EnsureInstalled(ctx, resolved.Version); err != nil {
						return err
					}
				}
			}

			execPath := resolved.ExecutablePath((*a).store, command)
			ok, err := fsutil.IsRegular(execPath)
			if err != nil {
				return errs.Wrap(errs.Internal, err, "checking %s", execPath)
			}
			if !ok {
				return errs.New(errs.NotFound, "%s does not provide command %q", resolved.RuntimeID(), command)
			}

			child := exec.CommandContext(ctx, execPath, rest...)
			child.Stdin = os.Stdin
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr

			runErr := child.Run()
			if runErr == nil {
				return nil
			}
			if exitErr, ok := runErr.(*exec.ExitError); ok {
				os.Exit(exitErr.ExitCode())
			}
			return errs.Wrap(errs.Internal, runErr, "spawning %s", execPath)
		},
	}
	cmd.Flags().BoolVar(&install, "install", false, "install the resolved runtime first if it is missing")
	return cmd
}
