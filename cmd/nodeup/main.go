// Command nodeup manages per-directory, per-invocation Node.js runtimes,
// in the manner of rustup.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/dispatcher"
	"github.com/nodeup-rs/nodeup/internal/errs"
)

func main() {
	os.Exit(run())
}

func run() int {
	if name, isShim := dispatcher.ShimCommand(os.Args[0]); isShim {
		return runShim(name, os.Args[1:])
	}
	return runCLI()
}

// runShim implements spec.md §4.H: invoked as node/npm/npx, resolve and
// exec without ever entering cobra's argument parsing.
func runShim(cmd string, args []string) int {
	a, err := newApp("human")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return errs.KindOf(err).ExitCode()
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: determining working directory: %s\n", err)
		return 1
	}

	ctx := context.Background()
	outcome, err := dispatcher.Dispatch(ctx, a.resolver, a.store, a.installer, cwd, cmd, args)
	if err != nil {
		return a.fail(err)
	}
	if outcome.Signal != "" {
		fmt.Fprintf(os.Stderr, "%s: terminated by signal %s\n", cmd, outcome.Signal)
		return 1
	}
	return outcome.ExitCode
}

func runCLI() int {
	var outputMode string
	var a *app

	root := &cobra.Command{
		Use:           "nodeup",
		Short:         "Install, pin, and dispatch Node.js runtimes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(outputMode)
			return err
		},
	}
	root.PersistentFlags().StringVar(&outputMode, "output", "human", "output rendering: human or json")

	root.AddCommand(
		newToolchainCommand(&a),
		newDefaultCommand(&a),
		newShowCommand(&a),
		newUpdateCommand(&a),
		newCheckCommand(&a),
		newOverrideCommand(&a),
		newWhichCommand(&a),
		newRunCommand(&a),
		newSelfCommand(&a),
		newCompletionsCommand(root),
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
