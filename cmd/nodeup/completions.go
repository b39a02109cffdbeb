package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
)

// newCompletionsCommand generates shell completion scripts via cobra's
// built-in generators.
func newCompletionsCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:       "completions <shell>",
		Short:     "Generate a shell completion script",
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.ExactValidArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(os.Stdout)
			case "zsh":
				return root.GenZshCompletion(os.Stdout)
			case "fish":
				return root.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return errs.New(errs.InvalidInput, "unsupported shell %q", args[0])
			}
		},
	}
}
