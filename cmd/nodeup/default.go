package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/selector"
)

func newDefaultCommand(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "default [<selector>]",
		Short: "Show or set the global default runtime selector",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			st, err := (*a).store.LoadSettings()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				if st.DefaultSelector == "" {
					fmt.Fprintln(os.Stdout, "(no default set)")
					return nil
				}
				fmt.Fprintln(os.Stdout, st.DefaultSelector)
				return nil
			}

			if _, err := selector.Parse(args[0]); err != nil {
				return err
			}
			st.DefaultSelector = args[0]
			if err := (*a).store.SaveSettings(st); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "default set to %s\n", args[0])
			return nil
		},
	}
}
