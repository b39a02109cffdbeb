package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/publisher"
	"github.com/nodeup-rs/nodeup/internal/render"
)

func newPublishCommand(a **app) *cobra.Command {
	var dryRun bool
	var allowDirty bool
	var registry string
	targets := &targetFlags{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish selected packages in topological order",
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()

			selected, err := targets.resolve(ctx, *a)
			if err != nil {
				return err
			}

			pub := publisher.New((*a).repo, publisher.CargoRegistry{})
			report, err := pub.Publish(ctx, (*a).graph, selected, dryRun, registry, allowDirty)
			if err != nil {
				return err
			}

			render.Value(os.Stdout, (*a).outputMode, report, func(v interface{}) string {
				r := v.(*publisher.Report)
				lines := make([]string, 0, len(r.Results))
				for _, res := range r.Results {
					line := fmt.Sprintf("%s: %s (%d attempt(s))", res.Name, res.Status, res.Attempts)
					if res.Detail != "" {
						line += ": " + res.Detail
					}
					lines = append(lines, line)
				}
				return strings.Join(lines, "\n")
			})

			if report.AnyFailed() {
				return errs.New(errs.Internal, "one or more packages failed to publish")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "pass --dry-run through to cargo publish")
	cmd.Flags().BoolVar(&allowDirty, "allow-dirty", false, "allow publishing with a dirty working tree")
	cmd.Flags().StringVar(&registry, "registry", "", "publish to this registry instead of crates.io")
	targets.register(cmd)
	return cmd
}
