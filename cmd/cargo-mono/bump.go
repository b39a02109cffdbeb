package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/publisher"
	"github.com/nodeup-rs/nodeup/internal/render"
	"github.com/nodeup-rs/nodeup/internal/versioning"
)

func newBumpCommand(a **app) *cobra.Command {
	var level string
	var preid string
	var bumpDependents bool
	var allowDirty bool
	targets := &targetFlags{}

	cmd := &cobra.Command{
		Use:   "bump",
		Short: "Bump package versions and cross-update dependents' manifests",
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()

			lvl, err := versioning.ParseLevel(level)
			if err != nil {
				return err
			}

			selected, err := targets.resolve(ctx, *a)
			if err != nil {
				return err
			}

			if !allowDirty && !(*a).repo.IsClean() {
				return errs.New(errs.Conflict, "working tree is dirty; pass --allow-dirty to override")
			}

			pub := publisher.New((*a).repo, publisher.CargoRegistry{})
			result, err := pub.BumpAndTag(ctx, (*a).graph, selected, lvl, preid, bumpDependents)
			if err != nil {
				return err
			}

			render.Value(os.Stdout, (*a).outputMode, result, func(v interface{}) string {
				r := v.(*versioning.BumpResult)
				if len(r.UpdatedManifests) == 0 {
					return "no manifests updated"
				}
				return fmt.Sprintf("updated %d manifest(s), %d dependency reference(s):\n%s",
					len(r.UpdatedManifests), r.DependencyUpdates, strings.Join(r.UpdatedManifests, "\n"))
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "bump level: major, minor, patch, or prerelease (required)")
	cmd.Flags().StringVar(&preid, "preid", "", "prerelease identifier, required when --level=prerelease")
	cmd.Flags().BoolVar(&bumpDependents, "bump-dependents", false, "also bump every transitive dependent of the selected packages")
	cmd.Flags().BoolVar(&allowDirty, "allow-dirty", false, "allow bumping with a dirty working tree")
	targets.register(cmd)
	_ = cmd.MarkFlagRequired("level")
	return cmd
}
