package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/render"
)

// newChangedCommand reports the packages impacted by changes since a
// base ref, per spec.md §4.J's changed_packages.
func newChangedCommand(a **app) *cobra.Command {
	var base string
	var includeUncommitted bool
	var directOnly bool
	var includePatterns []string
	var excludePatterns []string

	cmd := &cobra.Command{
		Use:   "changed",
		Short: "List packages changed (or affected by changes) since a base ref",
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			paths, err := changedPaths(ctx, *a, base, includeUncommitted)
			if err != nil {
				return err
			}
			paths, err = filterPaths(paths, includePatterns, excludePatterns)
			if err != nil {
				return err
			}
			names := (*a).graph.ChangedPackages(paths, !directOnly)

			render.Value(os.Stdout, (*a).outputMode, names, func(v interface{}) string {
				ns := v.([]string)
				if len(ns) == 0 {
					return "(no packages affected)"
				}
				return strings.Join(ns, "\n")
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "main", "git ref to diff against")
	cmd.Flags().BoolVar(&includeUncommitted, "include-uncommitted", false, "include uncommitted working-tree changes")
	cmd.Flags().BoolVar(&directOnly, "direct-only", false, "exclude transitive dependents")
	cmd.Flags().StringArrayVar(&includePatterns, "include-path", nil, "only consider changed paths matching this glob (repeatable)")
	cmd.Flags().StringArrayVar(&excludePatterns, "exclude-path", nil, "ignore changed paths matching this glob (repeatable)")
	return cmd
}

// filterPaths applies --include-path/--exclude-path glob filters before
// the paths reach change-impact analysis. Uses path/filepath.Match
// rather than a third-party glob library: the pack carries no vendored
// glob dependency to ground one on, and filepath.Match's single-segment
// globbing is sufficient for the repo-relative patterns this flag takes.
func filterPaths(paths, include, exclude []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		if len(include) > 0 {
			matched := false
			for _, pat := range include {
				ok, err := filepath.Match(pat, p)
				if err != nil {
					return nil, errs.Wrap(errs.InvalidInput, err, "invalid --include-path pattern %q", pat)
				}
				if ok {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}

		excluded := false
		for _, pat := range exclude {
			ok, err := filepath.Match(pat, p)
			if err != nil {
				return nil, errs.Wrap(errs.InvalidInput, err, "invalid --exclude-path pattern %q", pat)
			}
			if ok {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		out = append(out, p)
	}
	return out, nil
}
