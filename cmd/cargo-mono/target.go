package main

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
)

// targetFlags holds the mutually-exclusive target-selector flags shared
// by bump and publish: exactly one of --all, --changed, or one-or-more
// --package must be given.
type targetFlags struct {
	all      bool
	changed  bool
	packages []string

	base               string
	includeUncommitted bool
	directOnly         bool
}

func (t *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&t.all, "all", false, "select every workspace package")
	cmd.Flags().BoolVar(&t.changed, "changed", false, "select packages changed since --base")
	cmd.Flags().StringArrayVar(&t.packages, "package", nil, "select a specific package by name (repeatable)")
	cmd.Flags().StringVar(&t.base, "base", "main", "git ref to diff against when using --changed")
	cmd.Flags().BoolVar(&t.includeUncommitted, "include-uncommitted", false, "include uncommitted working-tree changes when using --changed")
	cmd.Flags().BoolVar(&t.directOnly, "direct-only", false, "exclude transitive dependents when using --changed")
}

// resolve turns the target-selector flags into a concrete list of
// package names, per spec.md §6's "exactly one of" rule.
func (t *targetFlags) resolve(ctx context.Context, a *app) ([]string, error) {
	count := 0
	if t.all {
		count++
	}
	if t.changed {
		count++
	}
	if len(t.packages) > 0 {
		count++
	}
	if count != 1 {
		return nil, errs.New(errs.InvalidInput, "exactly one of --all, --changed, or --package must be given")
	}

	if t.all {
		return allNames(a), nil
	}

	if len(t.packages) > 0 {
		for _, name := range t.packages {
			if _, ok := a.graph.Packages[name]; !ok {
				return nil, errs.New(errs.NotFound, "no such workspace package %q", name)
			}
		}
		return t.packages, nil
	}

	paths, err := changedPaths(ctx, a, t.base, t.includeUncommitted)
	if err != nil {
		return nil, err
	}
	return a.graph.ChangedPackages(paths, !t.directOnly), nil
}

func changedPaths(ctx context.Context, a *app, base string, includeUncommitted bool) ([]string, error) {
	paths, err := a.repo.ChangedPathsSinceMergeBase(ctx, base)
	if err != nil {
		return nil, err
	}
	if includeUncommitted {
		uncommitted, err := a.repo.UncommittedPaths(ctx)
		if err != nil {
			return nil, err
		}
		paths = append(paths, uncommitted...)
	}
	return paths, nil
}

func allNames(a *app) []string {
	names := make([]string, 0, len(a.graph.Packages))
	for name := range a.graph.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
