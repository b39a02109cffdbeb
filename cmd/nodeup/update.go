package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/installer"
	"github.com/nodeup-rs/nodeup/internal/render"
	"github.com/nodeup-rs/nodeup/internal/selector"
)

type updateEntry struct {
	Selector         string  `json:"selector"`
	PreviousRuntime  *string `json:"previous_runtime"`
	UpdatedRuntime   *string `json:"updated_runtime"`
	Status           string  `json:"status"`
}

// newUpdateCommand updates tracked (or given) selectors to their newest
// available resolution, installing as needed. Modeled on
// commands/update_check.rs's update().
func newUpdateCommand(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "update [<selector...>]",
		Short: "Update tracked runtimes to their newest available version",
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()

			selectors := args
			if len(selectors) == 0 {
				var err error
				selectors, err = selectorsForUpdate(*a)
				if err != nil {
					return err
				}
			}
			if len(selectors) == 0 {
				return errs.New(errs.NotFound, "no runtimes to update; install runtimes or configure tracked selectors first")
			}

			var updates []updateEntry
			for _, s := range selectors {
				entry, err := updateOne(ctx, *a, s)
				if err != nil {
					return err
				}
				updates = append(updates, entry)
			}

			render.Value(os.Stdout, (*a).outputMode, updates, func(v interface{}) string {
				return fmt.Sprintf("Processed updates for %d selector(s)", len(v.([]updateEntry)))
			})
			return nil
		},
	}
}

func selectorsForUpdate(a *app) ([]string, error) {
	settings, err := a.store.LoadSettings()
	if err != nil {
		return nil, err
	}
	if len(settings.TrackedSelectors) > 0 {
		return settings.TrackedSelectors, nil
	}
	return a.store.ListInstalledVersions()
}

func updateOne(ctx context.Context, a *app, s string) (updateEntry, error) {
	sel, err := selector.Parse(s)
	if err != nil {
		return updateEntry{}, err
	}

	switch sel.Kind {
	case selector.KindLinkedName:
		return updateEntry{Selector: s, Status: "skipped-linked-runtime"}, nil

	case selector.KindChannel:
		target, err := a.resolver.ResolveInstallTarget(ctx, sel)
		if err != nil {
			return updateEntry{}, err
		}
		outcome, err := a.installer.EnsureInstalled(ctx, target)
		if err != nil {
			return updateEntry{}, err
		}
		status := "updated"
		if outcome.State == installer.AlreadyInstalled {
			status = "already-up-to-date"
		}
		updated := outcome.Version
		return updateEntry{Selector: s, UpdatedRuntime: &updated, Status: status}, nil

	default: // KindVersion
		current := sel.StableID()
		newer, err := a.resolver.NewerVersionsThan(ctx, current)
		if err != nil {
			return updateEntry{}, err
		}
		if len(newer) == 0 {
			return updateEntry{Selector: s, PreviousRuntime: &current, UpdatedRuntime: &current, Status: "already-up-to-date"}, nil
		}
		next := newer[len(newer)-1]
		if _, err := a.installer.EnsureInstalled(ctx, next); err != nil {
			return updateEntry{}, err
		}
		return updateEntry{Selector: s, PreviousRuntime: &current, UpdatedRuntime: &next, Status: "updated"}, nil
	}
}
