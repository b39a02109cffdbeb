package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/render"
)

type checkEntry struct {
	Runtime         string  `json:"runtime"`
	LatestAvailable *string `json:"latest_available"`
	HasUpdate       bool    `json:"has_update"`
}

// newCheckCommand reports which installed runtimes have a newer release
// available, without installing anything.
func newCheckCommand(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check installed runtimes for available updates",
		RunE: func(cc *cobra.Command, args []string) error {
			ctx := cc.Context()
			installed, err := (*a).store.ListInstalledVersions()
			if err != nil {
				return err
			}

			var results []checkEntry
			for _, runtime := range installed {
				newer, err := (*a).resolver.NewerVersionsThan(ctx, runtime)
				if err != nil {
					return err
				}
				entry := checkEntry{Runtime: runtime}
				if len(newer) > 0 {
					latest := newer[len(newer)-1]
					entry.LatestAvailable = &latest
					entry.HasUpdate = true
				}
				results = append(results, entry)
			}

			render.Value(os.Stdout, (*a).outputMode, results, func(v interface{}) string {
				rs := v.([]checkEntry)
				if len(rs) == 0 {
					return "No installed runtimes found"
				}
				out := fmt.Sprintf("Checked %d installed runtime(s)", len(rs))
				for _, r := range rs {
					if r.HasUpdate {
						out += fmt.Sprintf("\n  %s -> %s available", r.Runtime, *r.LatestAvailable)
					} else {
						out += fmt.Sprintf("\n  %s up to date", r.Runtime)
					}
				}
				return out
			})
			return nil
		},
	}
}
