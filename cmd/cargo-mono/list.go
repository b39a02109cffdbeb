package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodeup-rs/nodeup/internal/render"
)

type listEntry struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Path        string `json:"path"`
	Publishable bool   `json:"publishable"`
}

func newListCommand(a **app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every package in the workspace",
		RunE: func(cc *cobra.Command, args []string) error {
			names := allNames(*a)
			entries := make([]listEntry, 0, len(names))
			for _, name := range names {
				pkg := (*a).graph.Packages[name]
				entries = append(entries, listEntry{
					Name:        pkg.Name,
					Version:     pkg.Version.String(),
					Path:        pkg.DirectoryRelativePath,
					Publishable: pkg.Publishable,
				})
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

			render.Value(os.Stdout, (*a).outputMode, entries, func(v interface{}) string {
				es := v.([]listEntry)
				lines := make([]string, 0, len(es))
				for _, e := range es {
					mark := ""
					if !e.Publishable {
						mark = " (non-publishable)"
					}
					lines = append(lines, fmt.Sprintf("%s %s %s%s", e.Name, e.Version, e.Path, mark))
				}
				return strings.Join(lines, "\n")
			})
			return nil
		},
	}
}
