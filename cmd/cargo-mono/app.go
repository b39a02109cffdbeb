// Command cargo-mono provides changed-package analysis, coordinated
// version bumping, and topologically-ordered publishing for a Cargo
// workspace (spec.md §4.J–L).
package main

import (
	"context"
	"os"

	"github.com/nodeup-rs/nodeup/internal/cargometa"
	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/gitutil"
	"github.com/nodeup-rs/nodeup/internal/render"
	"github.com/nodeup-rs/nodeup/internal/workspace"
)

// app bundles the subsystems every cargo-mono subcommand needs, built
// once by the root command's PersistentPreRunE and threaded through via
// a double pointer, the same wiring cmd/nodeup uses.
type app struct {
	root       string
	repo       *gitutil.Repo
	graph      *workspace.Graph
	outputMode render.Mode
}

func newApp(ctx context.Context, manifestDir, outputMode string) (*app, error) {
	mode, err := render.ParseMode(outputMode)
	if err != nil {
		return nil, err
	}

	provider := cargometa.NewProvider(manifestDir)
	members, root, err := provider.Members(ctx)
	if err != nil {
		return nil, err
	}

	graph, err := workspace.Build(root, members)
	if err != nil {
		return nil, err
	}

	repo, err := gitutil.Open(root)
	if err != nil {
		return nil, err
	}

	return &app{root: root, repo: repo, graph: graph, outputMode: mode}, nil
}

// fail renders err per the active output mode and returns its exit code.
func (a *app) fail(err error) int {
	render.Error(os.Stderr, a.outputMode, err)
	return errs.KindOf(err).ExitCode()
}
