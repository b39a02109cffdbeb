package main

import (
	"os"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/installer"
	"github.com/nodeup-rs/nodeup/internal/logging"
	"github.com/nodeup-rs/nodeup/internal/overrides"
	"github.com/nodeup-rs/nodeup/internal/paths"
	"github.com/nodeup-rs/nodeup/internal/releaseindex"
	"github.com/nodeup-rs/nodeup/internal/render"
	"github.com/nodeup-rs/nodeup/internal/resolver"
	"github.com/nodeup-rs/nodeup/internal/store"
)

// app bundles every subsystem the subcommands need, built once in main
// and threaded through the cobra command tree. Mirrors golang-dep's
// dep.Ctx: one constructed-once context object rather than package-level
// globals.
type app struct {
	layout     *paths.Layout
	log        *logging.Logger
	store      *store.Store
	overrides  *overrides.Store
	index      *releaseindex.Client
	installer  *installer.Installer
	resolver   *resolver.Resolver
	outputMode render.Mode
}

func newApp(outputMode string) (*app, error) {
	layout, err := paths.NewLayout()
	if err != nil {
		return nil, err
	}

	mode, err := render.ParseMode(outputMode)
	if err != nil {
		return nil, err
	}

	log := logging.Default()
	st := store.New(layout)
	ov := overrides.New(layout)
	idx := releaseindex.New(layout, log)
	inst := installer.New(layout, idx)
	res := resolver.New(st, ov, idx)

	return &app{
		layout:     layout,
		log:        log,
		store:      st,
		overrides:  ov,
		index:      idx,
		installer:  inst,
		resolver:   res,
		outputMode: mode,
	}, nil
}

// fail renders err per the active output mode and returns its exit code,
// the shape every subcommand's RunE funnels errors through.
func (a *app) fail(err error) int {
	render.Error(os.Stderr, a.outputMode, err)
	return errs.KindOf(err).ExitCode()
}
