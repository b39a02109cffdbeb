// Package resolver implements the precedence chain of spec.md §4.G:
// explicit selector, then directory override, then configured default.
package resolver

import (
	"context"
	"path/filepath"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/overrides"
	"github.com/nodeup-rs/nodeup/internal/releaseindex"
	"github.com/nodeup-rs/nodeup/internal/selector"
	"github.com/nodeup-rs/nodeup/internal/store"
)

// Source identifies where a resolved runtime's selector came from.
type Source int

const (
	SourceExplicit Source = iota
	SourceOverride
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourceExplicit:
		return "explicit"
	case SourceOverride:
		return "override"
	case SourceDefault:
		return "default"
	default:
		return "unknown"
	}
}

// TargetKind distinguishes the two shapes a resolved runtime may take.
type TargetKind int

const (
	TargetVersion TargetKind = iota
	TargetLinkedPath
)

// Resolved is the tagged-variant result of spec.md §4.G, replacing an
// inheritance-based Runtime hierarchy with a single struct callers switch
// on by Kind.
type Resolved struct {
	Source   Source
	Selector selector.Selector
	Kind     TargetKind
	Version  string // set iff Kind == TargetVersion, canonical "vX.Y.Z"
	Name     string // set iff Kind == TargetLinkedPath
	AbsPath  string // set iff Kind == TargetLinkedPath
}

// RuntimeID returns "vX.Y.Z" for a version target or the linked name for
// a linked-path target.
func (r Resolved) RuntimeID() string {
	if r.Kind == TargetVersion {
		return r.Version
	}
	return r.Name
}

// ExecutablePath joins cmd onto the resolved runtime's base directory.
func (r Resolved) ExecutablePath(st *store.Store, cmd string) string {
	if r.Kind == TargetVersion {
		return st.RuntimeExecutable(r.Version, cmd)
	}
	return filepath.Join(r.AbsPath, "bin", cmd)
}

// Resolver resolves selectors with precedence and source tracking.
type Resolver struct {
	store     *store.Store
	overrides *overrides.Store
	index     *releaseindex.Client
}

// New builds a Resolver.
func New(st *store.Store, ov *overrides.Store, index *releaseindex.Client) *Resolver {
	return &Resolver{store: st, overrides: ov, index: index}
}

// ResolveWithPrecedence implements spec.md §4.G's precedence chain.
func (r *Resolver) ResolveWithPrecedence(ctx context.Context, explicit *string, path string) (*Resolved, error) {
	if explicit != nil {
		return r.resolveSelectorWithSource(ctx, *explicit, SourceExplicit)
	}

	entry, err := r.overrides.ResolveForPath(path)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return r.resolveSelectorWithSource(ctx, entry.Selector, SourceOverride)
	}

	settings, err := r.store.LoadSettings()
	if err != nil {
		return nil, err
	}
	if settings.DefaultSelector != "" {
		return r.resolveSelectorWithSource(ctx, settings.DefaultSelector, SourceDefault)
	}

	return nil, errs.New(errs.NotFound, "no explicit selector, override, or default configured")
}

func (r *Resolver) resolveSelectorWithSource(ctx context.Context, s string, source Source) (*Resolved, error) {
	sel, err := selector.Parse(s)
	if err != nil {
		return nil, err
	}

	switch sel.Kind {
	case selector.KindVersion:
		return &Resolved{Source: source, Selector: sel, Kind: TargetVersion, Version: sel.StableID()}, nil

	case selector.KindChannel:
		v, err := r.index.ResolveChannel(ctx, string(sel.Channel))
		if err != nil {
			return nil, err
		}
		return &Resolved{Source: source, Selector: sel, Kind: TargetVersion, Version: v}, nil

	case selector.KindLinkedName:
		abs, err := r.store.LinkedRuntimePath(sel.Name)
		if err != nil {
			return nil, err
		}
		return &Resolved{Source: source, Selector: sel, Kind: TargetLinkedPath, Name: sel.Name, AbsPath: abs}, nil

	default:
		return nil, errs.New(errs.Internal, "unhandled selector kind %v", sel.Kind)
	}
}

// NewerVersionsThan delegates to the release index for spec.md §4.G's
// newer_versions_than.
func (r *Resolver) NewerVersionsThan(ctx context.Context, v string) ([]string, error) {
	return r.index.NewerVersionsThan(ctx, v)
}

// ResolveInstallTarget turns a version or channel selector into a
// canonical "vX.Y.Z" install target; linked names cannot be installed.
func (r *Resolver) ResolveInstallTarget(ctx context.Context, sel selector.Selector) (string, error) {
	switch sel.Kind {
	case selector.KindVersion:
		return sel.StableID(), nil
	case selector.KindChannel:
		return r.index.ResolveChannel(ctx, string(sel.Channel))
	default:
		return "", errs.New(errs.InvalidInput, "%q is a linked name, not something nodeup can install", sel.Name)
	}
}
