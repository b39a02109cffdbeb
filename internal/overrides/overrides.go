// Package overrides implements the directory-scoped selector bindings of
// spec.md §4.E: a sorted list of canonical-path→selector entries resolved
// by longest-prefix match. The atomic persistence and sort-then-write
// discipline mirror internal/store's settings document.
package overrides

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/fsutil"
	"github.com/nodeup-rs/nodeup/internal/paths"
)

const currentSchemaVersion = 1

// Entry is one directory→selector binding.
type Entry struct {
	Path     string `toml:"path"`
	Selector string `toml:"selector"`
}

// Document is the schema-versioned overrides document of spec.md §3.
type Document struct {
	SchemaVersion int     `toml:"schema_version"`
	Entries       []Entry `toml:"entries"`
}

func defaultDocument() *Document {
	return &Document{SchemaVersion: currentSchemaVersion}
}

// Store wraps a Layout with overrides I/O and resolution.
type Store struct {
	layout *paths.Layout
}

// New builds a Store over layout.
func New(layout *paths.Layout) *Store {
	return &Store{layout: layout}
}

// Load reads overrides.toml, returning an empty default document on a
// read-miss.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.layout.OverridesPath())
	if os.IsNotExist(err) {
		return defaultDocument(), nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "reading overrides")
	}

	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "parsing overrides.toml")
	}
	if doc.SchemaVersion != currentSchemaVersion {
		return nil, errs.New(errs.InvalidInput, "overrides.toml has schema_version %d, expected %d", doc.SchemaVersion, currentSchemaVersion)
	}
	return &doc, nil
}

func (s *Store) save(doc *Document) error {
	sort.Slice(doc.Entries, func(i, j int) bool { return doc.Entries[i].Path < doc.Entries[j].Path })
	data, err := toml.Marshal(*doc)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encoding overrides.toml")
	}
	if err := os.MkdirAll(s.layout.ConfigRoot, 0700); err != nil {
		return errs.Wrap(errs.Internal, err, "creating config root")
	}
	return errs.Wrap(errs.Internal, fsutil.WriteFileAtomic(s.layout.OverridesPath(), data, 0600), "writing overrides.toml")
}

// CanonicalizePath makes p absolute and, if it exists, resolves symlinks;
// if p's tail does not exist, it walks up to the nearest existing prefix,
// resolves that, and rejoins the missing tail.
func CanonicalizePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "making %s absolute", p)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	dir := abs
	var tail []string
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
	}
}

// ResolveForPath returns the entry matching the longest canonical prefix
// of p, if any.
func (s *Store) ResolveForPath(p string) (*Entry, error) {
	canon, err := CanonicalizePath(p)
	if err != nil {
		return nil, err
	}
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}

	sorted := make([]Entry, len(doc.Entries))
	copy(sorted, doc.Entries)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i].Path) > len(sorted[j].Path) })

	for _, e := range sorted {
		if canon == e.Path || strings.HasPrefix(canon, e.Path+string(filepath.Separator)) {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

// Set replaces any existing entry for canonical(p) with selector sel.
func (s *Store) Set(p, sel string) error {
	canon, err := CanonicalizePath(p)
	if err != nil {
		return err
	}
	doc, err := s.Load()
	if err != nil {
		return err
	}

	out := doc.Entries[:0]
	for _, e := range doc.Entries {
		if e.Path != canon {
			out = append(out, e)
		}
	}
	doc.Entries = append(out, Entry{Path: canon, Selector: sel})
	return s.save(doc)
}

// Unset removes the entry for canonical(p), defaulting p to the current
// working directory.
func (s *Store) Unset(p string) error {
	if p == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errs.Wrap(errs.Internal, err, "determining working directory")
		}
		p = wd
	}
	canon, err := CanonicalizePath(p)
	if err != nil {
		return err
	}
	doc, err := s.Load()
	if err != nil {
		return err
	}

	out := doc.Entries[:0]
	for _, e := range doc.Entries {
		if e.Path != canon {
			out = append(out, e)
		}
	}
	doc.Entries = out
	return s.save(doc)
}

// UnsetNonexistent removes every entry whose path no longer exists on
// disk.
func (s *Store) UnsetNonexistent() (int, error) {
	doc, err := s.Load()
	if err != nil {
		return 0, err
	}

	var kept []Entry
	removed := 0
	for _, e := range doc.Entries {
		if _, err := os.Stat(e.Path); err != nil {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	doc.Entries = kept
	if err := s.save(doc); err != nil {
		return 0, err
	}
	return removed, nil
}
