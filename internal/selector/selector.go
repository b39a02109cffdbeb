// Package selector implements the runtime selector grammar of spec.md §3/§4.B:
// a textual specifier that is either a semantic version, a channel
// (lts/current/latest), or a linked name. Grounded on golang-dep's
// manifest.go possibleProps.toProps, which similarly classifies a single
// string field into one of several constraint kinds in priority order.
package selector

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/nodeup-rs/nodeup/internal/errs"
)

// Kind distinguishes the three selector shapes.
type Kind int

const (
	KindVersion Kind = iota
	KindChannel
	KindLinkedName
)

// Channel is one of the three reserved channel tokens.
type Channel string

const (
	ChannelLTS     Channel = "lts"
	ChannelCurrent Channel = "current"
	ChannelLatest  Channel = "latest"
)

func (c Channel) valid() bool {
	switch c {
	case ChannelLTS, ChannelCurrent, ChannelLatest:
		return true
	}
	return false
}

// reservedChannels lists the tokens that cannot be used as linked names,
// per spec.md §3: "Reserved tokens (channels) cannot be linked names."
var reservedChannels = map[string]bool{
	string(ChannelLTS):     true,
	string(ChannelCurrent): true,
	string(ChannelLatest):  true,
}

var linkedNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// strictSemverRe requires all three of MAJOR.MINOR.PATCH, since
// Masterminds/semver's own parser is lax about missing minor/patch
// segments (it defaults them to zero) but spec.md §4.B calls for "a
// strictly-parseable semver" specifically, with an optional leading 'v'.
var strictSemverRe = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[0-9A-Za-z-]+(\.[0-9A-Za-z-]+)*)?(\+[0-9A-Za-z-]+(\.[0-9A-Za-z-]+)*)?$`)

// Selector is a parsed runtime selector.
type Selector struct {
	Kind    Kind
	Version *semver.Version // set iff Kind == KindVersion
	Channel Channel         // set iff Kind == KindChannel
	Name    string          // set iff Kind == KindLinkedName
}

// Parse classifies s into a Selector following spec.md §4.B's ordered
// rules: empty is invalid; an exact channel token wins next; then an
// optional leading 'v' plus a strictly-parseable semver; otherwise the
// string must satisfy the linked-name regex.
func Parse(s string) (Selector, error) {
	if s == "" {
		return Selector{}, errs.New(errs.InvalidInput, "selector must not be empty")
	}

	if reservedChannels[s] {
		return Selector{Kind: KindChannel, Channel: Channel(s)}, nil
	}

	if v, err := parseSemver(s); err == nil {
		return Selector{Kind: KindVersion, Version: v}, nil
	}

	if !IsValidLinkedName(s) {
		return Selector{}, errs.New(errs.InvalidInput, "%q is not a valid version, channel, or linked name", s)
	}
	return Selector{Kind: KindLinkedName, Name: s}, nil
}

func parseSemver(s string) (*semver.Version, error) {
	if !strictSemverRe.MatchString(s) {
		return nil, errs.New(errs.InvalidInput, "%q is not a strict MAJOR.MINOR.PATCH version", s)
	}
	return semver.NewVersion(strings.TrimPrefix(s, "v"))
}

// IsValidLinkedName reports whether s satisfies the linked-name grammar:
// first character ASCII alphanumeric, remaining characters alphanumeric,
// '-', or '_'; and s is not a reserved channel token.
func IsValidLinkedName(s string) bool {
	if s == "" || reservedChannels[s] {
		return false
	}
	return linkedNameRe.MatchString(s)
}

// StableID returns the canonical textual identifier for the selector:
// "vX.Y.Z" for versions, the lowercase channel name for channels, or the
// literal linked name.
func (s Selector) StableID() string {
	switch s.Kind {
	case KindVersion:
		return "v" + s.Version.String()
	case KindChannel:
		return strings.ToLower(string(s.Channel))
	case KindLinkedName:
		return s.Name
	default:
		return ""
	}
}

// String implements fmt.Stringer via StableID, so a Selector prints its
// canonical form by default.
func (s Selector) String() string { return s.StableID() }
