// Package buildctx determines which release channel a build belongs to and
// whether the invocation produces a release artifact.
//
// Both decisions are expressed as ordered rule tables so the policy can be read
// (and tested) in one place instead of being spread across conditionals.
package buildctx

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Context is a named release channel with its own build counter.
type Context string

// Known contexts.
const (
	Alpha  Context = "alpha"
	Beta   Context = "beta"
	RC     Context = "rc"
	Stable Context = "stable"
)

// Default is used when an invocation names no context at all.
const Default = Stable

// All lists the known contexts in channel order.
var All = []Context{Alpha, Beta, RC, Stable}

// ErrUnknownContext is returned when an explicit context is not one of All.
var ErrUnknownContext = errors.New("unknown build context")

// Parse converts a user supplied name into a Context.
func Parse(name string) (Context, error) {
	c := Context(strings.ToLower(strings.TrimSpace(name)))
	if !c.Valid() {
		return "", fmt.Errorf("%w %q (expected one of %s)", ErrUnknownContext, name, joinContexts(All))
	}
	return c, nil
}

// Valid reports whether c is one of the known contexts.
func (c Context) Valid() bool {
	for _, known := range All {
		if c == known {
			return true
		}
	}
	return false
}

func (c Context) String() string { return string(c) }

// CounterKey is the key under which the context's build counter is stored.
func (c Context) CounterKey() string { return string(c) + "_count" }

// Capitalized returns the context with its first letter upper-cased, e.g.
// "Beta". It names the per-context deployment directory.
func (c Context) Capitalized() string {
	return cases.Title(language.Und).String(string(c))
}

// Label returns the semantic version label for the given build number.
func (c Context) Label(build int) string {
	switch c {
	case Alpha, Beta:
		return fmt.Sprintf("0.9.%d", build)
	case RC:
		return fmt.Sprintf("0.9.9.%d", build)
	default:
		return fmt.Sprintf("1.0.%d", build)
	}
}

func joinContexts(cs []Context) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
