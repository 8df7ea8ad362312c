package buildctx

import "strings"

// Params are the invocation parameters that influence versioning.
type Params struct {
	// Explicit is the context named with --ctx. Takes priority over flags.
	Explicit string

	// Shorthand flags.
	Alpha  bool
	Beta   bool
	RC     bool
	Stable bool

	// Tasks are the requested build actions, e.g. "assembleRelease".
	Tasks []string
}

// Rule is one row of the context decision table.
type Rule struct {
	Name  string
	Match func(Params) bool
	Value func(Params) (Context, error)
}

func fixed(c Context) func(Params) (Context, error) {
	return func(Params) (Context, error) { return c, nil }
}

// Rules is evaluated top to bottom; the first matching rule decides the context.
// When nothing matches, Default is used.
var Rules = []Rule{
	{
		Name:  "explicit",
		Match: func(p Params) bool { return strings.TrimSpace(p.Explicit) != "" },
		Value: func(p Params) (Context, error) { return Parse(p.Explicit) },
	},
	{Name: "alpha", Match: func(p Params) bool { return p.Alpha }, Value: fixed(Alpha)},
	{Name: "beta", Match: func(p Params) bool { return p.Beta }, Value: fixed(Beta)},
	{Name: "rc", Match: func(p Params) bool { return p.RC }, Value: fixed(RC)},
	{Name: "stable", Match: func(p Params) bool { return p.Stable }, Value: fixed(Stable)},
}

// Select picks the build context for p using Rules.
func Select(p Params) (Context, error) {
	for _, rule := range Rules {
		if rule.Match(p) {
			return rule.Value(p)
		}
	}
	return Default, nil
}

// Assembly actions that package a build variant.
var packagingActions = []string{"assemble", "bundle"}

// releaseVariant marks the release build type inside a task name.
const releaseVariant = "Release"

// IsReleaseTask reports whether a single task packages the release variant,
// e.g. "assembleRelease", ":app:bundleRelease" or "assembleBetaRelease".
func IsReleaseTask(task string) bool {
	if !strings.Contains(task, releaseVariant) {
		return false
	}
	for _, action := range packagingActions {
		if strings.Contains(task, action) {
			return true
		}
	}
	return false
}

// IsRelease reports whether any requested task is a release packaging task.
func IsRelease(tasks []string) bool {
	for _, t := range tasks {
		if IsReleaseTask(t) {
			return true
		}
	}
	return false
}
