package fixtest

import (
	"context"
	"path"
	"strings"
)

// Values holds resolved fixture values keyed by the (normalized) name they
// were requested under.
type Values map[string]any

// Teardown releases whatever its factory set up. A nil Teardown means the
// factory had nothing to clean up.
type Teardown func(ctx context.Context) error

// Factory produces a fixture value. deps contains the values of the fixtures
// named by the definition's uses list, already set up. The returned Teardown
// runs when the owning scope instance closes.
type Factory func(ctx context.Context, deps Values) (any, Teardown, error)

// Definition is an immutable registered fixture: a factory tagged with a
// scope level, a visibility directory, and the names of the fixtures it
// depends on.
type Definition struct {
	name    string
	factory Factory
	scope   Level
	dir     string
	uses    []string
}

func (d *Definition) Name() string {
	return d.name
}

func (d *Definition) Scope() Level {
	return d.scope
}

// Dir returns the visibility root: the definition resolves from this
// directory and everything beneath it. Empty means the whole tree.
func (d *Definition) Dir() string {
	return d.dir
}

func (d *Definition) Uses() []string {
	return append([]string(nil), d.uses...)
}

type DefinitionOpt func(*Definition)

func FixtureScope(l Level) DefinitionOpt {
	return func(d *Definition) {
		d.scope = l
	}
}

// FixtureDir restricts the fixture's visibility to dir and its subtree.
func FixtureDir(dir string) DefinitionOpt {
	return func(d *Definition) {
		d.dir = cleanDir(dir)
	}
}

// FixtureUses declares the fixtures this fixture depends on. They are set up
// first, passed to the factory, and torn down after.
func FixtureUses(names ...string) DefinitionOpt {
	return func(d *Definition) {
		for _, n := range names {
			d.uses = append(d.uses, normalizeName(n))
		}
	}
}

// cleanDir canonicalizes a slash-separated directory. The root is "".
func cleanDir(dir string) string {
	return strings.Trim(path.Clean("/"+dir), "/")
}

// parentDir steps one directory up. parentDir of a top-level dir is the root "".
func parentDir(dir string) string {
	i := strings.LastIndex(dir, "/")
	if i < 0 {
		return ""
	}
	return dir[:i]
}
