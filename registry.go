package fixtest

import (
	"errors"
	"strings"

	"github.com/iancoleman/strcase"
	"go.uber.org/zap"
)

type RegistryOpt func(*Registry)

func NewRegistry(opts ...RegistryOpt) *Registry {
	r := &Registry{
		defs: map[string][]*Definition{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger()
	}
	return r
}

func RegistryLogger(logger *zap.Logger) RegistryOpt {
	return func(r *Registry) {
		r.log = logger
	}
}

// Registry maps fixture names to definitions. A name may be registered more
// than once as long as the visibilities don't overlap, which lets sibling
// directories each carry their own fixture under the same name.
type Registry struct {
	log  *zap.Logger
	defs map[string][]*Definition
}

// Register adds a fixture definition. The default scope is function and the
// default visibility is the whole tree.
func (r *Registry) Register(name string, factory Factory, opts ...DefinitionOpt) (*Definition, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, errors.New("fixture name must not be empty")
	}
	if factory == nil {
		return nil, errors.New("fixture factory must not be nil")
	}
	d := &Definition{
		name:    name,
		factory: factory,
		scope:   ScopeFunction,
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, prev := range r.defs[name] {
		if dirsOverlap(prev.dir, d.dir) {
			return nil, &DuplicateNameError{Name: name, Dir: d.dir, ExistingDir: prev.dir}
		}
	}
	r.defs[name] = append(r.defs[name], d)
	r.log.Debug("register", zap.String("fixture", name), zap.Stringer("scope", d.scope), zap.String("dir", d.dir))
	return d, nil
}

// Lookup resolves name from fromDir, walking up the directory tree and
// returning the nearest visible definition.
func (r *Registry) Lookup(name string, fromDir string) (*Definition, error) {
	name = normalizeName(name)
	fromDir = cleanDir(fromDir)
	defs := r.defs[name]
	for dir := fromDir; ; dir = parentDir(dir) {
		for _, d := range defs {
			if d.dir == dir {
				return d, nil
			}
		}
		if dir == "" {
			break
		}
	}
	return nil, &UnknownFixtureError{Name: name, Dir: fromDir}
}

// File returns a registration handle scoped to one directory, the analogue
// of a shared-fixture file sitting in that directory: everything registered
// through it is visible to the directory and its subtree, nowhere else.
func (r *Registry) File(dir string) *File {
	return &File{registry: r, dir: cleanDir(dir)}
}

type File struct {
	registry *Registry
	dir      string
}

func (f *File) Dir() string {
	return f.dir
}

func (f *File) Register(name string, factory Factory, opts ...DefinitionOpt) (*Definition, error) {
	return f.registry.Register(name, factory, append(opts, FixtureDir(f.dir))...)
}

// normalizeName canonicalizes fixture names to snake_case so stylistic
// variants ("dbConn", "DbConn", "db_conn") refer to the same fixture.
func normalizeName(name string) string {
	return strcase.ToSnake(strings.TrimSpace(name))
}

// dirsOverlap reports whether one visibility subtree contains the other.
func dirsOverlap(a, b string) bool {
	return isAncestor(a, b) || isAncestor(b, a)
}

func isAncestor(a, b string) bool {
	return a == "" || a == b || strings.HasPrefix(b, a+"/")
}
