package fixtest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type ManagerOpt func(*Manager)

func NewManager(registry *Registry, opts ...ManagerOpt) *Manager {
	m := &Manager{registry: registry}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger()
	}
	return m
}

func ManagerLogger(logger *zap.Logger) ManagerOpt {
	return func(m *Manager) {
		m.log = logger
	}
}

// Manager tracks active fixture instances across a stack of nested scope
// instances (session at the bottom, function at the top). It is the only
// code that creates or tears down instances; execution is strictly
// sequential, so no locking is needed.
type Manager struct {
	log      *zap.Logger
	registry *Registry
	stack    []*scopeInstance
}

// scopeInstance is one run-time interval of a scope level: one test call,
// one module's tests, the whole session. Fixture instances it owns are torn
// down, in reverse creation order, when it closes. Instances are keyed by
// definition identity, not name: sibling directories may register the same
// name, and each definition gets its own instance.
type scopeInstance struct {
	level     Level
	key       string
	id        string
	order     []*Definition
	instances map[*Definition]*Instance
	closed    bool
}

// Open pushes a new scope instance. Scopes nest strictly: the new level must
// be narrower than the current innermost one.
func (m *Manager) Open(level Level, key string) error {
	if top := m.top(); top != nil && level >= top.level {
		return fmt.Errorf("cannot open %v scope inside %v scope", level, top.level)
	}
	si := &scopeInstance{
		level:     level,
		key:       key,
		id:        GetRandomName(0),
		instances: map[*Definition]*Instance{},
	}
	m.stack = append(m.stack, si)
	m.log.Debug("open scope", zap.Stringer("scope", level), zap.String("key", key), zap.String("instance", si.id))
	return nil
}

// Current returns the key of the open scope instance at level.
func (m *Manager) Current(level Level) (string, bool) {
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i].level == level {
			return m.stack[i].key, true
		}
	}
	return "", false
}

// Resolve returns the active instance for def within the current scope
// stack, creating it (and its dependencies, in dependency order) on first
// request. The whole dependency chain is validated before any setup runs.
func (m *Manager) Resolve(ctx context.Context, def *Definition) (*Instance, error) {
	if err := m.validate(def, nil); err != nil {
		return nil, err
	}
	return m.resolve(ctx, def)
}

func (m *Manager) validate(def *Definition, trail []string) error {
	for _, name := range trail {
		if name == def.name {
			return fmt.Errorf("fixture dependency cycle: %v -> %v", strings.Join(trail, " -> "), def.name)
		}
	}
	trail = append(trail, def.name)
	for _, use := range def.uses {
		dep, err := m.registry.Lookup(use, def.dir)
		if err != nil {
			return err
		}
		if dep.scope < def.scope {
			return &ScopeMismatchError{Fixture: def.name, Scope: def.scope, Uses: dep.name, UsesScope: dep.scope}
		}
		if err := m.validate(dep, trail); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) resolve(ctx context.Context, def *Definition) (*Instance, error) {
	si := m.owner(def.scope)
	if si == nil {
		return nil, fmt.Errorf("no open scope can own %v-scoped fixture %q", def.scope, def.name)
	}
	if inst, ok := si.instances[def]; ok {
		return inst, nil
	}
	deps := Values{}
	for _, use := range def.uses {
		dep, err := m.registry.Lookup(use, def.dir)
		if err != nil {
			return nil, err
		}
		di, err := m.resolve(ctx, dep)
		if err != nil {
			return nil, err
		}
		deps[use] = di.value
	}
	inst := &Instance{def: def, state: statePending}
	si.instances[def] = inst
	si.order = append(si.order, def)
	value, teardown, err := def.factory(ctx, deps)
	if err != nil {
		delete(si.instances, def)
		si.order = si.order[:len(si.order)-1]
		return nil, fmt.Errorf("failed to setup fixture '%v': %w", def.name, err)
	}
	inst.value = value
	inst.teardown = teardown
	inst.state = stateActive
	m.log.Debug("setup", zap.String("fixture", def.name), zap.Stringer("scope", si.level), zap.String("instance", si.id))
	return inst, nil
}

// owner returns the innermost open scope instance whose level is at least
// level. A broader-scope fixture requested from a narrower scope binds to
// the enclosing instance at its own level, so it is shared by every
// narrower instance inside it.
func (m *Manager) owner(level Level) *scopeInstance {
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i].level >= level {
			return m.stack[i]
		}
	}
	return nil
}

func (m *Manager) top() *scopeInstance {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// Close tears down the open scope instance at level together with every
// narrower instance nested inside it, innermost first. Closing a level with
// no open instance is a no-op. Teardown is best-effort: failures are
// collected into a TeardownError, and siblings still run.
func (m *Manager) Close(ctx context.Context, level Level) error {
	at := -1
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i].level == level {
			at = i
			break
		}
	}
	if at < 0 {
		return nil
	}
	var errs error
	for i := len(m.stack) - 1; i >= at; i-- {
		errs = multierr.Append(errs, m.closeInstance(ctx, m.stack[i]))
	}
	m.stack = m.stack[:at]
	if errs != nil {
		return &TeardownError{Scope: level.String(), Err: errs}
	}
	return nil
}

func (m *Manager) closeInstance(ctx context.Context, si *scopeInstance) error {
	if si.closed {
		return nil
	}
	si.closed = true
	var errs error
	for i := len(si.order) - 1; i >= 0; i-- {
		inst := si.instances[si.order[i]]
		if inst.state != stateActive {
			continue
		}
		inst.state = stateTornDown
		if inst.teardown == nil {
			continue
		}
		if err := inst.teardown(ctx); err != nil {
			m.log.Warn("failed to teardown fixture", zap.String("fixture", inst.def.name), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("teardown of fixture '%v': %w", inst.def.name, err))
			continue
		}
		m.log.Debug("teardown", zap.String("fixture", inst.def.name), zap.Stringer("scope", si.level), zap.String("instance", si.id))
	}
	m.log.Debug("close scope", zap.Stringer("scope", si.level), zap.String("key", si.key), zap.String("instance", si.id))
	return errs
}
