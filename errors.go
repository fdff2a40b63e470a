package fixtest

import "fmt"

// UnknownFixtureError is returned when a test or fixture references a name
// with no registration visible from its location. It is a collection-time
// error: the referencing test is never run.
type UnknownFixtureError struct {
	Name string
	Dir  string
}

func (e *UnknownFixtureError) Error() string {
	if e.Dir == "" {
		return fmt.Sprintf("unknown fixture %q", e.Name)
	}
	return fmt.Sprintf("unknown fixture %q (looked up from %q)", e.Name, e.Dir)
}

// DuplicateNameError is returned when a registration reuses a name whose
// existing visibility overlaps the new one.
type DuplicateNameError struct {
	Name        string
	Dir         string
	ExistingDir string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("fixture %q already registered at %q (overlaps %q)", e.Name, e.ExistingDir, e.Dir)
}

// ScopeMismatchError is returned when a fixture would depend on another
// fixture of narrower scope. The broader fixture would outlive its
// dependency, so the chain is rejected before any setup runs.
type ScopeMismatchError struct {
	Fixture   string
	Scope     Level
	Uses      string
	UsesScope Level
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("%v-scoped fixture %q cannot use %v-scoped fixture %q", e.Scope, e.Fixture, e.UsesScope, e.Uses)
}

// TeardownError collects teardown failures for one scope instance. Cleanup
// is best-effort: a failing teardown never stops its siblings, and every
// underlying failure is preserved.
type TeardownError struct {
	Scope string
	Err   error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown of %v scope failed: %v", e.Scope, e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}
