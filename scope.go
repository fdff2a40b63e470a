package fixtest

import "fmt"

// Level is the granularity at which a single fixture instance is shared.
// Higher levels enclose lower ones: a session encloses packages, a package
// encloses modules, and so on down to individual test functions.
type Level int

const (
	ScopeFunction Level = iota
	ScopeClass
	ScopeModule
	ScopePackage
	ScopeSession
)

func (l Level) String() string {
	switch l {
	case ScopeFunction:
		return "function"
	case ScopeClass:
		return "class"
	case ScopeModule:
		return "module"
	case ScopePackage:
		return "package"
	case ScopeSession:
		return "session"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a scope name ("function", "class", "module", "package",
// "session") into its Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "function":
		return ScopeFunction, nil
	case "class":
		return ScopeClass, nil
	case "module":
		return ScopeModule, nil
	case "package":
		return ScopePackage, nil
	case "session":
		return ScopeSession, nil
	}
	return ScopeFunction, fmt.Errorf("unknown scope %q", s)
}
