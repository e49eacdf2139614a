package engine

import "fmt"

// MissingDependencyError is returned by New when a collaborator is nil.
type MissingDependencyError struct {
	Name string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("engine: missing %s dependency", e.Name)
}
