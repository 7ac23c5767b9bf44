package masters

import (
	"errors"
	"strings"
)

var (
	ErrAccountCycle = errors.New("account hierarchy contains a cycle")
	ErrNoCollection = errors.New("master export has no data collection")
)

// CycleError reports the parent chain that loops back on itself
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return ErrAccountCycle.Error() + ": " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Unwrap() error {
	return ErrAccountCycle
}
