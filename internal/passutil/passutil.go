// Package passutil provides the panic-safety wrapper shared by the three
// core entry points, so an internal invariant violation anywhere in the
// pipeline turns into a returned error instead of taking the whole process
// down.
package passutil

import (
	"fmt"
	"runtime/debug"
)

// Result is the result of a wrapped entry point: the actual value together
// with an optional error, so a caller that wants to keep going past one
// failed stage has somewhere to put the failure without losing the rest of
// the signature.
type Result[T any] struct {
	Res T
	Err error
}

// Wrap adapts f so a panic inside it is recovered into an error carrying a
// stack trace, rather than propagating. Every one of ConstructRegionGraph,
// SteensgaardRun and SteensgaardEncode is exposed through Wrap before being
// handed to a driver.
func Wrap[T any](name string, f func() (T, error)) func() (T, error) {
	return func() (result T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("INTERNAL PANIC from %q: %v\n%s", name, r, string(debug.Stack()))
			}
		}()
		result, err = f()
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
		}
		return result, err
	}
}
