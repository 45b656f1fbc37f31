// Package broadcast ships small side datasets to every task of a stage.
//
// A broadcast variable is a dataset evaluated to completion before the
// stage consuming it starts processing records. Its encoded elements are
// published to a Store, and each task resolves them once with Resolve or
// ResolveSet, decoding them with the codec of the side dataset.
package broadcast

import (
	"fmt"

	"github.com/ab180/enrich/codec"
	"github.com/pkg/errors"
)

var (
	ErrMissing      = errors.New("broadcast variable is not attached")
	ErrEmpty        = errors.New("broadcast variable is empty")
	ErrNotSingleton = errors.New("broadcast variable has more than one element")
)

// ResolutionError is returned when a broadcast variable cannot be turned
// into the value an operator expects.
type ResolutionError struct {
	Name  string
	Cause error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve broadcast variable %q: %v", e.Name, e.Cause)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// Source provides encoded elements of broadcast variables by name.
// transformation.Context implements it.
type Source interface {
	Broadcast(name string) ([][]byte, error)
}

// Resolve returns the only element of the broadcast variable.
// Empty variables and variables with more than one element are rejected.
func Resolve[B any](src Source, name string, c codec.Codec[B]) (B, error) {
	var zero B
	elements, err := fetch(src, name)
	if err != nil {
		return zero, err
	}
	switch len(elements) {
	case 0:
		return zero, &ResolutionError{Name: name, Cause: ErrEmpty}
	case 1:
	default:
		return zero, &ResolutionError{
			Name:  name,
			Cause: errors.Wrapf(ErrNotSingleton, "got %d elements", len(elements)),
		}
	}
	v, err := c.Decode(elements[0])
	if err != nil {
		return zero, &ResolutionError{Name: name, Cause: errors.Wrap(err, "decode")}
	}
	return v, nil
}

// ResolveSet returns every element of the broadcast variable in the order
// they were produced. An empty variable results in an empty, non-nil slice.
func ResolveSet[B any](src Source, name string, c codec.Codec[B]) ([]B, error) {
	elements, err := fetch(src, name)
	if err != nil {
		return nil, err
	}
	values, err := codec.DecodeAll(c, elements)
	if err != nil {
		return nil, &ResolutionError{Name: name, Cause: err}
	}
	return values, nil
}

func fetch(src Source, name string) ([][]byte, error) {
	elements, err := src.Broadcast(name)
	if err != nil {
		return nil, &ResolutionError{Name: name, Cause: err}
	}
	return elements, nil
}
