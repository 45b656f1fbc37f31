package transformation

import (
	"fmt"

	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
)

type Transformation interface {
	Apply(ctx Context, in chan *lrdd.Row, out *output.Writer) error
}

// Initializer is implemented by transformations which need to prepare
// themselves before the first row arrives. Setup is called exactly once per
// task, before Apply.
type Initializer interface {
	Setup(ctx Context) error
}

// Factory creates a new transformation instance for each task of a stage.
// Instances must not share mutable state with each other.
type Factory interface {
	NewInstance() Transformation
}

// FactoryFunc is an adapter to use a function as a Factory.
type FactoryFunc func() Transformation

func (f FactoryFunc) NewInstance() Transformation {
	return f()
}

// RecordError reports a failure while processing the record at Ordinal
// (0-based, counted within the task).
type RecordError struct {
	Ordinal int64
	Cause   error
}

func NewRecordError(ordinal int64, cause error) *RecordError {
	return &RecordError{Ordinal: ordinal, Cause: cause}
}

func (r *RecordError) Error() string {
	return fmt.Sprintf("record #%d: %v", r.Ordinal, r.Cause)
}

func (r *RecordError) Unwrap() error {
	return r.Cause
}
