package dataflow

import (
	"context"
	"sync"

	"github.com/ab180/enrich/input"
	"github.com/ab180/enrich/iteration"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/pkg/errors"
)

var (
	// ErrStepNotDerived is returned when the result of an iteration step
	// does not depend on the partial solution given to the step.
	ErrStepNotDerived = errors.New("iteration step result must be derived from the partial solution")

	// ErrStepPartitions is returned when an iteration step changes the number of partitions.
	ErrStepPartitions = errors.New("iteration step must keep the number of partitions")
)

// Iterate runs step maxIterations times. The first superstep receives
// initial as the partial solution; each following superstep receives the
// result of the previous one. Datasets derived from the partial solution
// inside step belong to the iteration and can read the current superstep
// through transformation.Context.Superstep.
//
// step is called once to build the dataflow of a superstep.
func Iterate[T any](initial *Dataset[T], maxIterations int, step func(partial *Dataset[T]) *Dataset[T]) (*Dataset[T], error) {
	scope, err := iteration.NewScope(maxIterations)
	if err != nil {
		return nil, err
	}
	sess := initial.plan.sess

	placeholder := newSource(sess, "iterationInput", initial.NumPartitions(), func() input.Feeder {
		return input.FeederFunc(func(ctx context.Context, partitionID string, out output.Output) error {
			holder, ok := partialSolutionFrom(ctx, scope)
			if !ok {
				return errors.Errorf("partial solution of iteration %s is read outside the iteration", scope.ID())
			}
			return holder.get().feed(partitionID, out)
		})
	})
	placeholder.scope = scope

	result := step(newDataset(placeholder, initial.codec))
	if result == nil || !result.plan.derivesFrom(placeholder) {
		return nil, ErrStepNotDerived
	}
	if result.NumPartitions() != initial.NumPartitions() {
		return nil, errors.Wrapf(ErrStepPartitions, "%d -> %d", initial.NumPartitions(), result.NumPartitions())
	}

	// every evaluation owns its partial solution, passed to the jobs of the
	// supersteps through their context
	evaluate := func(ctx context.Context) (partitionedRows, error) {
		initialResult, err := sess.run(ctx, initial.plan)
		if err != nil {
			return nil, errors.WithMessage(err, "evaluate initial solution")
		}
		holder := &partialSolution{rows: initialResult.Partitions}
		ctx = context.WithValue(ctx, partialSolutionKey{scope: scope}, holder)

		err = scope.Run(ctx, func(ctx context.Context, superstep int) error {
			stepResult, err := sess.run(ctx, result.plan)
			if err != nil {
				return err
			}
			holder.set(stepResult.Partitions)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return holder.get(), nil
	}

	p := newSource(sess, "iterate", initial.NumPartitions(), func() input.Feeder {
		return &iterationFeeder{evaluate: evaluate}
	})
	return newDataset(p, initial.codec), nil
}

type partialSolutionKey struct {
	scope *iteration.Scope
}

func partialSolutionFrom(ctx context.Context, scope *iteration.Scope) (*partialSolution, bool) {
	holder, ok := ctx.Value(partialSolutionKey{scope: scope}).(*partialSolution)
	return holder, ok
}

type partialSolution struct {
	rows partitionedRows
	mu   sync.RWMutex
}

func (p *partialSolution) get() partitionedRows {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rows
}

func (p *partialSolution) set(rows [][]*lrdd.Row) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = rows
}

// iterationFeeder runs the whole iteration on the first request, then feeds
// the final solution to each partition.
type iterationFeeder struct {
	evaluate func(ctx context.Context) (partitionedRows, error)

	once   sync.Once
	result partitionedRows
	err    error
}

func (f *iterationFeeder) FeedInput(ctx context.Context, partitionID string, out output.Output) error {
	evaluated := false
	f.once.Do(func() {
		f.result, f.err = f.evaluate(ctx)
		evaluated = true
	})
	if f.err != nil {
		if evaluated {
			return f.err
		}
		// reported once by the partition which ran the iteration
		return nil
	}
	return f.result.feed(partitionID, out)
}
