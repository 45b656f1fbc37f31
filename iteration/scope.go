// Package iteration provides the runtime scope of a bulk iterative
// computation: a fixed number of supersteps, each re-running the same step
// over the result of the previous one.
package iteration

import (
	"context"
	"time"

	"github.com/ab180/enrich/internal/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

var ErrInvalidIterations = errors.New("max iterations must be positive")

// Scope owns the superstep counter of an iteration. The counter is advanced
// only by Run; everything else reads it.
type Scope struct {
	id            string
	maxIterations int
	superstep     atomic.Int64

	// running holds a token while Run is in progress.
	running chan struct{}
}

func NewScope(maxIterations int) (*Scope, error) {
	if maxIterations <= 0 {
		return nil, ErrInvalidIterations
	}
	return &Scope{
		id:            util.GenerateID("I"),
		maxIterations: maxIterations,
		running:       make(chan struct{}, 1),
	}, nil
}

func (s *Scope) ID() string {
	return s.id
}

// Superstep returns the current superstep, starting from 1.
// It returns 0 before the iteration starts.
func (s *Scope) Superstep() int {
	return int(s.superstep.Load())
}

func (s *Scope) MaxIterations() int {
	return s.maxIterations
}

// Run advances the superstep from 1 to MaxIterations, calling step for each
// one. It stops at the first error or when ctx is done. Concurrent runs of
// a scope are serialized, as they share the superstep counter.
func (s *Scope) Run(ctx context.Context, step func(ctx context.Context, superstep int) error) error {
	select {
	case s.running <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.running }()

	for i := 1; i <= s.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.superstep.Store(int64(i))

		startedAt := time.Now()
		if err := step(ctx, i); err != nil {
			return errors.Wrapf(err, "superstep %d", i)
		}
		log.Debug().
			Str("iteration", s.id).
			Int("superstep", i).
			Dur("elapsed", time.Since(startedAt)).
			Msg("superstep finished")
	}
	return nil
}
