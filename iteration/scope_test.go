package iteration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestNewScope(t *testing.T) {
	_, err := NewScope(0)
	require.ErrorIs(t, err, ErrInvalidIterations)

	s, err := NewScope(3)
	require.NoError(t, err)
	require.Equal(t, 0, s.Superstep())
	require.Equal(t, 3, s.MaxIterations())
	require.NotEmpty(t, s.ID())
}

func TestScope_Run(t *testing.T) {
	s, err := NewScope(3)
	require.NoError(t, err)

	var seen []int
	err = s.Run(context.Background(), func(_ context.Context, superstep int) error {
		require.Equal(t, superstep, s.Superstep())
		seen = append(seen, superstep)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, seen)

	seen = nil
	err = s.Run(context.Background(), func(_ context.Context, superstep int) error {
		seen = append(seen, superstep)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, seen, "a scope restarts from the first superstep")
}

func TestScope_Run_Serialized(t *testing.T) {
	s, err := NewScope(3)
	require.NoError(t, err)

	var (
		running atomic.Int32
		wg      sync.WaitGroup
		errs    = make([]error, 4)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Run(context.Background(), func(_ context.Context, superstep int) error {
				if running.Inc() != 1 {
					return errors.New("runs overlapped")
				}
				defer running.Dec()
				if s.Superstep() != superstep {
					return errors.New("superstep changed by another run")
				}
				time.Sleep(time.Millisecond)
				return nil
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestScope_Run_CancelledWhileWaiting(t *testing.T) {
	s, err := NewScope(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	err = s.Run(context.Background(), func(context.Context, int) error {
		cancel()
		return s.Run(ctx, func(context.Context, int) error { return nil })
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestScope_Run_StopsOnError(t *testing.T) {
	s, err := NewScope(5)
	require.NoError(t, err)

	errStep := errors.New("step failed")
	err = s.Run(context.Background(), func(_ context.Context, superstep int) error {
		if superstep == 2 {
			return errStep
		}
		return nil
	})
	require.ErrorIs(t, err, errStep)
	require.ErrorContains(t, err, "superstep 2")
	require.Equal(t, 2, s.Superstep())
}
