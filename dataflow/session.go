// Package dataflow builds and runs typed, partitioned datasets.
//
// A Dataset is a lazy description of a computation: a source followed by
// transformations. Nothing runs until a terminal operation such as Collect
// is called; the chain is then compiled into a job with one stage per
// transformation and executed. Datasets attached to a stage as broadcast
// variables are evaluated as separate jobs, concurrently with the job
// consuming them.
package dataflow

import (
	"context"
	"fmt"

	"github.com/ab180/enrich/broadcast"
	"github.com/ab180/enrich/coordinator"
	"github.com/ab180/enrich/executor"
	"github.com/ab180/enrich/input"
	"github.com/ab180/enrich/job"
	"github.com/ab180/enrich/lrdd"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Session owns the runtime shared by datasets: the executor and the store
// of broadcast variables.
type Session struct {
	crd        coordinator.Coordinator
	broadcasts *broadcast.Store
	executor   *executor.Executor
	opt        SessionOptions
}

func NewSession(opts ...SessionOption) (*Session, error) {
	opt := buildSessionOptions(opts)

	crd := coordinator.NewLocalMemory()
	if len(opt.EtcdEndpoints) > 0 {
		etcd, err := coordinator.NewEtcd(opt.EtcdEndpoints, opt.EtcdNamespace, opt.EtcdOptions)
		if err != nil {
			return nil, errors.WithMessage(err, "connect coordinator")
		}
		crd = etcd
	}
	store := broadcast.NewStore(crd, func(o *broadcast.StoreOptions) {
		*o = opt.Broadcast
	})
	return &Session{
		crd:        crd,
		broadcasts: store,
		executor: executor.New(store, func(o *executor.Options) {
			*o = opt.Executor
		}),
		opt: opt,
	}, nil
}

// DefaultPartitions returns the number of partitions used by sources
// created without an explicit number.
func (s *Session) DefaultPartitions() int {
	if s.opt.DefaultPartitions > 0 {
		return s.opt.DefaultPartitions
	}
	return s.executor.Concurrency()
}

func (s *Session) Close() error {
	return s.crd.Close()
}

// runTopLevel runs a plan requested by the user, applying the session timeout.
func (s *Session) runTopLevel(ctx context.Context, p *plan) (*executor.Result, error) {
	if s.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opt.Timeout)
		defer cancel()
	}
	return s.run(ctx, p)
}

// run compiles the plan into a job and executes it. Broadcast variables of
// the job are evaluated concurrently, each as a job of its own.
func (s *Session) run(ctx context.Context, p *plan) (*executor.Result, error) {
	j, feeder, sides := s.compile(p)

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()

	var wg errgroup.Group
	for _, side := range sides {
		side := side
		k := broadcast.Key{JobID: j.ID, Stage: side.stage, Name: side.name}
		wg.Go(func() error {
			if err := s.evaluateBroadcast(jobCtx, k, side.plan); err != nil {
				// consumers may wait for other variables
				cancelJob()
				return err
			}
			return nil
		})
	}

	result, err := s.executor.Run(jobCtx, j, feeder)
	if err != nil {
		cancelJob()
	}
	sideErr := wg.Wait()
	if len(sides) > 0 {
		cleared, cerr := s.broadcasts.Clear(context.Background(), j.ID)
		if cerr != nil {
			log.Warn().Err(cerr).Str("job", j.ID).Msg("failed to clear broadcast variables")
		} else {
			log.Debug().Str("job", j.ID).Strs("keys", cleared).Msgf("cleared %d broadcast variables", len(cleared))
		}
	}

	return mergeErrors(result, err, sideErr)
}

// mergeErrors prefers the errors which caused the others: side jobs and the
// primary job cancel each other on failure.
func mergeErrors(result *executor.Result, primaryErr, sideErr error) (*executor.Result, error) {
	if sideErr != nil && errors.Is(sideErr, context.Canceled) && primaryErr != nil {
		sideErr = nil
	}
	switch {
	case sideErr == nil && primaryErr == nil:
		return result, nil
	case sideErr == nil:
		return nil, primaryErr
	case primaryErr == nil || errors.Is(primaryErr, context.Canceled):
		return nil, sideErr
	default:
		return nil, multierror.Append(sideErr, primaryErr)
	}
}

func (s *Session) evaluateBroadcast(ctx context.Context, k broadcast.Key, side *plan) error {
	result, err := s.run(ctx, side)
	if err != nil {
		err = errors.WithMessagef(err, "evaluate broadcast variable %q of stage %s", k.Name, k.Stage)
		if ferr := s.broadcasts.Fail(ctx, k, err); ferr != nil {
			log.Warn().Err(ferr).Str("key", k.String()).Msg("failed to report broadcast failure")
		}
		return err
	}
	return s.broadcasts.Publish(ctx, k, lrdd.Values(result.Rows()))
}

type sideJob struct {
	stage string
	name  string
	plan  *plan
}

// compile turns the chain of plans ending with p into a job.
func (s *Session) compile(p *plan) (*job.Job, input.Feeder, []sideJob) {
	var chain []*plan
	source := p
	for ; source.parent != nil; source = source.parent {
		chain = append(chain, source)
	}
	for i, k := 0, len(chain)-1; i < k; i, k = i+1, k-1 {
		chain[i], chain[k] = chain[k], chain[i]
	}
	if len(chain) == 0 || chain[0].partitioner != nil || chain[0].numPartitions != source.numPartitions {
		// the feeder fills partitions of the source, which the first stage must preserve
		chain = append([]*plan{identityOf(source)}, chain...)
	}

	var (
		stages []*job.Stage
		sides  []sideJob
	)
	for i, n := range chain {
		name := fmt.Sprintf("%s%d", n.name, i)
		stage := job.NewStage(name, n.function, n.partitionPlan().Build(n.numPartitions))
		if n.scope != nil {
			stage.Iteration = n.scope
		}
		for _, b := range n.broadcasts {
			stage.Broadcasts = append(stage.Broadcasts, b.name)
			sides = append(sides, sideJob{stage: name, name: b.name, plan: b.plan})
		}
		stages = append(stages, stage)
	}
	j := job.New(s.opt.Name+"/"+p.name, stages...)
	return j, source.newFeeder(), sides
}
