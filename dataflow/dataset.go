package dataflow

import (
	"context"

	"github.com/ab180/enrich/codec"
	"github.com/ab180/enrich/executor"
	"github.com/ab180/enrich/iteration"
	"github.com/ab180/enrich/lrdd"
	"github.com/pkg/errors"
)

// Dataset is a lazily evaluated, partitioned collection of T.
// Rows of a dataset hold values encoded with its codec.
type Dataset[T any] struct {
	plan  *plan
	codec codec.Codec[T]
}

func newDataset[T any](p *plan, c codec.Codec[T]) *Dataset[T] {
	if c == nil {
		c = codec.For[T]()
	}
	return &Dataset[T]{plan: p, codec: c}
}

func (d *Dataset[T]) Codec() codec.Codec[T] {
	return d.codec
}

func (d *Dataset[T]) NumPartitions() int {
	return d.plan.numPartitions
}

// Scope returns the iteration the dataset belongs to, or nil when the
// dataset is not derived from the partial solution of an iteration.
func (d *Dataset[T]) Scope() *iteration.Scope {
	return d.plan.scope
}

// Run evaluates the dataset.
func (d *Dataset[T]) Run(ctx context.Context) (*executor.Result, error) {
	return d.plan.sess.runTopLevel(ctx, d.plan)
}

// CollectRows evaluates the dataset and returns its encoded rows in
// partition order.
func (d *Dataset[T]) CollectRows(ctx context.Context) ([]*lrdd.Row, error) {
	result, err := d.Run(ctx)
	if err != nil {
		return nil, err
	}
	return result.Rows(), nil
}

// Collect evaluates the dataset and returns its elements ordered by
// partition, then by the order they were produced within the partition.
func (d *Dataset[T]) Collect(ctx context.Context) ([]T, error) {
	rows, err := d.CollectRows(ctx)
	if err != nil {
		return nil, err
	}
	values, err := codec.DecodeAll(d.codec, lrdd.Values(rows))
	if err != nil {
		return nil, errors.Wrap(err, "decode collected rows")
	}
	return values, nil
}

// CollectPartitions evaluates the dataset and returns its elements per partition.
func (d *Dataset[T]) CollectPartitions(ctx context.Context) ([][]T, error) {
	result, err := d.Run(ctx)
	if err != nil {
		return nil, err
	}
	partitions := make([][]T, len(result.Partitions))
	for i, rows := range result.Partitions {
		values, err := codec.DecodeAll(d.codec, lrdd.Values(rows))
		if err != nil {
			return nil, errors.Wrapf(err, "decode rows of partition %d", i)
		}
		partitions[i] = values
	}
	return partitions, nil
}

// Count evaluates the dataset and returns the number of its elements.
func (d *Dataset[T]) Count(ctx context.Context) (int64, error) {
	result, err := d.Run(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, p := range result.Partitions {
		n += int64(len(p))
	}
	return n, nil
}
