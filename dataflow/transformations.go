package dataflow

import (
	"context"

	"github.com/ab180/enrich/codec"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/partitions"
	"github.com/ab180/enrich/transformation"
	"github.com/pkg/errors"
)

// Transform appends a stage to the dataset. Every task of the stage runs a
// new instance created by fn, which must write rows encoded with outCodec.
func Transform[T, O any](d *Dataset[T], name string, fn transformation.Factory, outCodec codec.Codec[O]) *Dataset[O] {
	return newDataset(d.plan.then(name, fn), outCodec)
}

// TransformWithBroadcast is like Transform, but also attaches side to the
// stage as a broadcast variable with given name. side is evaluated as a
// separate job and its elements are available to every task of the stage
// through transformation.Context.Broadcast.
//
// The stage belongs to the iteration of d, or to the one of side if d is
// not a part of any iteration.
func TransformWithBroadcast[T, B, O any](
	d *Dataset[T],
	name string,
	fn transformation.Factory,
	broadcastName string,
	side *Dataset[B],
	outCodec codec.Codec[O],
) *Dataset[O] {
	p := d.plan.then(name, fn)
	p.broadcasts = []sideInput{{name: broadcastName, plan: side.plan}}
	if p.scope == nil {
		p.scope = side.plan.scope
	}
	return newDataset(p, outCodec)
}

func Map[T, O any](d *Dataset[T], fn func(T) (O, error)) *Dataset[O] {
	outCodec := codec.For[O]()
	return Transform(d, "map", transformation.FactoryFunc(func() transformation.Transformation {
		return &mapTransformation[T, O]{fn: fn, in: d.codec, out: outCodec}
	}), outCodec)
}

func Filter[T any](d *Dataset[T], fn func(T) (bool, error)) *Dataset[T] {
	return Transform(d, "filter", transformation.FactoryFunc(func() transformation.Transformation {
		return &filterTransformation[T]{fn: fn, in: d.codec}
	}), d.codec)
}

func FlatMap[T, O any](d *Dataset[T], fn func(T) ([]O, error)) *Dataset[O] {
	outCodec := codec.For[O]()
	return Transform(d, "flatMap", transformation.FactoryFunc(func() transformation.Transformation {
		return &flatMapTransformation[T, O]{fn: fn, in: d.codec, out: outCodec}
	}), outCodec)
}

// MapPartition calls fn once per partition with every element of the partition.
func MapPartition[T, O any](d *Dataset[T], fn func(ctx context.Context, partition []T) ([]O, error)) *Dataset[O] {
	outCodec := codec.For[O]()
	return Transform(d, "mapPartition", transformation.FactoryFunc(func() transformation.Transformation {
		return &mapPartitionTransformation[T, O]{fn: fn, in: d.codec, out: outCodec}
	}), outCodec)
}

// Repartition distributes elements evenly into given number of partitions.
// The order of elements is not preserved.
func Repartition[T any](d *Dataset[T], numPartitions int) (*Dataset[T], error) {
	n, err := resolvePartitions(d.plan.sess, numPartitions)
	if err != nil {
		return nil, err
	}
	p := identityOf(d.plan)
	p.name = "repartition"
	p.partitioner = partitions.NewShuffledPartitioner()
	p.numPartitions = n
	return newDataset(p, d.codec), nil
}

// PartitionByKey moves elements with the same key into the same partition.
func PartitionByKey[T any](d *Dataset[T], numPartitions int, key func(T) string) (*Dataset[T], error) {
	n, err := resolvePartitions(d.plan.sess, numPartitions)
	if err != nil {
		return nil, err
	}
	keyed := d.plan.then("keyBy", transformation.FactoryFunc(func() transformation.Transformation {
		return &keyByTransformation[T]{key: key, in: d.codec}
	}))
	p := identityOf(keyed)
	p.name = "partitionByKey"
	p.partitioner = partitions.NewHashKeyPartitioner()
	p.numPartitions = n
	return newDataset(p, d.codec), nil
}

func decodeRow[T any](c codec.Codec[T], row *lrdd.Row) (T, error) {
	v, err := c.Decode(row.Value)
	if err != nil {
		return v, errors.Wrap(err, "decode")
	}
	return v, nil
}

func encodeRow[T any](c codec.Codec[T], v T) (*lrdd.Row, error) {
	data, err := c.Encode(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	return lrdd.Value(data), nil
}

type mapTransformation[T, O any] struct {
	fn  func(T) (O, error)
	in  codec.Codec[T]
	out codec.Codec[O]
}

func (m *mapTransformation[T, O]) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := decodeRow(m.in, row)
		if err != nil {
			return err
		}
		result, err := m.fn(v)
		if err != nil {
			return err
		}
		outRow, err := encodeRow(m.out, result)
		if err != nil {
			return err
		}
		return out.Write(outRow)
	})
}

type filterTransformation[T any] struct {
	fn func(T) (bool, error)
	in codec.Codec[T]
}

func (f *filterTransformation[T]) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := decodeRow(f.in, row)
		if err != nil {
			return err
		}
		ok, err := f.fn(v)
		if err != nil || !ok {
			return err
		}
		return out.Write(row)
	})
}

type flatMapTransformation[T, O any] struct {
	fn  func(T) ([]O, error)
	in  codec.Codec[T]
	out codec.Codec[O]
}

func (f *flatMapTransformation[T, O]) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := decodeRow(f.in, row)
		if err != nil {
			return err
		}
		results, err := f.fn(v)
		if err != nil {
			return err
		}
		encoded, err := codec.EncodeAll(f.out, results)
		if err != nil {
			return err
		}
		return out.Write(lrdd.FromValues(encoded)...)
	})
}

type mapPartitionTransformation[T, O any] struct {
	fn  func(context.Context, []T) ([]O, error)
	in  codec.Codec[T]
	out codec.Codec[O]
}

func (m *mapPartitionTransformation[T, O]) Apply(ctx transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	var values []T
	err := transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := decodeRow(m.in, row)
		if err != nil {
			return err
		}
		values = append(values, v)
		return nil
	})
	if err != nil {
		return err
	}
	results, err := m.fn(ctx, values)
	if err != nil {
		return errors.WithMessagef(err, "partition %s", ctx.PartitionID())
	}
	encoded, err := codec.EncodeAll(m.out, results)
	if err != nil {
		return err
	}
	return out.Write(lrdd.FromValues(encoded)...)
}

type keyByTransformation[T any] struct {
	key func(T) string
	in  codec.Codec[T]
}

func (k *keyByTransformation[T]) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := decodeRow(k.in, row)
		if err != nil {
			return err
		}
		return out.Write(lrdd.KeyValue(k.key(v), row.Value))
	})
}
