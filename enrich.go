// Package enrich provides transformations of a dataset which can read a
// second, small dataset while processing each element.
//
// The second dataset is a broadcast variable: it is evaluated to completion
// as a separate job, and every task of the enriched stage receives its
// elements before the first element of the primary dataset arrives.
//
//	sess, _ := dataflow.NewSession()
//	numbers, _ := dataflow.Parallelize(sess, []int{1, 2, 3, 4}, partitions.Auto)
//	offset, _ := dataflow.Parallelize(sess, []int{10}, 1)
//
//	added := enrich.MapWithBroadcast(numbers, offset, func(x, b int) (int, error) {
//		return x + b, nil
//	})
//	values, _ := added.Collect(ctx) // [11 12 13 14]
package enrich

import (
	"github.com/ab180/enrich/codec"
	"github.com/ab180/enrich/dataflow"
	"github.com/ab180/enrich/operator"
	"github.com/pkg/errors"
)

// BroadcastVariable is the name under which the side dataset is attached
// to the stages created by this package.
const BroadcastVariable = "broadcastVariable"

var (
	ErrNotInIteration = errors.New("neither the primary nor the side dataset is a part of an iteration")
	ErrScopeMismatch  = errors.New("primary and side datasets belong to different iterations")
)

// MapWithBroadcast applies fn to every element of primary with the only
// element of side. The stage fails if side does not have exactly one element.
func MapWithBroadcast[T, B, O any](primary *dataflow.Dataset[T], side *dataflow.Dataset[B], fn func(T, B) (O, error)) *dataflow.Dataset[O] {
	codecs := codecsOf[T, B, O](primary, side)
	proto := operator.NewMapper(BroadcastVariable, fn, codecs)
	return dataflow.TransformWithBroadcast(primary, "mapWithBroadcast", proto, BroadcastVariable, side, codecs.Out)
}

// FilterWithBroadcast keeps the elements of primary for which fn returns
// true with the only element of side. Kept elements are forwarded as they
// are, in their original order.
func FilterWithBroadcast[T, B any](primary *dataflow.Dataset[T], side *dataflow.Dataset[B], fn func(T, B) (bool, error)) *dataflow.Dataset[T] {
	codecs := operator.Codecs[T, B, T]{
		In:   primary.Codec(),
		Side: side.Codec(),
		Out:  primary.Codec(),
	}
	proto := operator.NewFilter(BroadcastVariable, fn, codecs)
	return dataflow.TransformWithBroadcast(primary, "filterWithBroadcast", proto, BroadcastVariable, side, codecs.Out)
}

// FlatMapWithBroadcast emits every element returned by fn, which is called
// for each element of primary with the only element of side.
func FlatMapWithBroadcast[T, B, O any](primary *dataflow.Dataset[T], side *dataflow.Dataset[B], fn func(T, B) ([]O, error)) *dataflow.Dataset[O] {
	codecs := codecsOf[T, B, O](primary, side)
	proto := operator.NewFlatMapper(BroadcastVariable, fn, codecs)
	return dataflow.TransformWithBroadcast(primary, "flatMapWithBroadcast", proto, BroadcastVariable, side, codecs.Out)
}

// MapWithBroadcastSet applies fn to every element of primary with all
// elements of side, which may be empty.
func MapWithBroadcastSet[T, B, O any](primary *dataflow.Dataset[T], side *dataflow.Dataset[B], fn func(T, []B) (O, error)) *dataflow.Dataset[O] {
	codecs := codecsOf[T, B, O](primary, side)
	proto := operator.NewSetMapper(BroadcastVariable, fn, codecs)
	return dataflow.TransformWithBroadcast(primary, "mapWithBroadcastSet", proto, BroadcastVariable, side, codecs.Out)
}

// MapWithBroadcastIteration is MapWithBroadcast for a step of
// dataflow.Iterate; fn also receives the current superstep, starting from 1.
// Either primary or side must be derived from the partial solution of the
// iteration, otherwise ErrNotInIteration is returned.
func MapWithBroadcastIteration[T, B, O any](primary *dataflow.Dataset[T], side *dataflow.Dataset[B], fn func(v T, b B, superstep int) (O, error)) (*dataflow.Dataset[O], error) {
	ps, ss := primary.Scope(), side.Scope()
	if ps == nil && ss == nil {
		return nil, ErrNotInIteration
	}
	if ps != nil && ss != nil && ps != ss {
		return nil, errors.Wrapf(ErrScopeMismatch, "%s and %s", ps.ID(), ss.ID())
	}
	codecs := codecsOf[T, B, O](primary, side)
	proto := operator.NewIterationMapper(BroadcastVariable, fn, codecs)
	return dataflow.TransformWithBroadcast(primary, "mapWithBroadcastIteration", proto, BroadcastVariable, side, codecs.Out), nil
}

func codecsOf[T, B, O any](primary *dataflow.Dataset[T], side *dataflow.Dataset[B]) operator.Codecs[T, B, O] {
	return operator.Codecs[T, B, O]{
		In:   primary.Codec(),
		Side: side.Codec(),
		Out:  codec.For[O](),
	}
}
