package dataflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/ab180/enrich/codec"
	"github.com/ab180/enrich/executor"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/partitions"
	"github.com/ab180/enrich/transformation"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestDataset(t *testing.T) {
	defer goleak.VerifyNone(t)

	Convey("Given a session", t, func() {
		sess, err := NewSession(WithDefaultPartitions(3), WithTimeout(10*time.Second))
		So(err, ShouldBeNil)
		defer sess.Close()
		ctx := context.Background()

		Convey("Parallelize should preserve the order of elements", func() {
			ds, err := Parallelize(sess, []int{1, 2, 3, 4, 5, 6, 7}, partitions.Auto)
			So(err, ShouldBeNil)
			So(ds.NumPartitions(), ShouldEqual, 3)

			values, err := ds.Collect(ctx)
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []int{1, 2, 3, 4, 5, 6, 7})

			parts, err := ds.CollectPartitions(ctx)
			So(err, ShouldBeNil)
			So(parts, ShouldHaveLength, 3)
			So(parts[0], ShouldResemble, []int{1, 2})
		})

		Convey("Parallelize should reject negative number of partitions", func() {
			_, err := Parallelize(sess, []int{1}, -1)
			So(errors.Is(err, ErrInvalidPartitions), ShouldBeTrue)
		})

		Convey("Map, Filter and FlatMap should be applied in order", func() {
			ds, err := Parallelize(sess, []int{1, 2, 3, 4}, 2)
			So(err, ShouldBeNil)

			doubled := Map(ds, func(v int) (int, error) { return v * 2, nil })
			large := Filter(doubled, func(v int) (bool, error) { return v > 2, nil })
			spread := FlatMap(large, func(v int) ([]string, error) {
				return []string{strconv.Itoa(v), strconv.Itoa(v + 1)}, nil
			})

			values, err := spread.Collect(ctx)
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []string{"4", "5", "6", "7", "8", "9"})

			n, err := large.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
		})

		Convey("MapPartition should see every element of a partition", func() {
			ds, err := Parallelize(sess, []int{1, 2, 3, 4}, 2)
			So(err, ShouldBeNil)

			sums := MapPartition(ds, func(_ context.Context, p []int) ([]int, error) {
				sum := 0
				for _, v := range p {
					sum += v
				}
				return []int{sum}, nil
			})
			values, err := sums.Collect(ctx)
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []int{3, 7})
		})

		Convey("Repartition should keep every element", func() {
			ds, err := Parallelize(sess, []int{1, 2, 3, 4, 5}, 1)
			So(err, ShouldBeNil)

			spread, err := Repartition(ds, 4)
			So(err, ShouldBeNil)
			So(spread.NumPartitions(), ShouldEqual, 4)

			values, err := spread.Collect(ctx)
			So(err, ShouldBeNil)
			sort.Ints(values)
			So(values, ShouldResemble, []int{1, 2, 3, 4, 5})
		})

		Convey("PartitionByKey should put elements of the same key together", func() {
			ds, err := Parallelize(sess, []string{"a1", "b1", "a2", "c1", "b2", "a3"}, 3)
			So(err, ShouldBeNil)

			byKey, err := PartitionByKey(ds, 2, func(v string) string { return v[:1] })
			So(err, ShouldBeNil)

			parts, err := byKey.CollectPartitions(ctx)
			So(err, ShouldBeNil)
			So(parts, ShouldHaveLength, 2)

			partitionOf := make(map[string]int)
			for i, p := range parts {
				for _, v := range p {
					if prev, ok := partitionOf[v[:1]]; ok {
						So(prev, ShouldEqual, i)
					}
					partitionOf[v[:1]] = i
				}
			}
			So(partitionOf, ShouldHaveLength, 3)
		})

		Convey("A failing function should fail the run with the record", func() {
			errBad := errors.New("bad element")
			ds, err := Parallelize(sess, []int{1, 2, 3}, 1)
			So(err, ShouldBeNil)

			failing := Map(ds, func(v int) (int, error) {
				if v == 2 {
					return 0, errBad
				}
				return v, nil
			})
			_, err = failing.Collect(ctx)
			So(errors.Is(err, errBad), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "record #1")
		})
	})
}

func TestTransformWithBroadcast(t *testing.T) {
	defer goleak.VerifyNone(t)

	Convey("Given a primary and a side dataset", t, func() {
		sess, err := NewSession(WithTimeout(10 * time.Second))
		So(err, ShouldBeNil)
		defer sess.Close()
		ctx := context.Background()

		primary, err := Parallelize(sess, []int{1, 2, 3, 4}, 2)
		So(err, ShouldBeNil)
		side, err := Parallelize(sess, []int{10}, 1)
		So(err, ShouldBeNil)

		Convey("Every task should read the elements of the side dataset", func() {
			added := TransformWithBroadcast(primary, "add", addBroadcast("offset"), "offset", side, codec.For[int]())
			values, err := added.Collect(ctx)
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []int{11, 12, 13, 14})
		})

		Convey("The same name can be attached to different stages", func() {
			twice := TransformWithBroadcast(primary, "add", addBroadcast("offset"), "offset", side, codec.For[int]())
			other, err := Parallelize(sess, []int{100}, 1)
			So(err, ShouldBeNil)
			twice = TransformWithBroadcast(twice, "add", addBroadcast("offset"), "offset", other, codec.For[int]())

			values, err := twice.Collect(ctx)
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []int{111, 112, 113, 114})
		})

		Convey("A side dataset derived from the primary should be evaluated separately", func() {
			total := MapPartition(primary, func(_ context.Context, p []int) ([]int, error) {
				return []int{len(p)}, nil
			})
			added := TransformWithBroadcast(primary, "add", addBroadcast("counts"), "counts", total, codec.For[int]())
			values, err := added.Collect(ctx)
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []int{5, 6, 7, 8})
		})

		Convey("A failure of the side dataset should fail the primary", func() {
			errSide := errors.New("side failed")
			broken := Map(side, func(int) (int, error) { return 0, errSide })
			added := TransformWithBroadcast(primary, "add", addBroadcast("offset"), "offset", broken, codec.For[int]())

			_, err := added.Collect(ctx)
			So(errors.Is(err, errSide), ShouldBeTrue)
		})
	})
}

func TestIterate(t *testing.T) {
	defer goleak.VerifyNone(t)

	Convey("Given an initial dataset", t, func() {
		sess, err := NewSession(WithTimeout(10 * time.Second))
		So(err, ShouldBeNil)
		defer sess.Close()
		ctx := context.Background()

		initial, err := Parallelize(sess, []int{1, 2, 3}, 2)
		So(err, ShouldBeNil)

		Convey("The step should be applied for every superstep", func() {
			result, err := Iterate(initial, 3, func(partial *Dataset[int]) *Dataset[int] {
				return Map(partial, func(v int) (int, error) { return v * 2, nil })
			})
			So(err, ShouldBeNil)

			values, err := result.Collect(ctx)
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []int{8, 16, 24})

			Convey("It should be able to evaluate the result again", func() {
				values, err := result.Collect(ctx)
				So(err, ShouldBeNil)
				So(values, ShouldResemble, []int{8, 16, 24})
			})
		})

		Convey("Stages in the step should see the current superstep", func() {
			var scopeOfStep bool
			result, err := Iterate(initial, 2, func(partial *Dataset[int]) *Dataset[int] {
				next := Transform(partial, "addSuperstep", transformation.FactoryFunc(func() transformation.Transformation {
					return addSuperstep{}
				}), codec.For[int]())
				scopeOfStep = next.Scope() != nil
				return next
			})
			So(err, ShouldBeNil)
			So(scopeOfStep, ShouldBeTrue)
			So(result.Scope(), ShouldBeNil)

			values, err := result.Collect(ctx)
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []int{4, 5, 6})
		})

		Convey("Concurrent evaluations should not share the partial solution", func() {
			result, err := Iterate(initial, 2, func(partial *Dataset[int]) *Dataset[int] {
				return Map(partial, func(v int) (int, error) { return v * 3, nil })
			})
			So(err, ShouldBeNil)

			errs := make(chan error, 3)
			for i := 0; i < 3; i++ {
				go func() {
					values, err := result.Collect(ctx)
					if err == nil && !reflect.DeepEqual(values, []int{9, 18, 27}) {
						err = fmt.Errorf("unexpected result %v", values)
					}
					errs <- err
				}()
			}
			for i := 0; i < 3; i++ {
				So(<-errs, ShouldBeNil)
			}
		})

		Convey("The partial solution should not be evaluated outside its iteration", func() {
			var leaked *Dataset[int]
			_, err := Iterate(initial, 1, func(partial *Dataset[int]) *Dataset[int] {
				leaked = partial
				return partial
			})
			So(err, ShouldBeNil)

			_, err = leaked.Collect(ctx)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "outside the iteration")
		})

		Convey("It should reject invalid iterations", func() {
			_, err := Iterate(initial, 0, func(partial *Dataset[int]) *Dataset[int] { return partial })
			So(err, ShouldNotBeNil)

			_, err = Iterate(initial, 2, func(*Dataset[int]) *Dataset[int] { return initial })
			So(errors.Is(err, ErrStepNotDerived), ShouldBeTrue)

			_, err = Iterate(initial, 2, func(partial *Dataset[int]) *Dataset[int] {
				spread, _ := Repartition(partial, 5)
				return spread
			})
			So(errors.Is(err, ErrStepPartitions), ShouldBeTrue)
		})
	})
}

// addBroadcast adds the sum of the broadcast elements to every integer.
func addBroadcast(name string) transformation.Factory {
	return transformation.FactoryFunc(func() transformation.Transformation {
		return &addBroadcastTransformation{name: name}
	})
}

type addBroadcastTransformation struct {
	name   string
	offset int
}

func (a *addBroadcastTransformation) Setup(ctx transformation.Context) error {
	elements, err := ctx.Broadcast(a.name)
	if err != nil {
		return err
	}
	values, err := codec.DecodeAll(codec.For[int](), elements)
	if err != nil {
		return err
	}
	for _, v := range values {
		a.offset += v
	}
	return nil
}

func (a *addBroadcastTransformation) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	c := codec.For[int]()
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := c.Decode(row.Value)
		if err != nil {
			return err
		}
		data, err := c.Encode(v + a.offset)
		if err != nil {
			return err
		}
		return out.Write(lrdd.Value(data))
	})
}

type addSuperstep struct{}

func (addSuperstep) Apply(ctx transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	c := codec.For[int]()
	return transformation.EachRow(in, func(row *lrdd.Row) error {
		v, err := c.Decode(row.Value)
		if err != nil {
			return err
		}
		data, err := c.Encode(v + ctx.Superstep())
		if err != nil {
			return err
		}
		return out.Write(lrdd.Value(data))
	})
}

func TestMergeErrors(t *testing.T) {
	errSide := errors.New("side")
	errPrimary := errors.New("primary")

	Convey("mergeErrors should keep the errors causing the others", t, func() {
		_, err := mergeErrors(nil, errPrimary, context.Canceled)
		So(err, ShouldEqual, errPrimary)

		_, err = mergeErrors(nil, context.Canceled, errSide)
		So(err, ShouldEqual, errSide)

		_, err = mergeErrors(nil, errPrimary, errSide)
		So(errors.Is(err, errSide), ShouldBeTrue)
		So(errors.Is(err, errPrimary), ShouldBeTrue)

		res, err := mergeErrors(&executor.Result{}, nil, nil)
		So(err, ShouldBeNil)
		So(res, ShouldNotBeNil)
	})
}
