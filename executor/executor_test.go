package executor

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/ab180/enrich/broadcast"
	"github.com/ab180/enrich/coordinator"
	"github.com/ab180/enrich/input"
	"github.com/ab180/enrich/job"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/partitions"
	"github.com/ab180/enrich/transformation"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestExecutor_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	Convey("Given an executor", t, func() {
		crd := coordinator.NewLocalMemory()
		defer crd.Close()
		store := broadcast.NewStore(crd)
		exec := New(store, func(o *Options) {
			o.Output.BufferLength = 2
		})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		in := feedStrings(map[string][]string{
			"0": {"a", "b", "c"},
			"1": {"d", "e"},
		})
		preserved := partitions.Plan{DesiredCount: 2}.Build(0)

		Convey("When running a single stage job", func() {
			j := job.New("upper", job.NewStage("upper0", transformationOf(upper), preserved))
			res, err := exec.Run(ctx, j, in)
			So(err, ShouldBeNil)

			Convey("It should keep partitions and their order", func() {
				So(stringsOf(res.Partitions[0]), ShouldResemble, []string{"A", "B", "C"})
				So(stringsOf(res.Partitions[1]), ShouldResemble, []string{"D", "E"})
				So(stringsOf(res.Rows()), ShouldResemble, []string{"A", "B", "C", "D", "E"})
				So(res.Status.Status, ShouldEqual, job.Succeeded)
			})

			Convey("It should collect metrics of the stage", func() {
				So(res.Metrics["upper0/input"], ShouldEqual, 5)
				So(res.Metrics["upper0/output"], ShouldEqual, 5)
			})
		})

		Convey("When running stages connected with a shuffle", func() {
			shuffled := partitions.Plan{Partitioner: partitions.NewShuffledPartitioner(), DesiredCount: 3}.Build(0)
			j := job.New("shuffle",
				job.NewStage("upper0", transformationOf(upper), preserved),
				job.NewStage("twice1", transformationOf(twice), shuffled),
			)
			res, err := exec.Run(ctx, j, in)
			So(err, ShouldBeNil)

			Convey("It should deliver every row to the next stage", func() {
				So(res.Partitions, ShouldHaveLength, 3)
				So(res.Rows(), ShouldHaveLength, 5)
				So(res.Metrics["twice1/input"], ShouldEqual, 5)
			})
		})

		Convey("When a task fails on a record", func() {
			errBad := errors.New("bad record")
			failing := transformationOf(func(ordinal int64, r *lrdd.Row) (*lrdd.Row, error) {
				if string(r.Value) == "e" {
					return nil, transformation.NewRecordError(ordinal, errBad)
				}
				return r, nil
			})
			j := job.New("fail",
				job.NewStage("fail0", failing, preserved),
				job.NewStage("upper1", transformationOf(upper), preserved),
			)
			_, err := exec.Run(ctx, j, in)

			Convey("It should return the error with the task and record", func() {
				So(errors.Is(err, errBad), ShouldBeTrue)

				var taskErr *job.TaskError
				So(errors.As(err, &taskErr), ShouldBeTrue)
				So(taskErr.Task.StageName, ShouldEqual, "fail0")
				So(taskErr.Task.PartitionID, ShouldEqual, "1")
				So(taskErr.Record, ShouldEqual, 1)
			})
		})

		Convey("When a task panics", func() {
			panicking := transformationOf(func(int64, *lrdd.Row) (*lrdd.Row, error) {
				panic("boom")
			})
			j := job.New("panic", job.NewStage("panic0", panicking, preserved))
			_, err := exec.Run(ctx, j, in)

			Convey("It should be converted into an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "boom")
			})
		})

		Convey("When the feeder fails", func() {
			errFeed := errors.New("cannot read")
			failingInput := input.FeederFunc(func(context.Context, string, output.Output) error {
				return errFeed
			})
			j := job.New("feed", job.NewStage("upper0", transformationOf(upper), preserved))
			_, err := exec.Run(ctx, j, failingInput)

			Convey("It should fail the job", func() {
				So(errors.Is(err, errFeed), ShouldBeTrue)

				var taskErr *job.TaskError
				So(errors.As(err, &taskErr), ShouldBeTrue)
				So(taskErr.Task.StageName, ShouldEqual, InputStageName)
			})
		})

		Convey("When a stage has a broadcast variable", func() {
			stage := job.NewStage("bv0", transformation.FactoryFunc(func() transformation.Transformation {
				return &prependBroadcast{name: "bv"}
			}), preserved)
			stage.Broadcasts = []string{"bv"}
			j := job.New("broadcast", stage)

			go func() {
				time.Sleep(20 * time.Millisecond)
				k := broadcast.Key{JobID: j.ID, Stage: "bv0", Name: "bv"}
				_ = store.Publish(ctx, k, [][]byte{[]byte("x"), []byte("y")})
			}()
			res, err := exec.Run(ctx, j, in)
			So(err, ShouldBeNil)

			Convey("Every task should see the published elements before its rows", func() {
				So(stringsOf(res.Partitions[0]), ShouldResemble, []string{"xy", "a", "b", "c"})
				So(stringsOf(res.Partitions[1]), ShouldResemble, []string{"xy", "d", "e"})
			})
		})

		Convey("When a task asks for a broadcast variable not attached", func() {
			stage := job.NewStage("bv0", transformation.FactoryFunc(func() transformation.Transformation {
				return &prependBroadcast{name: "absent"}
			}), preserved)
			_, err := exec.Run(ctx, job.New("missing", stage), in)

			Convey("It should fail with ErrMissing", func() {
				So(errors.Is(err, broadcast.ErrMissing), ShouldBeTrue)
			})
		})

		Convey("When a stage belongs to an iteration", func() {
			stage := job.NewStage("step0", transformation.FactoryFunc(func() transformation.Transformation {
				return superstepWriter{}
			}), preserved)
			stage.Iteration = fixedSuperstep(3)
			res, err := exec.Run(ctx, job.New("iter", stage), in)
			So(err, ShouldBeNil)

			Convey("Tasks should see the superstep", func() {
				So(stringsOf(res.Rows()), ShouldResemble, []string{"3", "3", "3", "3", "3"})
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, ccancel := context.WithCancel(ctx)
			ccancel()
			_, err := exec.Run(cctx, job.New("cancelled", job.NewStage("upper0", transformationOf(upper), preserved)), in)

			Convey("It should return the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func upper(_ int64, r *lrdd.Row) (*lrdd.Row, error) {
	return lrdd.KeyValue(r.Key, bytes.ToUpper(r.Value)), nil
}

func twice(_ int64, r *lrdd.Row) (*lrdd.Row, error) {
	return lrdd.KeyValue(r.Key, append(r.Value, r.Value...)), nil
}

type rowFunc func(ordinal int64, r *lrdd.Row) (*lrdd.Row, error)

func (f rowFunc) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	var ordinal int64
	for row := range in {
		result, err := f(ordinal, row)
		if err != nil {
			return err
		}
		if err := out.Write(result); err != nil {
			return err
		}
		ordinal++
	}
	return nil
}

func transformationOf(f rowFunc) transformation.Factory {
	return transformation.FactoryFunc(func() transformation.Transformation {
		return f
	})
}

type prependBroadcast struct {
	name     string
	resolved []byte
}

func (p *prependBroadcast) Setup(c transformation.Context) error {
	elements, err := c.Broadcast(p.name)
	if err != nil {
		return err
	}
	p.resolved = bytes.Join(elements, nil)
	return nil
}

func (p *prependBroadcast) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	if err := out.Write(lrdd.Value(p.resolved)); err != nil {
		return err
	}
	for row := range in {
		if err := out.Write(row); err != nil {
			return err
		}
	}
	return nil
}

type fixedSuperstep int

func (f fixedSuperstep) Superstep() int { return int(f) }

type superstepWriter struct{}

func (superstepWriter) Apply(c transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	for range in {
		if err := out.Write(lrdd.Value([]byte(strconv.Itoa(c.Superstep())))); err != nil {
			return err
		}
	}
	return nil
}

func feedStrings(data map[string][]string) input.Feeder {
	return input.FeederFunc(func(ctx context.Context, partitionID string, out output.Output) error {
		var rows []*lrdd.Row
		for _, s := range data[partitionID] {
			rows = append(rows, lrdd.Value([]byte(s)))
		}
		return out.Write(rows)
	})
}

func stringsOf(rows []*lrdd.Row) []string {
	ss := make([]string, len(rows))
	for i, r := range rows {
		ss[i] = string(r.Value)
	}
	return ss
}
