package job

import (
	"context"
	"errors"
	"testing"

	"github.com/ab180/enrich/metric"
	"github.com/ab180/enrich/partitions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLocalStatusManager(t *testing.T) {
	Convey("Given a job with two stages of two partitions", t, func() {
		p := partitions.Plan{DesiredCount: 2}.Build(0)
		j := New("test", NewStage("map0", nil, p), NewStage("filter1", nil, p))
		sm := NewLocalStatusManager(j)
		ctx := context.Background()

		var (
			completed  []*Status
			stagesDone []string
		)
		sm.OnJobCompletion(func(s *Status) { completed = append(completed, s) })
		sm.OnStageCompletion(func(name string, _ *StageStatus) { stagesDone = append(stagesDone, name) })

		Convey("When every task succeeds", func() {
			for _, stage := range j.Stages {
				for _, id := range stage.Partitions.IDs() {
					tid := TaskID{JobID: j.ID, StageName: stage.Name, PartitionID: id}
					So(sm.MarkTaskAsSucceed(ctx, tid, metric.Metrics{"input": 2}), ShouldBeNil)
				}
			}

			Convey("It should complete stages and the job", func() {
				So(stagesDone, ShouldResemble, []string{"map0", "filter1"})
				So(completed, ShouldHaveLength, 1)
				So(completed[0].Status, ShouldEqual, Succeeded)
				So(sm.Status().Status, ShouldEqual, Succeeded)
			})

			Convey("It should collect metrics per stage", func() {
				m, err := sm.CollectMetrics(ctx)
				So(err, ShouldBeNil)
				So(m, ShouldResemble, metric.Metrics{"map0/input": 4, "filter1/input": 4})
			})
		})

		Convey("When tasks fail", func() {
			tid := TaskID{JobID: j.ID, StageName: "map0", PartitionID: "1"}
			So(sm.MarkTaskAsFailed(ctx, tid, errors.New("boom"), nil), ShouldBeNil)
			So(sm.MarkTaskAsFailed(ctx, tid, errors.New("boom again"), nil), ShouldBeNil)

			Convey("It should fail the job only once, recording every error", func() {
				So(completed, ShouldHaveLength, 1)
				So(completed[0].Status, ShouldEqual, Failed)

				s := sm.Status()
				So(s.Errors, ShouldHaveLength, 2)
				So(s.Errors[0].Message, ShouldEqual, "boom")
				So(s.Errors[0].Task, ShouldEqual, tid.String())
			})
		})
	})
}

func TestTaskError(t *testing.T) {
	Convey("Given a TaskError", t, func() {
		cause := errors.New("bad record")
		tid := TaskID{JobID: "J1", StageName: "map0", PartitionID: "3"}

		Convey("It should describe the task and the record", func() {
			err := &TaskError{Task: tid, Record: 4, Cause: cause}
			So(err.Error(), ShouldEqual, "task J1/map0/3 failed on record #4: bad record")
			So(errors.Is(err, cause), ShouldBeTrue)
		})

		Convey("It should omit the record when not available", func() {
			err := &TaskError{Task: tid, Record: NoRecord, Cause: cause}
			So(err.Error(), ShouldEqual, "task J1/map0/3 failed: bad record")
		})
	})
}
