package input

import (
	"context"
	"testing"

	"github.com/ab180/enrich/lrdd"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReader(t *testing.T) {
	Convey("Given a Reader with two upstreams", t, func() {
		r := NewReader(2)
		r.Add()
		r.Add()
		ctx := context.Background()

		Convey("It should deliver batches in the order of writes", func() {
			So(r.Write(ctx, []*lrdd.Row{lrdd.Value([]byte("a"))}), ShouldBeNil)
			So(r.Write(ctx, []*lrdd.Row{lrdd.Value([]byte("b"))}), ShouldBeNil)

			So(string((<-r.C)[0].Value), ShouldEqual, "a")
			So(string((<-r.C)[0].Value), ShouldEqual, "b")
		})

		Convey("It should close C only after every upstream is done", func() {
			r.Done()
			So(r.closed.Load(), ShouldBeFalse)

			r.Done()
			_, open := <-r.C
			So(open, ShouldBeFalse)

			Convey("Closing again should be no-op", func() {
				So(func() { r.Close() }, ShouldNotPanic)
			})
		})

		Convey("Write should give up when the context is done", func() {
			So(r.Write(ctx, nil), ShouldBeNil)
			So(r.Write(ctx, nil), ShouldBeNil)

			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(r.Write(cctx, nil), ShouldEqual, context.Canceled)
		})
	})
}
