package transformation

import (
	"github.com/ab180/enrich/lrdd"
	"github.com/therne/errorist"
)

// EachRow calls fn for every row from in, in order. The first error or
// panic from fn stops the loop and is returned as a *RecordError carrying
// the ordinal of the row.
func EachRow(in chan *lrdd.Row, fn func(row *lrdd.Row) error) error {
	var ordinal int64
	for row := range in {
		if err := callSafely(fn, row); err != nil {
			return NewRecordError(ordinal, err)
		}
		ordinal++
	}
	return nil
}

func callSafely(fn func(row *lrdd.Row) error, row *lrdd.Row) (err error) {
	defer func() {
		if perr := errorist.WrapPanic(recover()); perr != nil {
			err = perr
		}
	}()
	return fn(row)
}
