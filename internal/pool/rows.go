package pool

import "github.com/ab180/enrich/lrdd"

const rowBatchCapacity = 128

var rowBatches = NewWithResetter(
	func() []*lrdd.Row {
		return make([]*lrdd.Row, 0, rowBatchCapacity)
	},
	func(b *[]*lrdd.Row) {
		for i := range *b {
			(*b)[i] = nil
		}
		*b = (*b)[:0]
	},
)

// GetRowBatch returns an empty row batch. Ownership moves along with the
// batch; whoever consumes it last should hand it back with PutRowBatch.
func GetRowBatch() []*lrdd.Row {
	return rowBatches.Get()
}

func PutRowBatch(b []*lrdd.Row) {
	rowBatches.ResetAndPut(b)
}
