package output

import (
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/partitions"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Writer routes rows written by a task to the outputs of the partitions
// determined by the partitioner.
type Writer struct {
	context     partitions.Context
	partitioner partitions.Partitioner
	outputs     map[string]Output
}

func NewWriter(partitionID string, p partitions.Partitioner, outputs map[string]Output) *Writer {
	return &Writer{
		context:     partitions.NewContext(partitionID),
		partitioner: p,
		outputs:     outputs,
	}
}

func (w *Writer) Write(rows ...*lrdd.Row) error {
	if len(rows) == 0 {
		return nil
	}
	if len(w.outputs) == 1 && partitions.IsPreserved(w.partitioner) {
		// fast path for the narrow dependency
		out, ok := w.outputs[w.context.PartitionID()]
		if !ok {
			return errors.Wrapf(partitions.ErrNoOutput, "partition %s", w.context.PartitionID())
		}
		batch := make([]*lrdd.Row, len(rows))
		copy(batch, rows)
		return out.Write(batch)
	}

	batches := make(map[string][]*lrdd.Row)
	for _, r := range rows {
		id, err := w.partitioner.DeterminePartition(w.context, r, len(w.outputs))
		if err != nil {
			return err
		}
		batches[id] = append(batches[id], r)
	}
	for id, batch := range batches {
		out, ok := w.outputs[id]
		if !ok {
			return errors.Wrapf(partitions.ErrNoOutput, "partition %s", id)
		}
		if err := out.Write(batch); err != nil {
			return errors.Wrapf(err, "write to partition %s", id)
		}
	}
	return nil
}

func (w *Writer) NumOutputs() int {
	return len(w.outputs)
}

// Close closes every output. It must be called once the task is finished,
// so that the next stage can be notified of the end of input.
func (w *Writer) Close() error {
	var errs error
	for id, out := range w.outputs {
		if err := out.Close(); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "close output %s", id))
		}
	}
	return errs
}
