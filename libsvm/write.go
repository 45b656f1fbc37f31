package libsvm

import (
	"bufio"
	"context"
	"os"

	"github.com/ab180/enrich/dataflow"
	"github.com/pkg/errors"
	"github.com/therne/errorist"
)

// Write evaluates the dataset and writes its vectors to the file, in order.
func Write(ctx context.Context, ds *dataflow.Dataset[LabeledVector], path string) (err error) {
	vectors, err := ds.Collect(ctx)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create")
	}
	defer errorist.CloseWithErrCapture(file, &err, errorist.Wrapf("close"))

	w := bufio.NewWriter(file)
	for _, lv := range vectors {
		if _, err := w.WriteString(formatLine(lv) + "\n"); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	return errors.Wrapf(w.Flush(), "write %s", path)
}
