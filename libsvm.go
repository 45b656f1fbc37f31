package enrich

import (
	"context"

	"github.com/ab180/enrich/dataflow"
	"github.com/ab180/enrich/libsvm"
)

// ReadLibSVM creates a dataset of labeled vectors from a LibSVM file.
func ReadLibSVM(sess *dataflow.Session, path string, opts ...libsvm.ReadOption) (*dataflow.Dataset[libsvm.LabeledVector], error) {
	return libsvm.Read(sess, path, opts...)
}

// WriteLibSVM evaluates the dataset and writes it to a LibSVM file.
func WriteLibSVM(ctx context.Context, ds *dataflow.Dataset[libsvm.LabeledVector], path string) error {
	return libsvm.Write(ctx, ds, path)
}
