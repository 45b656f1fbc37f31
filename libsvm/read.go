package libsvm

import (
	"bufio"
	"context"
	"os"
	"strconv"

	"github.com/ab180/enrich/codec"
	"github.com/ab180/enrich/dataflow"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/partitions"
	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/therne/errorist"
)

type ReadOptions struct {
	// Partitions of the dataset. partitions.Auto follows the session default.
	Partitions int `default:"0"`

	// NumFeatures is the size of every vector. If it is zero, the largest
	// index found in the file is used.
	NumFeatures int `default:"0"`

	// BatchSize is the number of vectors written to the dataset at once.
	BatchSize int `default:"1000"`
}

type ReadOption func(o *ReadOptions)

func WithPartitions(n int) ReadOption {
	return func(o *ReadOptions) {
		o.Partitions = n
	}
}

func WithNumFeatures(n int) ReadOption {
	return func(o *ReadOptions) {
		o.NumFeatures = n
	}
}

// Read creates a dataset of the vectors in the file. The file is scanned
// once to validate it and to count its vectors. Each partition then parses
// a contiguous range of the vectors when the dataset is evaluated, so the
// order of the file is preserved.
func Read(sess *dataflow.Session, path string, opts ...ReadOption) (*dataflow.Dataset[LabeledVector], error) {
	opt := ReadOptions{}
	if err := defaults.Set(&opt); err != nil {
		panic(err)
	}
	for _, o := range opts {
		o(&opt)
	}

	count, maxSize := 0, 0
	err := scan(path, func(_ int, lv LabeledVector) error {
		count++
		if lv.Vector.Size > maxSize {
			maxSize = lv.Vector.Size
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	numFeatures := opt.NumFeatures
	if numFeatures == 0 {
		numFeatures = maxSize
	} else if maxSize > numFeatures {
		return nil, errors.Errorf("%s has %d features but %d expected", path, maxSize, numFeatures)
	}
	numPartitions := opt.Partitions
	if numPartitions == partitions.Auto {
		numPartitions = sess.DefaultPartitions()
	}
	log.Debug().Str("path", path).Int("vectors", count).Int("features", numFeatures).Msg("read libsvm")

	f := &rangeFeeder{
		path:          path,
		count:         count,
		numFeatures:   numFeatures,
		numPartitions: numPartitions,
		batchSize:     opt.BatchSize,
		codec:         codec.For[LabeledVector](),
	}
	return dataflow.FromFeeder(sess, "libsvm", f, numPartitions, f.codec)
}

// scan calls fn with every vector in the file and its ordinal.
func scan(path string, fn func(ordinal int, lv LabeledVector) error) (err error) {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer errorist.CloseWithErrCapture(file, &err, errorist.Wrapf("close"))

	s := bufio.NewScanner(file)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	ordinal := 0
	for lineNum := 1; s.Scan(); lineNum++ {
		lv, ok, err := parseLine(s.Text())
		if err != nil {
			return errors.WithMessagef(err, "%s:%d", path, lineNum)
		}
		if !ok {
			continue
		}
		if err := fn(ordinal, lv); err != nil {
			return err
		}
		ordinal++
	}
	return errors.Wrapf(s.Err(), "read %s", path)
}

type rangeFeeder struct {
	path          string
	count         int
	numFeatures   int
	numPartitions int
	batchSize     int
	codec         codec.Codec[LabeledVector]
}

func (r *rangeFeeder) FeedInput(ctx context.Context, partitionID string, out output.Output) error {
	idx, err := strconv.Atoi(partitionID)
	if err != nil {
		return errors.Wrapf(err, "invalid partition %s", partitionID)
	}
	from, to := idx*r.count/r.numPartitions, (idx+1)*r.count/r.numPartitions
	if from == to {
		return nil
	}

	batch := make([]*lrdd.Row, 0, r.batchSize)
	errDone := errors.New("done")
	err = scan(r.path, func(ordinal int, lv LabeledVector) error {
		if ordinal < from {
			return nil
		}
		if ordinal >= to {
			return errDone
		}
		lv.Vector.Size = r.numFeatures
		data, err := r.codec.Encode(lv)
		if err != nil {
			return errors.Wrap(err, "encode")
		}
		batch = append(batch, lrdd.Value(data))
		if len(batch) < r.batchSize {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := out.Write(batch); err != nil {
			return err
		}
		batch = make([]*lrdd.Row, 0, r.batchSize)
		return nil
	})
	if err != nil && !errors.Is(err, errDone) {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return out.Write(batch)
}
