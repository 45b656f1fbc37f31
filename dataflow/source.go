package dataflow

import (
	"context"
	"strconv"

	"github.com/ab180/enrich/codec"
	"github.com/ab180/enrich/input"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/partitions"
	"github.com/pkg/errors"
)

var ErrInvalidPartitions = errors.New("number of partitions must be positive")

func resolvePartitions(sess *Session, numPartitions int) (int, error) {
	if numPartitions == partitions.Auto {
		return sess.DefaultPartitions(), nil
	}
	if numPartitions < 0 {
		return 0, errors.Wrapf(ErrInvalidPartitions, "got %d", numPartitions)
	}
	return numPartitions, nil
}

// Parallelize creates a dataset from a slice. The slice is split into
// contiguous ranges, one per partition, so that collecting the dataset
// yields the elements in the original order. partitions.Auto uses the
// default number of partitions of the session.
func Parallelize[T any](sess *Session, data []T, numPartitions int) (*Dataset[T], error) {
	n, err := resolvePartitions(sess, numPartitions)
	if err != nil {
		return nil, err
	}
	c := codec.For[T]()
	p := newSource(sess, "parallelize", n, func() input.Feeder {
		return input.FeederFunc(func(ctx context.Context, partitionID string, out output.Output) error {
			idx, err := strconv.Atoi(partitionID)
			if err != nil {
				return errors.Wrapf(err, "invalid partition %s", partitionID)
			}
			if idx >= n {
				return nil
			}
			from, to := idx*len(data)/n, (idx+1)*len(data)/n
			encoded, err := codec.EncodeAll(c, data[from:to])
			if err != nil {
				return err
			}
			return out.Write(lrdd.FromValues(encoded))
		})
	})
	return newDataset(p, c), nil
}

// FromFeeder creates a dataset from a custom source. The feeder must write
// rows holding values encoded with c.
func FromFeeder[T any](sess *Session, name string, feeder input.Feeder, numPartitions int, c codec.Codec[T]) (*Dataset[T], error) {
	n, err := resolvePartitions(sess, numPartitions)
	if err != nil {
		return nil, err
	}
	p := newSource(sess, name, n, func() input.Feeder {
		return feeder
	})
	return newDataset(p, c), nil
}

// partitionedRows holds materialized rows of each partition.
type partitionedRows [][]*lrdd.Row

func (p partitionedRows) feed(partitionID string, out output.Output) error {
	idx, err := strconv.Atoi(partitionID)
	if err != nil {
		return errors.Wrapf(err, "invalid partition %s", partitionID)
	}
	if idx >= len(p) {
		return nil
	}
	batch := make([]*lrdd.Row, len(p[idx]))
	copy(batch, p[idx])
	return out.Write(batch)
}
