package partitions

import (
	"errors"
	"strconv"

	"github.com/ab180/enrich/lrdd"
	"github.com/segmentio/fasthash/fnv1a"
	"go.uber.org/atomic"
)

// ErrNoOutput is returned by Partitioner.DeterminePartition when there's no
// corresponding partition found with the key of given row.
var ErrNoOutput = errors.New("no output")

type Partitioner interface {
	PlanNext(numPartitions int) []Partition
	DeterminePartition(c Context, r *lrdd.Row, numOutputs int) (id string, err error)
}

// PlanForNumberOf creates given number of partitions.
// It uses its index number for each partition's ID.
func PlanForNumberOf(numPartitions int) []Partition {
	pp := make([]Partition, numPartitions)
	for i := 0; i < numPartitions; i++ {
		pp[i] = Partition{
			ID:    strconv.Itoa(i),
			Index: i,
		}
	}
	return pp
}

type hashKeyPartitioner struct{}

// NewHashKeyPartitioner routes rows with the same key into the same partition.
func NewHashKeyPartitioner() Partitioner {
	return &hashKeyPartitioner{}
}

func (h *hashKeyPartitioner) PlanNext(numPartitions int) []Partition {
	return PlanForNumberOf(numPartitions)
}

func (h *hashKeyPartitioner) DeterminePartition(_ Context, r *lrdd.Row, numOutputs int) (id string, err error) {
	if numOutputs <= 0 {
		return "", ErrNoOutput
	}
	// uses Fowler–Noll–Vo hash to determine output shard
	slot := fnv1a.HashString64(r.Key) % uint64(numOutputs)
	return strconv.FormatUint(slot, 10), nil
}

// ShuffledPartitioner distributes rows to partitions in round-robin manner.
type ShuffledPartitioner struct {
	sentEvents *atomic.Uint64
}

func NewShuffledPartitioner() Partitioner {
	return &ShuffledPartitioner{sentEvents: atomic.NewUint64(0)}
}

func (f *ShuffledPartitioner) PlanNext(numPartitions int) []Partition {
	return PlanForNumberOf(numPartitions)
}

func (f *ShuffledPartitioner) DeterminePartition(_ Context, _ *lrdd.Row, numOutputs int) (id string, err error) {
	if numOutputs <= 0 {
		return "", ErrNoOutput
	}
	slot := (f.sentEvents.Inc() - 1) % uint64(numOutputs)
	return strconv.FormatUint(slot, 10), nil
}

// PreservePartitioner keeps rows in the partition they were produced in.
// Stages connected with it are executed as a narrow (local) dependency.
type PreservePartitioner struct{}

func NewPreservePartitioner() Partitioner {
	return &PreservePartitioner{}
}

func (p PreservePartitioner) PlanNext(numPartitions int) []Partition {
	return PlanForNumberOf(numPartitions)
}

func (p PreservePartitioner) DeterminePartition(c Context, _ *lrdd.Row, _ int) (id string, err error) {
	return c.PartitionID(), nil
}

func IsPreserved(p Partitioner) bool {
	switch p.(type) {
	case *PreservePartitioner, PreservePartitioner:
		return true
	}
	return false
}
