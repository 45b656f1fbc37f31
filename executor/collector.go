package executor

import (
	"sync"

	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/partitions"
)

// Collector gathers rows written by the last stage of a job, keeping them
// per partition so that the result can be read in partition order.
type Collector struct {
	index map[string]int
	rows  [][]*lrdd.Row
	lock  sync.Mutex
}

func NewCollector(p partitions.Partitions) *Collector {
	c := &Collector{
		index: make(map[string]int, len(p.Partitions)),
		rows:  make([][]*lrdd.Row, len(p.Partitions)),
	}
	for i, part := range p.Partitions {
		c.index[part.ID] = i
	}
	return c
}

// Output returns an output collecting rows of given partition.
func (c *Collector) Output(partitionID string) output.Output {
	return &collectorOutput{collector: c, slot: c.index[partitionID]}
}

// Rows returns collected rows of each partition in partition order.
func (c *Collector) Rows() [][]*lrdd.Row {
	c.lock.Lock()
	defer c.lock.Unlock()

	rows := make([][]*lrdd.Row, len(c.rows))
	copy(rows, c.rows)
	return rows
}

type collectorOutput struct {
	collector *Collector
	slot      int
}

func (c *collectorOutput) Write(rows []*lrdd.Row) error {
	c.collector.lock.Lock()
	defer c.collector.lock.Unlock()

	c.collector.rows[c.slot] = append(c.collector.rows[c.slot], rows...)
	return nil
}

func (c *collectorOutput) Close() error {
	return nil
}

var _ output.Output = (*collectorOutput)(nil)
