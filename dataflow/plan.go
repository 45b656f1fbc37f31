package dataflow

import (
	"github.com/ab180/enrich/input"
	"github.com/ab180/enrich/iteration"
	"github.com/ab180/enrich/lrdd"
	"github.com/ab180/enrich/output"
	"github.com/ab180/enrich/partitions"
	"github.com/ab180/enrich/transformation"
)

// plan is a node of the lineage of a dataset. A node without parent is a
// source; every other node becomes a stage when the lineage is compiled.
type plan struct {
	sess *Session
	name string

	parent        *plan
	numPartitions int

	// newFeeder creates the input of a job starting from the source.
	newFeeder func() input.Feeder

	function transformation.Factory

	// partitioner routes rows from the parent. nil preserves partitions.
	partitioner partitions.Partitioner
	broadcasts  []sideInput

	// scope is set when the node is a part of an iteration step.
	scope *iteration.Scope
}

type sideInput struct {
	name string
	plan *plan
}

func newSource(sess *Session, name string, numPartitions int, newFeeder func() input.Feeder) *plan {
	return &plan{
		sess:          sess,
		name:          name,
		numPartitions: numPartitions,
		newFeeder:     newFeeder,
	}
}

// then creates a node running fn on every partition of p.
func (p *plan) then(name string, fn transformation.Factory) *plan {
	return &plan{
		sess:          p.sess,
		name:          name,
		parent:        p,
		numPartitions: p.numPartitions,
		function:      fn,
		scope:         p.scope,
	}
}

func (p *plan) partitionPlan() partitions.Plan {
	return partitions.Plan{
		Partitioner:  p.partitioner,
		DesiredCount: p.numPartitions,
	}
}

// derivesFrom returns true if ancestor is on the lineage of p.
func (p *plan) derivesFrom(ancestor *plan) bool {
	for n := p; n != nil; n = n.parent {
		if n == ancestor {
			return true
		}
		for _, b := range n.broadcasts {
			if b.plan.derivesFrom(ancestor) {
				return true
			}
		}
	}
	return false
}

func identityOf(p *plan) *plan {
	return p.then("identity", transformation.FactoryFunc(func() transformation.Transformation {
		return identity{}
	}))
}

type identity struct{}

func (identity) Apply(_ transformation.Context, in chan *lrdd.Row, out *output.Writer) error {
	for row := range in {
		if err := out.Write(row); err != nil {
			return err
		}
	}
	return nil
}
