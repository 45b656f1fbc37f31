package partitions

// Auto lets the session decide the number of partitions.
const Auto = 0

// Partitions represents partitions in a stage.
type Partitions struct {
	// Partitioner determines which partition of the stage receives each row
	// written by the previous stage.
	Partitioner Partitioner `json:"-"`
	Partitions  []Partition `json:"partitions"`
}

func New(p Partitioner, partitions []Partition) Partitions {
	return Partitions{
		Partitioner: p,
		Partitions:  partitions,
	}
}

// IDs returns partition IDs in partition order.
func (p Partitions) IDs() []string {
	ids := make([]string, len(p.Partitions))
	for i, part := range p.Partitions {
		ids[i] = part.ID
	}
	return ids
}

type Partition struct {
	ID string `json:"id"`

	// Index is the position of the partition in its stage. Outputs are
	// collected in the order of the index.
	Index int `json:"index"`
}

// Plan describes how a stage should be partitioned.
type Plan struct {
	Partitioner  Partitioner
	DesiredCount int
}

// Build creates partitions of the plan. defaultCount is used when the plan
// does not specify the number of partitions.
func (p Plan) Build(defaultCount int) Partitions {
	n := p.DesiredCount
	if n == Auto {
		n = defaultCount
	}
	partitioner := p.Partitioner
	if partitioner == nil {
		partitioner = NewPreservePartitioner()
	}
	return New(partitioner, partitioner.PlanNext(n))
}
