package job

import (
	"github.com/ab180/enrich/partitions"
	"github.com/ab180/enrich/transformation"
)

// Stage is a set of tasks running the same transformation, one per partition.
type Stage struct {
	Name     string                 `json:"name"`
	Function transformation.Factory `json:"-"`

	// Partitions of the stage. Its partitioner routes rows written by the
	// previous stage; with a preserve partitioner the stage must have the
	// same partitions with the previous one.
	Partitions partitions.Partitions `json:"partitions"`

	// Broadcasts are names of broadcast variables attached to the stage.
	Broadcasts []string `json:"broadcasts,omitempty"`

	// Iteration is set when the stage runs as a part of an iterative computation.
	Iteration Superstepper `json:"-"`
}

// Superstepper reports the current superstep of an iterative computation.
type Superstepper interface {
	Superstep() int
}

func NewStage(name string, fn transformation.Factory, p partitions.Partitions) *Stage {
	return &Stage{
		Name:       name,
		Function:   fn,
		Partitions: p,
	}
}

// HasBroadcast returns true if a broadcast is attached to the stage with given name.
func (s *Stage) HasBroadcast(name string) bool {
	for _, b := range s.Broadcasts {
		if b == name {
			return true
		}
	}
	return false
}
