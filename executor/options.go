package executor

import (
	"runtime"

	"github.com/ab180/enrich/output"
	"github.com/creasty/defaults"
)

type Options struct {
	// Concurrency is the default number of partitions of a stage.
	// By default, it will be number of CPUs in the machine.
	Concurrency int `default:"-"`

	Input struct {
		// QueueLength is the number of row batches a task can receive ahead.
		QueueLength int `default:"1000"`
	}
	Output output.Options
}

func DefaultOptions() (o Options) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	o.SetDefaults()
	return
}

func (o *Options) SetDefaults() {
	if defaults.CanUpdate(o.Concurrency) {
		o.Concurrency = runtime.NumCPU()
	}
}
