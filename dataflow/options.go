package dataflow

import (
	"time"

	"github.com/ab180/enrich/broadcast"
	"github.com/ab180/enrich/coordinator"
	"github.com/ab180/enrich/executor"
	"github.com/creasty/defaults"
)

type SessionOptions struct {
	// Name is used as a prefix of job names.
	Name string `default:"enrich"`

	// Timeout bounds every run started by the session. Zero means no timeout.
	Timeout time.Duration `default:"1m"`

	// DefaultPartitions is the number of partitions of sources created without
	// an explicit number. By default, it follows the executor concurrency.
	DefaultPartitions int `default:"0"`

	// EtcdEndpoints makes broadcast variables published through etcd.
	// An in-process coordinator is used when it is empty.
	EtcdEndpoints []string
	EtcdNamespace string `default:"enrich/"`
	EtcdOptions   coordinator.EtcdOptions

	Broadcast broadcast.StoreOptions
	Executor  executor.Options
}

type SessionOption func(o *SessionOptions)

func WithName(n string) SessionOption {
	return func(o *SessionOptions) {
		o.Name = n
	}
}

func WithTimeout(d time.Duration) SessionOption {
	return func(o *SessionOptions) {
		o.Timeout = d
	}
}

func WithDefaultPartitions(n int) SessionOption {
	return func(o *SessionOptions) {
		o.DefaultPartitions = n
	}
}

func WithEtcd(endpoints ...string) SessionOption {
	return func(o *SessionOptions) {
		o.EtcdEndpoints = endpoints
	}
}

func WithExecutorOptions(fn func(o *executor.Options)) SessionOption {
	return func(o *SessionOptions) {
		fn(&o.Executor)
	}
}

func buildSessionOptions(opts []SessionOption) (o SessionOptions) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	o.Executor.SetDefaults()
	for _, optFn := range opts {
		optFn(&o)
	}
	return o
}
