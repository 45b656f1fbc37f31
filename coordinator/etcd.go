package coordinator

import (
	"context"
	"time"

	"github.com/creasty/defaults"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/therne/errorist"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
)

// Etcd is a Coordinator backed by an etcd cluster. It allows broadcast
// payloads to be published by a driver process and awaited by tasks running
// in other processes.
type Etcd struct {
	Client  *clientv3.Client
	KV      clientv3.KV
	Watcher clientv3.Watcher
	Lease   clientv3.Lease

	option EtcdOptions
}

type EtcdOptions struct {
	DialTimeout time.Duration `default:"5s"`
	OpTimeout   time.Duration `default:"3s"`
}

func DefaultEtcdOptions() (o EtcdOptions) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}

func NewEtcd(endpoints []string, nsPrefix string, opts ...EtcdOptions) (Coordinator, error) {
	option := DefaultEtcdOptions()
	if len(opts) > 0 {
		option = opts[0]
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: option.DialTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect etcd")
	}
	return &Etcd{
		Client:  cli,
		KV:      namespace.NewKV(cli.KV, nsPrefix),
		Watcher: namespace.NewWatcher(cli.Watcher, nsPrefix),
		Lease:   namespace.NewLease(cli.Lease, nsPrefix),
		option:  option,
	}, nil
}

func (e *Etcd) Get(ctx context.Context, key string, valuePtr interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	resp, err := e.KV.Get(ctx, key)
	if err != nil {
		return err
	}
	if len(resp.Kvs) == 0 {
		return ErrNotFound
	}
	return jsoniter.Unmarshal(resp.Kvs[0].Value, valuePtr)
}

func (e *Etcd) Scan(ctx context.Context, prefix string) (results []RawItem, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	resp, err := e.KV.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, err
	}
	for _, kv := range resp.Kvs {
		results = append(results, RawItem{
			Key:   string(kv.Key),
			Value: kv.Value,
		})
	}
	return results, nil
}

func (e *Etcd) Watch(ctx context.Context, prefix string) chan WatchEvent {
	watchChan := make(chan WatchEvent)

	wc := e.Watcher.Watch(ctx, prefix, clientv3.WithPrefix())
	go func() {
		defer func() {
			if err := errorist.WrapPanic(recover()); err != nil {
				log.Error().Err(err).Str("prefix", prefix).Msg("panic occurred while watching prefix")
			}
		}()
		defer close(watchChan)

		for wr := range wc {
			if err := wr.Err(); err != nil {
				log.Warn().Err(err).Str("prefix", prefix).Msg("watch error")
				continue
			}
			for _, ev := range wr.Events {
				var we WatchEvent
				switch ev.Type {
				case mvccpb.PUT:
					we = WatchEvent{
						Type: PutEvent,
						Item: RawItem{Key: string(ev.Kv.Key), Value: ev.Kv.Value},
					}
				case mvccpb.DELETE:
					we = WatchEvent{
						Type: DeleteEvent,
						Item: RawItem{Key: string(ev.Kv.Key)},
					}
				}
				select {
				case watchChan <- we:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return watchChan
}

func (e *Etcd) Put(ctx context.Context, key string, value interface{}, opts ...WriteOption) error {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	jsonVal, err := jsoniter.MarshalToString(value)
	if err != nil {
		return err
	}
	var etcdOpts []clientv3.OpOption
	if opt := buildWriteOption(opts); opt.Lease != NoLease {
		etcdOpts = append(etcdOpts, clientv3.WithLease(clientv3.LeaseID(opt.Lease)))
	}
	_, err = e.KV.Put(ctx, key, jsonVal, etcdOpts...)
	return err
}

func (e *Etcd) GrantLease(ctx context.Context, ttl time.Duration) (LeaseID, error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	lease, err := e.Lease.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return NoLease, err
	}
	return LeaseID(lease.ID), nil
}

// Delete remove all keys starting with given prefix.
func (e *Etcd) Delete(ctx context.Context, prefix string) (deleted int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.option.OpTimeout)
	defer cancel()

	var opts []clientv3.OpOption
	if prefix == "" {
		prefix = "\x00"
		opts = append(opts, clientv3.WithFromKey())
	} else {
		opts = append(opts, clientv3.WithPrefix())
	}
	resp, err := e.KV.Delete(ctx, prefix, opts...)
	if err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (e *Etcd) Close() error {
	return e.Client.Close()
}
