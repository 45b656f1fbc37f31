package coordinator

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const watchQueueLength = 64

type localMemoryCoordinator struct {
	opt    localMemoryOptions
	data   sync.Map
	leases sync.Map

	subscriptions map[*subscription]struct{}
	subsLock      sync.RWMutex

	closed    chan struct{}
	closeOnce sync.Once
}

type entry struct {
	item  RawItem
	lease LeaseID
}

type subscription struct {
	prefix string
	events chan WatchEvent
	done   <-chan struct{}
}

// NewLocalMemory creates a coordinator living in the process memory.
// It is used for single-process sessions and tests.
func NewLocalMemory(opts ...LocalMemoryOption) Coordinator {
	lmc := &localMemoryCoordinator{
		subscriptions: map[*subscription]struct{}{},
		closed:        make(chan struct{}),
	}
	for _, o := range opts {
		o(&lmc.opt)
	}
	return lmc
}

func (lmc *localMemoryCoordinator) simulate(ctx context.Context) error {
	if lmc.opt.simulatedDelay > 0 {
		time.Sleep(lmc.opt.simulatedDelay)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return lmc.opt.simulatedError
}

func (lmc *localMemoryCoordinator) Get(ctx context.Context, key string, valuePtr interface{}) error {
	if err := lmc.simulate(ctx); err != nil {
		return err
	}
	v, ok := lmc.data.Load(key)
	if !ok {
		return ErrNotFound
	}
	e := v.(entry)
	if lmc.isAfterDeadline(e.lease) {
		lmc.expire(key)
		return ErrNotFound
	}
	return e.item.Unmarshal(valuePtr)
}

func (lmc *localMemoryCoordinator) Scan(ctx context.Context, prefix string) (results []RawItem, err error) {
	if err := lmc.simulate(ctx); err != nil {
		return nil, err
	}
	lmc.data.Range(func(key, value interface{}) bool {
		if strings.HasPrefix(key.(string), prefix) {
			e := value.(entry)
			if lmc.isAfterDeadline(e.lease) {
				lmc.expire(key.(string))
				return true
			}
			results = append(results, e.item)
		}
		return true
	})
	return
}

func (lmc *localMemoryCoordinator) Put(ctx context.Context, key string, value interface{}, opts ...WriteOption) error {
	if err := lmc.simulate(ctx); err != nil {
		return err
	}
	raw, err := jsoniter.Marshal(value)
	if err != nil {
		return err
	}
	e := entry{
		lease: buildWriteOption(opts).Lease,
		item: RawItem{
			Key:   key,
			Value: raw,
		},
	}
	lmc.data.Store(key, e)
	lmc.notifySubscribers(WatchEvent{
		Type: PutEvent,
		Item: e.item,
	})
	return nil
}

func (lmc *localMemoryCoordinator) Delete(ctx context.Context, prefix string) (deleted int64, err error) {
	if err = lmc.simulate(ctx); err != nil {
		return
	}
	lmc.data.Range(func(key, _ interface{}) bool {
		k := key.(string)
		if strings.HasPrefix(k, prefix) {
			lmc.delete(k)
			deleted += 1
		}
		return true
	})
	return deleted, nil
}

func (lmc *localMemoryCoordinator) delete(key string) {
	lmc.data.Delete(key)

	lmc.notifySubscribers(WatchEvent{
		Type: DeleteEvent,
		Item: RawItem{Key: key},
	})
}

func (lmc *localMemoryCoordinator) GrantLease(ctx context.Context, ttl time.Duration) (LeaseID, error) {
	if err := lmc.simulate(ctx); err != nil {
		return NoLease, err
	}
	lease := LeaseID(rand.Int63() | 1)
	lmc.leases.Store(lease, time.Now().Add(ttl))
	return lease, nil
}

func (lmc *localMemoryCoordinator) isAfterDeadline(lease LeaseID) bool {
	if lease == NoLease {
		return false
	}
	v, ok := lmc.leases.Load(lease)
	if !ok {
		return true
	}
	return time.Now().After(v.(time.Time))
}

func (lmc *localMemoryCoordinator) expire(key string) {
	lmc.delete(key)
}

func (lmc *localMemoryCoordinator) Watch(ctx context.Context, prefix string) chan WatchEvent {
	sub := &subscription{
		prefix: prefix,
		events: make(chan WatchEvent, watchQueueLength),
		done:   ctx.Done(),
	}
	lmc.subsLock.Lock()
	lmc.subscriptions[sub] = struct{}{}
	lmc.subsLock.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-lmc.closed:
		}
		lmc.subsLock.Lock()
		delete(lmc.subscriptions, sub)
		lmc.subsLock.Unlock()
		close(sub.events)
	}()
	return sub.events
}

func (lmc *localMemoryCoordinator) notifySubscribers(ev WatchEvent) {
	lmc.subsLock.RLock()
	defer lmc.subsLock.RUnlock()

	for sub := range lmc.subscriptions {
		if !strings.HasPrefix(ev.Item.Key, sub.prefix) {
			continue
		}
		select {
		case sub.events <- ev:
		case <-sub.done:
		case <-lmc.closed:
		}
	}
}

func (lmc *localMemoryCoordinator) Close() error {
	lmc.closeOnce.Do(func() {
		close(lmc.closed)
	})
	return nil
}

type localMemoryOptions struct {
	simulatedDelay time.Duration
	simulatedError error
}

type LocalMemoryOption func(*localMemoryOptions)

func WithSimulatedDelay(delay time.Duration) LocalMemoryOption {
	return func(opt *localMemoryOptions) {
		opt.simulatedDelay = delay
	}
}

func WithSimulatedError(err error) LocalMemoryOption {
	return func(opt *localMemoryOptions) {
		opt.simulatedError = err
	}
}
