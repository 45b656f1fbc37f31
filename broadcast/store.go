package broadcast

import (
	"context"
	"path"
	"time"

	"github.com/ab180/enrich/coordinator"
	"github.com/ab180/enrich/metric"
	"github.com/ab180/enrich/pkg/retry"
	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const keyNs = "broadcasts"

// ErrProducerFailed is returned to the waiters of a broadcast variable
// whose dataset could not be evaluated.
var ErrProducerFailed = errors.New("broadcast dataset failed")

// Key identifies a broadcast variable attached to a stage of a job.
type Key struct {
	JobID string
	Stage string
	Name  string
}

func (k Key) String() string {
	return path.Join(keyNs, k.JobID, k.Stage, k.Name)
}

type payload struct {
	Elements [][]byte `json:"elements"`
	Error    string   `json:"error,omitempty"`
}

type StoreOptions struct {
	// TTL bounds the lifetime of published variables in case the job
	// could not clean them up.
	TTL time.Duration `default:"1h"`

	// PollInterval is how often waiters re-read the variable in addition to
	// watching it, as some coordinators may drop events raced with the watch.
	PollInterval time.Duration `default:"1s"`

	PublishRetryCount int           `default:"3"`
	PublishRetryDelay time.Duration `default:"200ms"`
}

func DefaultStoreOptions() (o StoreOptions) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}

// Store publishes broadcast variables through a coordinator and lets tasks
// wait for them.
type Store struct {
	crd coordinator.Coordinator
	opt StoreOptions
}

func NewStore(crd coordinator.Coordinator, options ...func(*StoreOptions)) *Store {
	opt := DefaultStoreOptions()
	for _, o := range options {
		o(&opt)
	}
	return &Store{crd: crd, opt: opt}
}

// Publish makes the elements available to the waiters of the key.
func (s *Store) Publish(ctx context.Context, k Key, elements [][]byte) error {
	if elements == nil {
		elements = [][]byte{}
	}
	if err := s.put(ctx, k, payload{Elements: elements}); err != nil {
		return errors.Wrapf(err, "publish %s", k)
	}
	metric.BroadcastElementsHistogram.Observe(float64(len(elements)))
	log.Debug().Str("key", k.String()).Int("elements", len(elements)).Msg("broadcast published")
	return nil
}

// Fail notifies the waiters of the key that the variable will never be published.
func (s *Store) Fail(ctx context.Context, k Key, cause error) error {
	if err := s.put(ctx, k, payload{Error: cause.Error()}); err != nil {
		return errors.Wrapf(err, "report failure of %s", k)
	}
	log.Debug().Str("key", k.String()).Err(cause).Msg("broadcast failed")
	return nil
}

func (s *Store) put(ctx context.Context, k Key, p payload) error {
	return retry.Do(ctx, func() error {
		lease, err := s.crd.GrantLease(ctx, s.opt.TTL)
		if err != nil {
			return errors.Wrap(err, "grant lease")
		}
		return s.crd.Put(ctx, k.String(), p, coordinator.WithLease(lease))
	}, retry.WithRetryCount(s.opt.PublishRetryCount), retry.WithDelay(s.opt.PublishRetryDelay))
}

// Await blocks until the variable of the key is published or failed, or ctx is done.
func (s *Store) Await(ctx context.Context, k Key) ([][]byte, error) {
	startedAt := time.Now()
	defer func() {
		metric.BroadcastWaitHistogram.Observe(time.Since(startedAt).Seconds())
	}()

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// watch first not to miss the publication right after the read
	events := s.crd.Watch(wctx, k.String())
	if p, found, err := s.read(ctx, k); err != nil || found {
		return p, err
	}

	ticker := time.NewTicker(s.opt.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, errors.Errorf("watch of %s closed", k)
			}
			if ev.Type != coordinator.PutEvent || ev.Item.Key != k.String() {
				continue
			}
			var p payload
			if err := ev.Item.Unmarshal(&p); err != nil {
				return nil, errors.Wrapf(err, "unmarshal %s", k)
			}
			return p.result()

		case <-ticker.C:
			if p, found, err := s.read(ctx, k); err != nil || found {
				return p, err
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Store) read(ctx context.Context, k Key) (elements [][]byte, found bool, err error) {
	var p payload
	if err := s.crd.Get(ctx, k.String(), &p); err != nil {
		if errors.Is(err, coordinator.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "read %s", k)
	}
	elements, err = p.result()
	return elements, true, err
}

func (p payload) result() ([][]byte, error) {
	if p.Error != "" {
		return nil, errors.Wrap(ErrProducerFailed, p.Error)
	}
	if p.Elements == nil {
		return [][]byte{}, nil
	}
	return p.Elements, nil
}

// Clear removes every variable published for the job and returns
// the keys it removed.
func (s *Store) Clear(ctx context.Context, jobID string) ([]string, error) {
	prefix := path.Join(keyNs, jobID) + "/"
	items, err := s.crd.Scan(ctx, prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", prefix)
	}
	if len(items) == 0 {
		return nil, nil
	}
	if _, err := s.crd.Delete(ctx, prefix); err != nil {
		return nil, errors.Wrapf(err, "delete %s", prefix)
	}
	return lo.Map(items, func(it coordinator.RawItem, _ int) string { return it.Key }), nil
}
