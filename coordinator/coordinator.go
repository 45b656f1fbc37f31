// Package coordinator provides a small key-value and watch abstraction used to
// publish job-scoped state, such as broadcast payloads, to every task that
// needs it. Values are stored as JSON.
package coordinator

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Coordinator interface {
	Get(ctx context.Context, key string, valuePtr interface{}) error
	Scan(ctx context.Context, prefix string) (results []RawItem, err error)
	Put(ctx context.Context, key string, value interface{}, opts ...WriteOption) error

	// Watch subscribes modification events of the keys starting with given prefix.
	// The returned channel is closed after ctx is done or the coordinator is closed.
	Watch(ctx context.Context, prefix string) chan WatchEvent

	// GrantLease creates a lease which expires after given TTL. Keys written
	// with the lease are deleted on expiration.
	GrantLease(ctx context.Context, ttl time.Duration) (LeaseID, error)

	// Delete removes all keys starting with given prefix.
	Delete(ctx context.Context, prefix string) (deleted int64, err error)

	Close() error
}
