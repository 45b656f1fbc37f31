package coordinator

import jsoniter "github.com/json-iterator/go"

// EventType is the type of the events from watching keys.
type EventType int

const (
	PutEvent EventType = iota
	DeleteEvent
)

type WatchEvent struct {
	Type EventType
	Item RawItem
}

// RawItem is a data of item which isn't unmarshalled yet.
type RawItem struct {
	Key   string
	Value []byte
}

func (r RawItem) Unmarshal(value interface{}) error {
	return jsoniter.Unmarshal(r.Value, value)
}

// LeaseID identifies a lease granted by a coordinator. NoLease means the
// key never expires.
type LeaseID int64

const NoLease LeaseID = 0

type writeOption struct {
	Lease LeaseID
}

type WriteOption func(o *writeOption)

// WithLease attaches a lease to the written key.
func WithLease(l LeaseID) WriteOption {
	return func(o *writeOption) {
		o.Lease = l
	}
}

func buildWriteOption(opts []WriteOption) (o writeOption) {
	for _, opt := range opts {
		opt(&o)
	}
	return
}
