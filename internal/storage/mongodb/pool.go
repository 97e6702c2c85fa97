package mongodb

import (
	"sync/atomic"

	"go.mongodb.org/mongo-driver/event"
)

// PoolTracker counts the connections of a client from the driver's pool
// events. The driver exposes no pool snapshot, so the counts are kept as the
// events arrive.
type PoolTracker struct {
	open  atomic.Int64
	inUse atomic.Int64
}

// NewPoolTracker returns a tracker with no connections.
func NewPoolTracker() *PoolTracker {
	return &PoolTracker{}
}

// Monitor returns the pool monitor to install on the client options.
func (t *PoolTracker) Monitor() *event.PoolMonitor {
	return &event.PoolMonitor{Event: t.observe}
}

func (t *PoolTracker) observe(e *event.PoolEvent) {
	switch e.Type {
	case event.ConnectionCreated:
		t.open.Add(1)
	case event.ConnectionClosed:
		t.open.Add(-1)
	case event.GetSucceeded:
		t.inUse.Add(1)
	case event.ConnectionReturned:
		t.inUse.Add(-1)
	}
}

// Stats reports the connections currently open and those checked out. It has
// the shape the metrics pool collector expects.
func (t *PoolTracker) Stats() (open, inUse int64) {
	return t.open.Load(), t.inUse.Load()
}
