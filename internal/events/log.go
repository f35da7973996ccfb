package events

import (
	"context"
	"time"
)

// Log is the shared append-only notification log. Publish appends one event;
// Subscribe streams every event with a timestamp after since, in log order,
// until ctx is cancelled, at which point the returned channel is closed.
//
// Subscribe delivers the whole log, not a per-recipient slice: recipient
// filtering needs local knowledge (own address, cached ward list) that only
// the consuming channel has.
type Log interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, since time.Time) (<-chan Event, error)
}
