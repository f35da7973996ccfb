package events

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Memory is an in-process Log for tests and single-node dev mode. It retains
// all published events so late subscribers can replay from any point.
type Memory struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []Event
}

func NewMemory() *Memory {
	m := &Memory{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	m.cond.Broadcast()
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, since time.Time) (<-chan Event, error) {
	out := make(chan Event)

	// Wake the pump when the subscriber goes away.
	stop := context.AfterFunc(ctx, func() { m.cond.Broadcast() })

	go func() {
		defer stop()
		defer close(out)
		next := 0
		for {
			m.mu.Lock()
			for next >= len(m.events) && ctx.Err() == nil {
				m.cond.Wait()
			}
			if ctx.Err() != nil {
				m.mu.Unlock()
				return
			}
			batch := slices.Clone(m.events[next:])
			next = len(m.events)
			m.mu.Unlock()

			for _, ev := range batch {
				if !ev.Timestamp.After(since) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
