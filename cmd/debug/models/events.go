package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/VoidMesh/worldstream/services/residency"
)

// EventKind distinguishes loads from unloads in the log.
type EventKind int

const (
	EventLoaded EventKind = iota
	EventUnloaded
)

type Event struct {
	Kind EventKind
	Line string
	At   time.Time
}

// EventLog is a residency.Listener that keeps the most recent events.
type EventLog struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	loads    int
	unloads  int
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &EventLog{capacity: capacity}
}

func (l *EventLog) ChunkLoaded(e residency.LoadedEvent) {
	l.push(Event{
		Kind: EventLoaded,
		Line: fmt.Sprintf("+ %v %s", e.Coord, e.Biome),
		At:   time.Now(),
	})
	l.mu.Lock()
	l.loads++
	l.mu.Unlock()
}

func (l *EventLog) ChunkUnloaded(e residency.UnloadedEvent) {
	l.push(Event{
		Kind: EventUnloaded,
		Line: fmt.Sprintf("- %v", e.Coord),
		At:   time.Now(),
	})
	l.mu.Lock()
	l.unloads++
	l.mu.Unlock()
}

func (l *EventLog) push(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
}

// Recent returns up to n events, newest last.
func (l *EventLog) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Totals returns the number of loads and unloads seen.
func (l *EventLog) Totals() (loads, unloads int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads, l.unloads
}
