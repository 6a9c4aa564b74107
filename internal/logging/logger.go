package logging

import (
	"context"
	"sort"
	"sync"
)

// EventLogger aggregates events from the filtering pipeline, handles
// real-time stderr output, and collects events for the JSON report.
type EventLogger struct {
	events  []Event
	mu      sync.Mutex
	logger  *StderrLogger
	eventCh chan Event
	seen    map[string]int // unresolved domain -> count
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEventLogger creates a new EventLogger.
func NewEventLogger(logger *StderrLogger) *EventLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventLogger{
		events:  make([]Event, 0, 256),
		logger:  logger,
		eventCh: make(chan Event, 1024),
		seen:    make(map[string]int),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// EventCh returns the channel for sending events to the logger.
func (el *EventLogger) EventCh() chan<- Event {
	return el.eventCh
}

// Start begins processing events in a background goroutine.
func (el *EventLogger) Start() {
	el.wg.Add(1)
	go func() {
		defer el.wg.Done()
		for {
			select {
			case <-el.ctx.Done():
				el.drain()
				return
			case ev, ok := <-el.eventCh:
				if !ok {
					return
				}
				el.processEvent(ev)
			}
		}
	}()
}

// Stop stops the event logger and waits for all queued events to be processed.
func (el *EventLogger) Stop() {
	el.cancel()
	el.wg.Wait()
}

// drain processes any remaining events in the channel after context cancellation.
func (el *EventLogger) drain() {
	for {
		select {
		case ev, ok := <-el.eventCh:
			if !ok {
				return
			}
			el.processEvent(ev)
		default:
			return
		}
	}
}

func (el *EventLogger) processEvent(ev Event) {
	el.mu.Lock()
	el.events = append(el.events, ev)

	var seenCount int
	if ev.Type == EventUnresolved {
		el.seen[ev.Token]++
		seenCount = el.seen[ev.Token]
	}
	el.mu.Unlock()

	el.printEvent(ev, seenCount)
}

func (el *EventLogger) printEvent(ev Event, seenCount int) {
	switch ev.Type {
	case EventIPMatched, EventDomainMatched:
		el.logger.MatchEvent(ev.File, ev.Line, ev.Token, ev.Via)

	case EventSkipped:
		el.logger.Warn("%s:%d: skipping %q (%s)", ev.File, ev.Line, ev.Token, ev.Reason)

	case EventUnresolved:
		if seenCount > 1 {
			return // the same domain often repeats across feeds
		}
		el.logger.Debug("%s:%d: %s resolved to no addresses", ev.File, ev.Line, ev.Token)
	}
}

// GetEvents returns a copy of all accumulated events.
func (el *EventLogger) GetEvents() []Event {
	el.mu.Lock()
	defer el.mu.Unlock()
	result := make([]Event, len(el.events))
	copy(result, el.events)
	return result
}

// Summary holds run statistics.
type Summary struct {
	IPMatches       int
	DomainMatches   int
	Skipped         int
	SkippedByReason map[string]int
	Unresolved      int
	UniqueFiles     int
}

// GetSummary computes summary statistics from all events.
func (el *EventLogger) GetSummary() Summary {
	el.mu.Lock()
	defer el.mu.Unlock()

	s := Summary{SkippedByReason: make(map[string]int)}
	files := make(map[string]struct{})

	for _, ev := range el.events {
		files[ev.File] = struct{}{}
		switch ev.Type {
		case EventIPMatched:
			s.IPMatches++
		case EventDomainMatched:
			s.DomainMatches++
		case EventSkipped:
			s.Skipped++
			s.SkippedByReason[ev.Reason]++
		case EventUnresolved:
			s.Unresolved++
		}
	}

	s.UniqueFiles = len(files)
	return s
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
