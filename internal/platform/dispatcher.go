package platform

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Handler processes one inbound event.
type Handler func(ctx context.Context, evt Event) error

// Dispatcher fans inbound events out across a fixed worker pool reading
// from one shared, bounded queue (spec §5: "Events are processed
// concurrently (one goroutine/task per event), with work-stealing from
// a bounded queue"). A shared channel as the single work queue gives
// every idle worker an equal shot at the next event, so a worker
// stalled on a slow handler never hoards events earmarked for it the
// way a per-worker queue would: the remaining workers simply keep
// pulling from the same queue.
type Dispatcher struct {
	queue   chan Event
	workers int
	handle  Handler
	log     zerolog.Logger

	dropMu    sync.Mutex
	dropCount int
}

// NewDispatcher builds a Dispatcher with the given queue depth and
// worker count. handle is invoked for every event pulled off the queue;
// its error is logged, never propagated.
func NewDispatcher(queueDepth, workers int, handle Handler, log zerolog.Logger) *Dispatcher {
	if queueDepth < 1 {
		queueDepth = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:   make(chan Event, queueDepth),
		workers: workers,
		handle:  handle,
		log:     log,
	}
}

// Submit enqueues evt without blocking. If the bounded queue is full,
// the event is dropped and counted rather than applying backpressure to
// the event-channel reader, which would stall the websocket connection.
func (d *Dispatcher) Submit(evt Event) bool {
	select {
	case d.queue <- evt:
		return true
	default:
		d.dropMu.Lock()
		d.dropCount++
		d.dropMu.Unlock()
		d.log.Warn().Str("type", string(evt.Type)).Msg("dispatcher queue full, dropping event")
		return false
	}
}

// DroppedCount reports how many events have been dropped since startup.
func (d *Dispatcher) DroppedCount() int {
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	return d.dropCount
}

// Run starts the worker pool and blocks until ctx is cancelled and all
// in-flight handlers have returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case evt, ok := <-d.queue:
					if !ok {
						return
					}
					if err := d.handle(ctx, evt); err != nil {
						d.log.Error().Err(err).Str("type", string(evt.Type)).Int("worker", id).Msg("event handler failed")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
	<-ctx.Done()
	wg.Wait()
}
