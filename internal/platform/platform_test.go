package platform

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSplitForPostingUnderCapIsUnchanged(t *testing.T) {
	blocks := []Block{Header("hi"), Section("body")}
	root, cont := SplitForPosting(blocks)
	if len(root) != 2 || cont != nil {
		t.Fatalf("expected passthrough, got root=%d cont=%d", len(root), len(cont))
	}
}

func TestSplitForPostingOverCapSplitsIntoContinuations(t *testing.T) {
	blocks := make([]Block, MaxBlocksPerMessage+5)
	for i := range blocks {
		blocks[i] = Divider()
	}
	root, cont := SplitForPosting(blocks)
	if len(root) != MaxBlocksPerMessage {
		t.Fatalf("expected root capped at %d, got %d", MaxBlocksPerMessage, len(root))
	}
	if len(cont) != 1 || len(cont[0]) != 5 {
		t.Fatalf("expected one continuation of 5, got %v", cont)
	}
}

func TestSplitForPostingMultipleContinuations(t *testing.T) {
	blocks := make([]Block, MaxBlocksPerMessage*2+3)
	for i := range blocks {
		blocks[i] = Divider()
	}
	_, cont := SplitForPosting(blocks)
	if len(cont) != 2 {
		t.Fatalf("expected 2 continuations, got %d", len(cont))
	}
	if len(cont[0]) != MaxBlocksPerMessage || len(cont[1]) != 3 {
		t.Fatalf("unexpected continuation sizes: %d, %d", len(cont[0]), len(cont[1]))
	}
}

func TestEventIsThreadReply(t *testing.T) {
	root := Event{TS: "100.1", ThreadTS: "100.1"}
	if root.IsThreadReply() {
		t.Fatalf("root message should not count as a thread reply")
	}
	reply := Event{TS: "101.2", ThreadTS: "100.1"}
	if !reply.IsThreadReply() {
		t.Fatalf("reply with differing thread_ts/ts should count as a thread reply")
	}
	noThread := Event{TS: "101.2"}
	if noThread.IsThreadReply() {
		t.Fatalf("event with no thread_ts should not count as a thread reply")
	}
}

func TestDispatcherProcessesAllSubmittedEvents(t *testing.T) {
	var count int64
	var wg sync.WaitGroup
	total := 50
	wg.Add(total)

	d := NewDispatcher(total, 4, func(ctx context.Context, evt Event) error {
		atomic.AddInt64(&count, 1)
		wg.Done()
		return nil
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	for i := 0; i < total; i++ {
		d.Submit(Event{Type: EventMessage, TS: "t"})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all events to be handled")
	}
	cancel()

	if got := atomic.LoadInt64(&count); got != int64(total) {
		t.Fatalf("expected %d events handled, got %d", total, got)
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(1, 1, func(ctx context.Context, evt Event) error {
		<-block
		return nil
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	if !d.Submit(Event{Type: EventMessage}) {
		t.Fatal("first submit should be accepted into the worker")
	}
	time.Sleep(20 * time.Millisecond) // let the worker pick it up
	if !d.Submit(Event{Type: EventMessage}) {
		t.Fatal("second submit should fill the depth-1 queue")
	}
	if d.Submit(Event{Type: EventMessage}) {
		t.Fatal("third submit should be dropped, queue and worker both occupied")
	}
	if d.DroppedCount() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", d.DroppedCount())
	}
	close(block)
}
