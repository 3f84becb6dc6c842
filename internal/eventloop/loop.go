package eventloop

import (
	"context"
	"fmt"
	"sync"

	"celixdm/pkg/logging"
)

// Item is an opaque unit of work executed on the loop goroutine in FIFO
// order. BundleID and Label are carried only for logging/introspection;
// Data is passed verbatim to Process and, afterwards, to Release (if
// set).
type Item struct {
	BundleID int64
	Label    string
	Data     interface{}
	Process  func(data interface{})
	Release  func(data interface{})
}

type loopMarkerKey struct{}

// Loop is a single-goroutine FIFO executor. The zero value is not usable;
// construct with New.
type Loop struct {
	mu           sync.Mutex
	cond         *sync.Cond
	queue        []*Item
	shuttingDown bool
	running      bool

	nextSeq      uint64
	processedSeq uint64

	loopCtx context.Context
}

// New creates a Loop. Call Start to begin processing.
func New() *Loop {
	l := &Loop{}
	l.cond = sync.NewCond(&l.mu)
	l.loopCtx = context.WithValue(context.Background(), loopMarkerKey{}, l)
	return l
}

// Start launches the dedicated loop goroutine. Calling Start twice is a
// no-op after the first call.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	go l.run()
}

// Stop refuses further items (FireGeneric drops them) and wakes any
// blocked waiter. Items already queued are still processed by the loop
// goroutine, which exits once the queue is empty.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.shuttingDown = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

// FireGeneric enqueues item for execution on the loop goroutine and
// returns the submission sequence number. May be called from any
// goroutine, including the loop's own.
func (l *Loop) FireGeneric(item *Item) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shuttingDown {
		logging.Warn("EventLoop", "dropping work item %q: loop is shutting down", item.Label)
		return l.nextSeq
	}

	l.nextSeq++
	seq := l.nextSeq
	l.queue = append(l.queue, item)
	l.cond.Signal()
	return seq
}

// IsCurrentGoroutineLoop reports whether ctx carries this loop's marker,
// i.e. was derived from LoopContext. Work items are not handed a
// context: code running on the loop passes LoopContext itself, and the
// check does not inspect which goroutine is calling.
func (l *Loop) IsCurrentGoroutineLoop(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	marker, _ := ctx.Value(loopMarkerKey{}).(*Loop)
	return marker == l
}

// LoopContext returns the context carrying this loop's identity marker,
// for callers that construct work items manually.
func (l *Loop) LoopContext() context.Context {
	return l.loopCtx
}

// WaitForEmptyQueue blocks the caller until every item submitted before
// this call returns has been processed. Must not be called from the loop
// goroutine itself: doing so is logged as misuse and returns immediately
// rather than deadlocking.
func (l *Loop) WaitForEmptyQueue(ctx context.Context) {
	if l.IsCurrentGoroutineLoop(ctx) {
		logging.Error("EventLoop", fmt.Errorf("wait_for_empty_queue called from the loop goroutine"),
			"misuse: ignoring wait request")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	target := l.nextSeq
	for l.processedSeq < target && !l.shuttingDown {
		l.cond.Wait()
	}
}

// run is the body of the dedicated loop goroutine.
func (l *Loop) run() {
	for {
		item, seq, ok := l.dequeue()
		if !ok {
			return
		}

		l.process(item)

		l.mu.Lock()
		l.processedSeq = seq
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

func (l *Loop) dequeue() (*Item, uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.queue) == 0 && !l.shuttingDown {
		l.cond.Wait()
	}
	if len(l.queue) == 0 {
		return nil, 0, false
	}

	item := l.queue[0]
	l.queue = l.queue[1:]
	seq := l.processedSeq + 1
	return item, seq, true
}

// process runs a single item's Process/Release pair, recovering a panic
// as a logged error rather than letting it take down the only loop
// goroutine the engine has.
func (l *Loop) process(item *Item) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("EventLoop", fmt.Errorf("panic: %v", r),
				"work item %q (bundle %d) panicked", item.Label, item.BundleID)
		}
	}()

	if item.Process != nil {
		item.Process(item.Data)
	}
	if item.Release != nil {
		item.Release(item.Data)
	}
}

// Len reports the number of items currently queued (not yet started).
// Intended for introspection/tests, not for control flow.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
