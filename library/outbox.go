package library

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orbitalshelf/server/models"
)

const (
	opSet    = "set"
	opPatch  = "patch"
	opDelete = "delete"
)

type remoteOp struct {
	kind   string
	userID string
	bookID string
	book   *models.Book   // set
	fields map[string]any // patch
}

// Outbox performs remote writes behind the local commit. Operations are
// enqueued after a mutation has already been applied to the cache and the
// snapshot, so a slow or failing remote call never delays or rolls back the
// caller's result. Failures are counted and logged, nothing more.
type Outbox struct {
	remote  RemoteStore
	ops     chan remoteOp
	pending sync.WaitGroup
	timeout time.Duration

	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	closeOnce sync.Once
}

// OutboxStats are cumulative counters for the status endpoint.
type OutboxStats struct {
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

func NewOutbox(remote RemoteStore) *Outbox {
	o := &Outbox{
		remote:  remote,
		ops:     make(chan remoteOp, 256),
		timeout: 10 * time.Second,
	}
	go o.run()
	return o
}

func (o *Outbox) run() {
	for op := range o.ops {
		o.execute(op)
		o.pending.Done()
	}
}

func (o *Outbox) execute(op remoteOp) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	var err error
	switch op.kind {
	case opSet:
		err = o.remote.SetBook(ctx, op.book)
	case opPatch:
		err = o.remote.PatchBook(ctx, op.userID, op.bookID, op.fields)
	case opDelete:
		err = o.remote.DeleteBook(ctx, op.userID, op.bookID)
	}
	if err != nil {
		o.failed.Add(1)
		log.Printf("outbox: %s %s for %s: %v", op.kind, op.bookID, op.userID, err)
		return
	}
	o.succeeded.Add(1)
}

// enqueue hands an operation to the worker without blocking. A full queue
// drops the operation and counts it; the next full load resyncs the mirror.
func (o *Outbox) enqueue(op remoteOp) {
	if o == nil {
		return
	}
	o.pending.Add(1)
	select {
	case o.ops <- op:
	default:
		o.pending.Done()
		o.dropped.Add(1)
		log.Printf("outbox: queue full, dropped %s %s for %s", op.kind, op.bookID, op.userID)
	}
}

func (o *Outbox) Stats() OutboxStats {
	if o == nil {
		return OutboxStats{}
	}
	return OutboxStats{
		Succeeded: o.succeeded.Load(),
		Failed:    o.failed.Load(),
		Dropped:   o.dropped.Load(),
	}
}

// Flush blocks until every enqueued operation has been attempted.
func (o *Outbox) Flush() {
	if o == nil {
		return
	}
	o.pending.Wait()
}

// Close stops the worker after draining the queue. Enqueue must not be called
// afterwards.
func (o *Outbox) Close() {
	o.closeOnce.Do(func() {
		o.pending.Wait()
		close(o.ops)
	})
}
