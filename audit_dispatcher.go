package authcore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher decouples audit delivery from request flows: emitters
// never block, a full buffer increments the drop counter instead.
type auditDispatcher struct {
	sink    AuditSink
	ch      chan AuditEvent
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
	now     func() time.Time
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, clock Clock) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink: sink,
		ch:   make(chan AuditEvent, cfg.BufferSize),
		done: make(chan struct{}),
		now:  clock.Now,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain whatever is already buffered, then stop.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *auditDispatcher) emit(name string, success bool, userID string, opErr error, detail map[string]string) {
	if d == nil || d.closed.Load() {
		return
	}

	event := AuditEvent{
		Time:    d.now(),
		Name:    name,
		Success: success,
		UserID:  userID,
		Detail:  detail,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}

	select {
	case d.ch <- event:
	default:
		d.dropped.Add(1)
	}
}

// Dropped reports how many events were lost to a full buffer.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops intake, drains the buffer, and waits for the worker.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
