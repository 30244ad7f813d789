package handlers

import (
	"context"
	"sync"

	"telegram-mood-diary/internal/logger"
	"telegram-mood-diary/internal/models"
)

// Dispatcher feeds events to one worker per user. A user's events are
// handled in arrival order; different users run concurrently.
//
// handle owns the reporting of its failures, the returned error is dropped.
type Dispatcher struct {
	handle func(context.Context, models.Event) error
	log    *logger.Logger

	mu      sync.Mutex
	workers map[int64]*worker
	wg      sync.WaitGroup
}

type worker struct {
	queue []models.Event // guarded by Dispatcher.mu
}

func NewDispatcher(handle func(context.Context, models.Event) error, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		handle:  handle,
		log:     log,
		workers: make(map[int64]*worker),
	}
}

// Run consumes events until the source is closed or ctx is done, then waits
// for the queued events to finish.
func (d *Dispatcher) Run(ctx context.Context, events <-chan models.Event) error {
	defer d.wg.Wait()

	// queued events still run to completion after shutdown starts
	work := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopping", "active_users", d.Active())
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.dispatch(work, ev)
		}
	}
}

// dispatch never blocks: the event is appended to the user's queue and a
// worker is started if the user has none.
func (d *Dispatcher) dispatch(ctx context.Context, ev models.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w, ok := d.workers[ev.UserID]; ok {
		w.queue = append(w.queue, ev)
		return
	}
	w := &worker{queue: []models.Event{ev}}
	d.workers[ev.UserID] = w
	d.wg.Add(1)
	go d.work(ctx, ev.UserID, w)
}

// work exits as soon as its queue is drained; the next event for the user
// starts a fresh worker.
func (d *Dispatcher) work(ctx context.Context, userID int64, w *worker) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		if len(w.queue) == 0 {
			delete(d.workers, userID)
			d.mu.Unlock()
			return
		}
		ev := w.queue[0]
		w.queue[0] = models.Event{}
		w.queue = w.queue[1:]
		d.mu.Unlock()

		_ = d.handle(ctx, ev)
	}
}

// Active reports the number of users with events in flight.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}
