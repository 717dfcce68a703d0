package mail

import (
	"context"     // Job lifetime
	"sync"        // Outstanding jobs
	"sync/atomic" // Delivery counters

	"golang.org/x/sync/errgroup" // Bounded fan-out
)

// Dispatcher sends emails off the request path. Shutdown calls Wait so queued jobs finish.
type Dispatcher struct {
	mailer Mailer         // Underlying provider
	limit  int            // Parallel sends per batch
	wg     sync.WaitGroup // Running jobs
}

// NewDispatcher wraps mailer; limit bounds the parallel sends of one batch
func NewDispatcher(mailer Mailer, limit int) *Dispatcher {
	if limit <= 0 {
		limit = 1
	}
	return &Dispatcher{mailer: mailer, limit: limit}
}

// Go runs job in the background. The job context outlives the request that queued it.
func (d *Dispatcher) Go(ctx context.Context, job func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		job(ctx)
	}()
}

// SendEach delivers every message and counts the outcomes; one failure never stops the batch
func (d *Dispatcher) SendEach(ctx context.Context, msgs []Message) (sent, failed int) {
	var ok, bad atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.limit)
	for _, m := range msgs {
		g.Go(func() error {
			if err := d.mailer.Send(gctx, m); err != nil {
				bad.Add(1)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(bad.Load())
}

// Wait blocks until every job is done or ctx expires
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
