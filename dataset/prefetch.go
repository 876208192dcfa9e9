package dataset

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Prefetcher prepares batches on a background goroutine. Batches are delivered in
// exactly the order the underlying Iterator produces them.
type Prefetcher struct {
	ch     chan *Batch
	g      *errgroup.Group
	cancel context.CancelFunc
}

// Prefetch starts draining it, keeping up to depth prepared batches ahead of the consumer.
func Prefetch(ctx context.Context, it *Iterator, depth int) *Prefetcher {
	if depth < 0 {
		depth = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	p := &Prefetcher{
		ch:     make(chan *Batch, depth),
		g:      g,
		cancel: cancel,
	}
	g.Go(func() error {
		defer close(p.ch)
		for it.Next() {
			select {
			case p.ch <- it.Batch():
			case <-ctx.Done():
				return nil
			}
		}
		return it.Err()
	})
	return p
}

// Batches returns the channel of prepared batches. It is closed at the end of the pass.
func (p *Prefetcher) Batches() <-chan *Batch { return p.ch }

// Stop abandons the pass. Pending batches are dropped.
func (p *Prefetcher) Stop() {
	p.cancel()
	for range p.ch {
	}
}

// Wait waits for the producer and returns the iteration error, if any.
func (p *Prefetcher) Wait() error {
	err := p.g.Wait()
	p.cancel()
	return err
}
