package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
)

// ErrPoolClosed is returned by Acquire once the pool has been shut down.
// The orchestrator treats it as total resource exhaustion and fails the
// remaining rows of a batch fast.
var ErrPoolClosed = errors.New("renderer: harness pool is closed")

// Pool owns one headless browser process and a fixed set of tabs handed out
// with a checkout/checkin discipline. No two renders ever share a tab
// concurrently.
type Pool struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	harnesses   chan *Harness

	mu     sync.Mutex
	all    []*Harness
	closed bool
}

// NewPool starts the browser process and opens size tabs.
func NewPool(size int, chromePath string) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("force-device-scale-factor", "1"),
	)
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	p := &Pool{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		harnesses:   make(chan *Harness, size),
	}

	for i := 0; i < size; i++ {
		h, err := newHarness(allocCtx, i)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to start harness %d/%d: %w", i+1, size, err)
		}
		p.all = append(p.all, h)
		p.harnesses <- h
	}
	return p, nil
}

// Acquire checks out a harness, blocking until one is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Harness, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	select {
	case h, ok := <-p.harnesses:
		if !ok {
			return nil, ErrPoolClosed
		}
		return h, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("harness acquisition: %w", ctx.Err())
	}
}

// Release resets the harness and checks it back in. A harness that fails to
// reset is closed and not returned; the pool shrinks rather than handing out
// a tab with leaked state.
func (p *Pool) Release(h *Harness) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		h.close()
		return
	}

	resetErr := h.Reset()

	// Re-check under the lock: Close may have run during the reset, and a
	// send after it closes the channel would panic.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || resetErr != nil {
		h.close()
		return
	}
	select {
	case p.harnesses <- h:
	default:
		// Channel full means this harness was already replaced.
		h.close()
	}
}

// Close tears down every tab and the browser process. Release failures are
// reported, not swallowed: a leaked browser is a process-level leak.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	// Discard idle harnesses and close the channel, so an Acquire that
	// raced past the flag check fails with ErrPoolClosed instead of
	// receiving a dead tab.
drain:
	for {
		select {
		case <-p.harnesses:
		default:
			break drain
		}
	}
	close(p.harnesses)
	all := p.all
	p.all = nil
	p.mu.Unlock()

	var errs []error
	for _, h := range all {
		if err := h.close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.allocCancel()
	return errors.Join(errs...)
}
