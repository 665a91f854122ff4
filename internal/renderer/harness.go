package renderer

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Harness is one pooled headless-browser tab. A harness renders one page at
// a time; the pool guarantees exclusive checkout, and Reset restores a
// neutral state between uses so reuse behaves like a fresh instance.
type Harness struct {
	id     int
	ctx    context.Context
	cancel context.CancelFunc
}

func newHarness(allocCtx context.Context, id int) (*Harness, error) {
	ctx, cancel := chromedp.NewContext(allocCtx)
	// Run a no-op task so the tab starts now, not on first render.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser tab: %w", err)
	}
	return &Harness{id: id, ctx: ctx, cancel: cancel}, nil
}

// Render loads the page via a data URI, waits behind the readiness barrier
// (fonts loaded and copy-fitting applied), and captures the viewport as PNG.
// The barrier has no skip path: if the page never becomes ready within ctx's
// deadline the render fails instead of capturing an incomplete raster.
func (h *Harness) Render(ctx context.Context, pageHTML string, width, height int) ([]byte, error) {
	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(pageHTML))

	// Derive from the tab context so chromedp targets this tab, but honor
	// the caller's deadline/cancellation.
	runCtx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var shot []byte
	err := chromedp.Run(runCtx, chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.Poll("window.__renderReady === true", nil),
		chromedp.CaptureScreenshot(&shot),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("render timed out waiting for page readiness: %w", ctx.Err())
		}
		return nil, fmt.Errorf("chromedp execution failed: %w", err)
	}
	if len(shot) == 0 {
		return nil, fmt.Errorf("screenshot buffer is empty")
	}
	return shot, nil
}

// Reset clears all render-affecting state so the next checkout starts from
// a blank tab.
func (h *Harness) Reset() error {
	if err := chromedp.Run(h.ctx, chromedp.Navigate("about:blank")); err != nil {
		return fmt.Errorf("failed to reset harness %d: %w", h.id, err)
	}
	return nil
}

func (h *Harness) close() error {
	err := chromedp.Cancel(h.ctx)
	h.cancel()
	if err != nil {
		return fmt.Errorf("failed to close harness %d: %w", h.id, err)
	}
	return nil
}
