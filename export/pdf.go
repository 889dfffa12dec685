package export

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/careerhub/backend/models"
)

// Renderer converts an HTML document into PDF bytes.
type Renderer interface {
	RenderHTMLToPDF(ctx context.Context, html []byte) ([]byte, error)
}

// ChromeRenderer prints HTML with a headless Chrome started per call.
type ChromeRenderer struct {
	ExecPath string
	Timeout  time.Duration
}

func NewChromeRenderer(execPath string) *ChromeRenderer {
	return &ChromeRenderer{ExecPath: execPath, Timeout: 30 * time.Second}
}

func (c *ChromeRenderer) RenderHTMLToPDF(ctx context.Context, html []byte) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, c.Timeout)
	defer cancelTimeout()

	var pdf []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print to pdf: %w", err)
	}
	return pdf, nil
}

// PDF renders a CV through its HTML template and the renderer.
func PDF(ctx context.Context, r Renderer, cv *models.CV) ([]byte, error) {
	html, err := RenderHTML(cv)
	if err != nil {
		return nil, err
	}
	return r.RenderHTMLToPDF(ctx, html)
}
