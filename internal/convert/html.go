package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"omniconvert/internal/runner"
	"omniconvert/internal/tools"
)

// ConvertMarkupToPDF turns HTML or Markdown into a PDF. Markdown is first
// rendered to standalone HTML with pandoc; the HTML is then printed via
// headless Chrome. Without Chrome installed, pandoc produces the PDF
// directly through its own engine.
func (s *Service) ConvertMarkupToPDF(ctx context.Context, input []byte, filename string, opts Options) ([]byte, error) {
	if s.chromePath() == "" {
		return s.pandocToPDF(ctx, input, filename)
	}

	html := input
	if ext := filepath.Ext(filename); ext == ".md" || ext == ".markdown" {
		rendered, err := s.markdownToHTML(ctx, input, filename)
		if err != nil {
			return nil, err
		}
		html = rendered
	}
	return s.renderHTMLToPDF(ctx, string(html), opts)
}

func (s *Service) chromePath() string {
	if s.chrome.Path != "" {
		return s.chrome.Path
	}
	return os.Getenv("CHROME_BIN")
}

func (s *Service) markdownToHTML(ctx context.Context, input []byte, filename string) ([]byte, error) {
	pandoc, err := s.tools.Path(tools.Pandoc)
	if err != nil {
		return nil, err
	}
	dir, inPath, cleanup, err := s.stage(input, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := filepath.Join(dir, "out.html")
	res, err := runner.Run(ctx, tools.Pandoc, pandoc, []string{inPath, "--standalone", "-o", outPath}, s.documentTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Pandoc, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return readOutput(outPath)
}

func (s *Service) pandocToPDF(ctx context.Context, input []byte, filename string) ([]byte, error) {
	pandoc, err := s.tools.Path(tools.Pandoc)
	if err != nil {
		return nil, err
	}
	dir, inPath, cleanup, err := s.stage(input, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := filepath.Join(dir, "out.pdf")
	res, err := runner.Run(ctx, tools.Pandoc, pandoc, []string{inPath, "-o", outPath}, s.documentTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Pandoc, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return readOutput(outPath)
}

// renderHTMLToPDF prints raw HTML through headless Chrome with software
// rendering flags suitable for minimal container environments.
func (s *Service) renderHTMLToPDF(ctx context.Context, html string, opts Options) ([]byte, error) {
	tmpDir, err := os.MkdirTemp(s.temp.Base(), "chromedata-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(tmpDir),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if p := s.chromePath(); p != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(p))
	}
	if s.chrome.NoSandbox {
		allocatorOptions = append(allocatorOptions, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions...)
	defer allocCancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	chromeCtx, cancel = context.WithTimeout(chromeCtx, s.documentTimeout())
	defer cancel()

	margin := opts.Float("margin", 0.4)
	if margin < 0.1 || margin > 2.0 {
		margin = 0.4
	}

	var pdfBuf []byte
	actions := []chromedp.Action{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(200 * time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			return err
		}),
	}
	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		return nil, fmt.Errorf("render HTML to PDF: %w", err)
	}
	if len(pdfBuf) < minOutputSize {
		return nil, fmt.Errorf("rendered PDF is unusually small (%d bytes)", len(pdfBuf))
	}
	return pdfBuf, nil
}
