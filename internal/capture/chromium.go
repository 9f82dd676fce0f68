package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"daycal/internal/convert"
	appLog "daycal/internal/log"
)

// Default capture parameters for the month report page.
const (
	DefaultWidth      = 1304
	DefaultHeight     = 984
	DefaultTimeoutSec = 30
)

// Options defines parameters for a Chromium-based screenshot capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/month" or a file:// URL
	// of a rendered report.
	URL string

	// OutputPath is where the PNG screenshot will be written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration

	// Palette optionally reduces the screenshot to convert.PaletteMono or
	// convert.PaletteTricolor before it is written.
	Palette string
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if err := convert.ValidPalette(o.Palette); err != nil {
		return err
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return nil
}

// CapturePNG launches a headless Chromium instance via chromedp, navigates
// to opts.URL, waits for the page to signal that rendering is complete and
// writes a PNG screenshot to opts.OutputPath.
//
// Rendering-complete condition: the report root element carries
// data-ready="true"; the screenshot is taken once it is visible.
func CapturePNG(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var shot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&shot, 100),
	}

	started := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if opts.Palette != convert.PaletteNone {
		reduced, err := reducePNG(shot, opts.Palette)
		if err != nil {
			return err
		}
		shot = reduced
	}

	if err := os.WriteFile(opts.OutputPath, shot, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("capture completed", "output", opts.OutputPath, "bytes", len(shot),
		"palette", opts.Palette, "took", time.Since(started).Round(time.Millisecond))
	return nil
}

// CaptureHTML writes page to a temporary file and captures it through a
// file:// URL, so reports can be rendered without a running server.
func CaptureHTML(ctx context.Context, page []byte, opts Options) error {
	dir, err := os.MkdirTemp("", "daycal-capture-*")
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "report.html")
	if err := os.WriteFile(path, page, 0o600); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	opts.URL = "file://" + filepath.ToSlash(path)
	return CapturePNG(ctx, opts)
}

func reducePNG(data []byte, palette string) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("capture: decode screenshot: %w", err)
	}
	reduced, err := convert.Reduce(img, palette)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, reduced); err != nil {
		return nil, fmt.Errorf("capture: encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
