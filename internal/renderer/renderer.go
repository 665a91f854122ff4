// Package renderer turns scene documents into raster images with a pooled
// headless-browser harness.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/bannerforge/api/internal/client"
	"github.com/bannerforge/api/internal/config"
	"github.com/bannerforge/api/internal/model"
	"github.com/bannerforge/api/internal/scene"
)

const (
	jpegQuality      = 90
	previewMaxPixels = 400
)

// Result is one finished render: the encoded bytes, the persisted local
// path, and the URL under which the file is reachable (storage URL when an
// upload client is configured, local public path otherwise).
type Result struct {
	Bytes []byte
	Path  string
	URL   string
}

// Service drives the harness pool: one render per (document, substitutions)
// pair, persisted to a deterministic path.
type Service struct {
	pool    *Pool
	cfg     config.RendererConfig
	storage client.StorageClient
}

// New creates the rendering service and its harness pool. The storage
// client may be nil; outputs are then served by local path only.
func New(cfg config.RendererConfig, storage client.StorageClient) (*Service, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	pool, err := NewPool(cfg.PoolSize, cfg.ChromePath)
	if err != nil {
		return nil, fmt.Errorf("failed to start harness pool: %w", err)
	}
	return &Service{pool: pool, cfg: cfg, storage: storage}, nil
}

// Close releases all pooled harness instances and the browser process.
func (s *Service) Close() error {
	return s.pool.Close()
}

// Render substitutes values into a clone of the document, rasterizes it at
// the document's dimensions, and persists the output as name.format under
// the output directory. upload additionally pushes the file to the storage
// client (when one is configured) and reports its public URL. A failed
// render leaves the pool usable; the error is typed for the orchestrator to
// record, not fatal.
func (s *Service) Render(ctx context.Context, doc *model.SceneDocument, subs map[string]string, format, name string, upload bool) (*Result, error) {
	if format != model.FormatPNG && format != model.FormatJPEG {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}

	prepared := scene.Substitute(doc, subs)
	pageHTML, err := BuildPage(prepared)
	if err != nil {
		return nil, fmt.Errorf("failed to build page: %w", err)
	}

	renderCtx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
	defer cancel()

	h, err := s.pool.Acquire(renderCtx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(h)

	raw, err := h.Render(renderCtx, pageHTML, prepared.Width, prepared.Height)
	if err != nil {
		return nil, err
	}

	out := raw
	if format == model.FormatJPEG {
		out, err = pngToJPEG(raw)
		if err != nil {
			return nil, err
		}
	}

	filename := fmt.Sprintf("%s.%s", name, format)
	path := filepath.Join(s.cfg.OutputDir, filename)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return nil, fmt.Errorf("failed to persist render output: %w", err)
	}

	url := s.cfg.PublicBaseURL + "/" + filename
	if upload && s.storage != nil {
		key := "renders/" + filename
		uploaded, upErr := s.storage.Upload(ctx, key, bytes.NewReader(out), "image/"+format)
		if upErr != nil {
			// Local file is the source of truth; an upload failure degrades
			// the URL, it does not fail the row.
			log.Printf("Output upload failed for %s: %v", filename, upErr)
		} else {
			url = uploaded
		}
	}

	return &Result{Bytes: out, Path: path, URL: url}, nil
}

// RenderPreview renders the document and downscales it to a thumbnail,
// persisted as name.png. Used for template preview references.
func (s *Service) RenderPreview(ctx context.Context, doc *model.SceneDocument, name string) (string, error) {
	res, err := s.Render(ctx, doc, nil, model.FormatPNG, name+"_full", false)
	if err != nil {
		return "", err
	}

	img, err := png.Decode(bytes.NewReader(res.Bytes))
	if err != nil {
		return "", fmt.Errorf("failed to decode render for preview: %w", err)
	}

	thumb := downscale(img, previewMaxPixels)
	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}

	filename := name + ".png"
	path := filepath.Join(s.cfg.OutputDir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to persist preview: %w", err)
	}
	_ = os.Remove(res.Path)

	return s.cfg.PublicBaseURL + "/" + filename, nil
}

func pngToJPEG(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG screenshot: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// downscale fits img inside a max×max box, preserving aspect ratio. Images
// already small enough pass through.
func downscale(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return img
	}

	nw, nh := max, max
	if w > h {
		nh = h * max / w
	} else {
		nw = w * max / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
