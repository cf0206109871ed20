// Package vips provides an optional libvips-powered encode backend.  It
// covers PNG, JPG, and TIFF output; BMP stays with the pure-Go encoder.
package vips

import (
	"context"
	"fmt"
	"image/png"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/TurbulentGoat/fts-converter/core"
	apperrors "github.com/TurbulentGoat/fts-converter/errors"
	"github.com/TurbulentGoat/fts-converter/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

// Backend is a libvips-powered core.Encoder.  Safe for concurrent use across
// goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 95
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources.  Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// Register installs the backend as the encoder for every format it covers.
func Register(reg core.Registry, b *Backend) {
	for _, f := range []core.Format{core.FormatPNG, core.FormatJPG, core.FormatTIFF} {
		reg.RegisterEncoder(f, b)
	}
}

func (b *Backend) CanEncode(f core.Format) bool {
	switch f {
	case core.FormatPNG, core.FormatJPG, core.FormatTIFF:
		return true
	}
	return false
}

func (b *Backend) Encode(ctx context.Context, f *core.Frame, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}

	src, err := f.Rasterize()
	if err != nil {
		return nil, err
	}

	// libvips ingests encoded buffers, so hand the raster over as a
	// lossless PNG intermediate.
	buf := utils.AcquireBuffer()
	if err := (&png.Encoder{CompressionLevel: png.NoCompression}).Encode(buf, src); err != nil {
		utils.ReleaseBuffer(buf)
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.intermediate", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.load", err)
	}
	defer ref.Close()

	quality := opts.Quality
	if quality <= 0 {
		quality = b.cfg.DefaultQuality
	}

	switch f.Format {
	case core.FormatJPG:
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		out, _, err := ref.ExportJpeg(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.jpeg", err)
		}
		return out, nil

	case core.FormatPNG:
		ep := govips.NewPngExportParams()
		out, _, err := ref.ExportPng(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.png", err)
		}
		return out, nil

	case core.FormatTIFF:
		ep := govips.NewTiffExportParams()
		ep.Quality = quality
		out, _, err := ref.ExportTiff(ep)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.tiff", err)
		}
		return out, nil

	default:
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, f.Format))
	}
}
