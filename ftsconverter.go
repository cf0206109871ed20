// Package ftsconverter converts FITS container files into common raster
// image formats, applying optional normalization and tone/geometry
// adjustments on the way.
package ftsconverter

import (
	"context"
	"image"
	"time"

	"github.com/TurbulentGoat/fts-converter/adapters/encoder"
	"github.com/TurbulentGoat/fts-converter/adapters/storage"
	"github.com/TurbulentGoat/fts-converter/config"
	"github.com/TurbulentGoat/fts-converter/core"
	"github.com/TurbulentGoat/fts-converter/pipeline"
)

// Re-export Format constants for convenience.
const (
	PNG  = core.FormatPNG
	TIFF = core.FormatTIFF
	JPG  = core.FormatJPG
	BMP  = core.FormatBMP
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Converter is the primary entry point.
type Converter struct {
	inner *core.Converter
	reg   *core.DefaultRegistry
	sink  core.Sink
}

// New creates a fully wired Converter with the PNG, TIFF, JPG, and BMP
// encoders registered and a local filesystem sink.  Pass a custom
// config.Config to override defaults.
func New(cfg config.Config) *Converter {
	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	reg.RegisterEncoder(core.FormatTIFF, encoder.NewTIFF(cfg.TIFFDeflate))
	reg.RegisterEncoder(core.FormatJPG, encoder.NewJPEG(cfg.JPEGQuality))
	reg.RegisterEncoder(core.FormatBMP, encoder.NewBMP())

	return &Converter{
		inner: core.New(cfg, reg),
		reg:   reg,
		sink:  storage.NewLocal(0),
	}
}

// SetLogger attaches a structured logger.
func (c *Converter) SetLogger(l core.Logger) { c.inner.SetLogger(l) }

// SetMetrics attaches a metrics collector.
func (c *Converter) SetMetrics(m core.MetricsCollector) { c.inner.SetMetrics(m) }

// AddHook registers an observer for pipeline step events.
func (c *Converter) AddHook(h core.Hook) { c.inner.AddHook(h) }

// RegisterEncoder registers a custom encoder for the given format.
func (c *Converter) RegisterEncoder(f core.Format, e core.Encoder) { c.reg.RegisterEncoder(f, e) }

// SetSink replaces the output sink (default: local filesystem).
func (c *Converter) SetSink(s core.Sink) { c.sink = s }

// Convert processes requests one at a time, in submission order, and returns
// one result per request in the same order.  A failed file never aborts the
// rest of the batch.
func (c *Converter) Convert(ctx context.Context, requests []core.ConversionRequest) []core.ConversionResult {
	results := make([]core.ConversionResult, 0, len(requests))
	for _, req := range requests {
		results = append(results, c.ConvertOne(ctx, req))
	}
	return results
}

// ConvertOne runs the full pipeline for a single request: decode, normalize,
// adjust, rotate, encode, write.  The returned result carries either the
// written output path or the failure cause.
func (c *Converter) ConvertOne(ctx context.Context, req core.ConversionRequest) core.ConversionResult {
	req = c.withDefaults(req)
	start := time.Now()

	frame := &core.Frame{
		SourcePath: req.SourcePath,
		Format:     req.OutputFormat,
		Settings:   req.Settings,
	}
	final, timings, err := c.inner.Run(ctx, frame, c.renderSteps(req, true)...)

	result := core.ConversionResult{
		SourcePath:     req.SourcePath,
		ProcessingTime: time.Since(start),
		StepTimings:    timings,
		Err:            err,
	}
	if err == nil {
		result.OutputPath = final.OutPath
	}
	return result
}

// Preview runs the pipeline for req up to (and excluding) the encode step
// and returns the adjusted raster, for callers that display a live preview
// under current settings.  Nothing is written to disk.
func (c *Converter) Preview(ctx context.Context, req core.ConversionRequest) (image.Image, error) {
	req = c.withDefaults(req)

	frame := &core.Frame{
		SourcePath: req.SourcePath,
		Format:     req.OutputFormat,
		Settings:   req.Settings,
	}
	final, _, err := c.inner.Run(ctx, frame, c.renderSteps(req, false)...)
	if err != nil {
		return nil, err
	}
	return final.Rasterize()
}

func (c *Converter) withDefaults(req core.ConversionRequest) core.ConversionRequest {
	if req.OutputFormat == "" || req.OutputFormat == core.FormatUnknown {
		req.OutputFormat = core.ParseFormat(c.inner.Config().DefaultFormat)
	}
	if (req.Settings == core.AdjustmentSettings{}) {
		req.Settings = core.DefaultAdjustments()
	}
	return req
}

func (c *Converter) renderSteps(req core.ConversionRequest, write bool) []core.Step {
	cfg := c.inner.Config()
	steps := []core.Step{
		&pipeline.DecodeStep{MaxBytes: cfg.MaxContainerBytes},
		&pipeline.NormalizeStep{Auto: req.AutoNormalise},
		&pipeline.AdjustStep{},
		&pipeline.RotateStep{},
	}
	if write {
		steps = append(steps,
			&pipeline.EncodeStep{Registry: c.reg, BaseOptions: core.EncodeOptions{
				Quality:     cfg.JPEGQuality,
				TIFFDeflate: cfg.TIFFDeflate,
			}},
			&pipeline.WriteStep{Sink: c.sink},
		)
	}
	return steps
}

// NewPipeline creates a reusable, standalone pipeline.
func (c *Converter) NewPipeline(steps ...core.Step) *pipeline.Pipeline {
	pl := pipeline.New()
	pl.Use(steps...)
	return pl
}

// Stats returns lightweight processing statistics.
func (c *Converter) Stats() (processed, errors int64) {
	return c.inner.ProcessedCount(), c.inner.ErrorCount()
}
