package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/TurbulentGoat/fts-converter/config"
	apperrors "github.com/TurbulentGoat/fts-converter/errors"
)

// Converter is the central orchestrator.  It runs pipeline steps over one
// frame at a time, notifies hooks, and keeps lightweight counters.  It is
// safe for concurrent use, though batch callers process requests strictly in
// submission order.
type Converter struct {
	cfg      config.Config
	registry Registry
	hooks    []Hook
	logger   Logger
	metrics  MetricsCollector

	// Atomic counters for lightweight internal metrics.
	processedCount int64
	errorCount     int64
}

// New creates a Converter with the given config and encoder registry.
func New(cfg config.Config, reg Registry) *Converter {
	return &Converter{cfg: cfg, registry: reg}
}

// SetLogger attaches a structured logger.
func (c *Converter) SetLogger(l Logger) { c.logger = l }

// SetMetrics attaches a metrics collector.
func (c *Converter) SetMetrics(m MetricsCollector) { c.metrics = m }

// AddHook registers a pipeline hook.
func (c *Converter) AddHook(h Hook) { c.hooks = append(c.hooks, h) }

// Registry returns the underlying registry so callers can register encoders
// after construction.
func (c *Converter) Registry() Registry { return c.registry }

// Config returns the converter configuration.
func (c *Converter) Config() config.Config { return c.cfg }

// Run executes steps over frame in order and returns the final frame plus
// per-step timings.  The first step error aborts the run for this frame
// only; callers convert it into a per-file failure result.
func (c *Converter) Run(ctx context.Context, frame *Frame, steps ...Step) (*Frame, map[string]time.Duration, error) {
	if len(steps) == 0 {
		return nil, nil, apperrors.New(apperrors.CategoryInput, "run", apperrors.ErrEmptyInput)
	}

	timings := make(map[string]time.Duration, len(steps))
	current := frame
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			atomic.AddInt64(&c.errorCount, 1)
			return nil, timings, apperrors.Wrap(apperrors.CategoryInput, step.Name(), err)
		}
		c.notifyBefore(ctx, step.Name(), current)
		t := time.Now()
		next, stepErr := step.Execute(ctx, current)
		elapsed := time.Since(t)
		timings[step.Name()] = elapsed
		c.notifyAfter(ctx, step.Name(), next, elapsed, stepErr)
		if stepErr != nil {
			atomic.AddInt64(&c.errorCount, 1)
			return nil, timings, stepErr
		}
		current = next
	}

	atomic.AddInt64(&c.processedCount, 1)
	return current, timings, nil
}

func (c *Converter) notifyBefore(ctx context.Context, name string, f *Frame) {
	for _, h := range c.hooks {
		h.BeforeStep(ctx, name, f)
	}
}

func (c *Converter) notifyAfter(ctx context.Context, name string, f *Frame, d time.Duration, err error) {
	for _, h := range c.hooks {
		h.AfterStep(ctx, name, f, d, err)
	}
}

// ProcessedCount returns the total number of successfully processed frames.
func (c *Converter) ProcessedCount() int64 { return atomic.LoadInt64(&c.processedCount) }

// ErrorCount returns the total number of processing errors.
func (c *Converter) ErrorCount() int64 { return atomic.LoadInt64(&c.errorCount) }
