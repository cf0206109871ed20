package pipeline

import (
	"context"
	"time"

	"github.com/TurbulentGoat/fts-converter/core"
	apperrors "github.com/TurbulentGoat/fts-converter/errors"
)

// Pipeline executes a sequence of Steps with hook support.  It is a
// standalone runner for callers that compose steps without a Converter.
// There is no automatic retry; every step failure is final for the frame.
type Pipeline struct {
	steps []core.Step
	hooks []core.Hook
}

// New returns an empty Pipeline.
func New() *Pipeline { return &Pipeline{} }

// Use appends steps to the pipeline.  Returns the same Pipeline for chaining.
func (p *Pipeline) Use(s ...core.Step) *Pipeline {
	p.steps = append(p.steps, s...)
	return p
}

// AddHook registers an observer.
func (p *Pipeline) AddHook(h core.Hook) *Pipeline {
	p.hooks = append(p.hooks, h)
	return p
}

// Run executes the pipeline on f.  It returns the final frame and a map of
// per-step timing observations.
func (p *Pipeline) Run(ctx context.Context, f *core.Frame) (*core.Frame, map[string]time.Duration, error) {
	timings := make(map[string]time.Duration, len(p.steps))
	current := f

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, timings, apperrors.Wrap(apperrors.CategoryInput, step.Name(), err)
		}

		p.callHooksBefore(ctx, step.Name(), current)
		start := time.Now()
		result, err := step.Execute(ctx, current)
		elapsed := time.Since(start)
		timings[step.Name()] = elapsed
		p.callHooksAfter(ctx, step.Name(), result, elapsed, err)
		if err != nil {
			return nil, timings, err
		}
		current = result
	}
	return current, timings, nil
}

func (p *Pipeline) callHooksBefore(ctx context.Context, name string, f *core.Frame) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, name, f)
	}
}

func (p *Pipeline) callHooksAfter(ctx context.Context, name string, f *core.Frame, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterStep(ctx, name, f, d, err)
	}
}

// Clone returns a shallow copy of the pipeline so templates can be reused
// safely across goroutines.
func (p *Pipeline) Clone() *Pipeline {
	cp := &Pipeline{
		steps: make([]core.Step, len(p.steps)),
		hooks: make([]core.Hook, len(p.hooks)),
	}
	copy(cp.steps, p.steps)
	copy(cp.hooks, p.hooks)
	return cp
}
