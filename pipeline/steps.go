// Package pipeline provides the built-in conversion steps and a standalone
// step runner.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/transform"

	"github.com/TurbulentGoat/fts-converter/core"
	apperrors "github.com/TurbulentGoat/fts-converter/errors"
	"github.com/TurbulentGoat/fts-converter/fits"
	"github.com/TurbulentGoat/fts-converter/utils"
)

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep reads the container at Frame.SourcePath and populates Frame.Raw.
// The file handle is opened and closed within the step.
type DecodeStep struct {
	// MaxBytes caps how much of the container is read; 0 = no limit.
	MaxBytes int64
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, f *core.Frame) (*core.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, s.Name(), err)
	}
	if f.SourcePath == "" {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}

	var (
		raw *core.RawArray
		err error
	)
	if s.MaxBytes > 0 {
		var file *os.File
		file, err = os.Open(f.SourcePath)
		if err != nil {
			return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
				fmt.Errorf("%w: %v", apperrors.ErrUnreadableContainer, err))
		}
		lr := &utils.LimitedReader{R: file, Max: s.MaxBytes}
		raw, _, err = fits.Decode(lr)
		file.Close()
		if err != nil && lr.Exceeded() {
			return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
				fmt.Errorf("%w: container exceeds size limit of %d bytes",
					apperrors.ErrUnreadableContainer, s.MaxBytes))
		}
	} else {
		raw, _, err = fits.DecodeFile(f.SourcePath)
	}
	if err != nil {
		return nil, err
	}

	out := *f
	out.Raw = raw
	out.Meta.BitPix = raw.BitPix
	return &out, nil
}

// ── Normalize ─────────────────────────────────────────────────────────────────

// NormalizeStep turns the raw numeric array into display-ready unsigned
// 8-bit data and dispatches on dimensionality: 2-D arrays become grayscale,
// 3-D arrays multi-channel with the trailing axis as channels.  Any other
// rank fails with ErrUnsupportedDimensionality.
//
// With Auto set, a linear min-max stretch maps the observed sample range
// onto [0, 255]; fractional results are truncated toward zero.  Constant
// arrays map to all zeros rather than dividing by zero.
//
// Without Auto the array passes through with samples clipped to [0, 255]
// and truncated (clipping, not reinterpretation).
type NormalizeStep struct {
	Auto bool
}

func (s *NormalizeStep) Name() string { return "normalize" }

func (s *NormalizeStep) Execute(ctx context.Context, f *core.Frame) (*core.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryNormalize, s.Name(), err)
	}
	raw := f.Raw
	if raw == nil || raw.Len() == 0 {
		return nil, apperrors.New(apperrors.CategoryNormalize, s.Name(), apperrors.ErrEmptyInput)
	}
	if raw.Rank() != 2 && raw.Rank() != 3 {
		return nil, apperrors.New(apperrors.CategoryNormalize, s.Name(),
			fmt.Errorf("%w: %d axes", apperrors.ErrUnsupportedDimensionality, raw.Rank()))
	}

	pix := make([]uint8, len(raw.Samples))
	if s.Auto {
		lo, hi := minMax(raw.Samples)
		if span := hi - lo; span > 0 {
			for i, v := range raw.Samples {
				// (v-lo)/span is exactly 1.0 at the maximum, so the
				// stretched top sample lands on 255 before truncation.
				pix[i] = truncByte((v - lo) / span * 255)
			}
		}
	} else {
		for i, v := range raw.Samples {
			pix[i] = truncByte(v)
		}
	}

	dims := make([]int, len(raw.Dims))
	copy(dims, raw.Dims)

	out := *f
	out.Raw = nil // the raw array is consumed here
	out.Display = &core.DisplayImage{Dims: dims, Pix: pix}
	out.Meta.Height = out.Display.Height()
	out.Meta.Width = out.Display.Width()
	out.Meta.Channels = out.Display.Channels()
	return &out, nil
}

func minMax(samples []float64) (lo, hi float64) {
	lo, hi = samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// truncByte clips v to [0, 255] and truncates toward zero.
func truncByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// ── Adjust ────────────────────────────────────────────────────────────────────

// AdjustStep applies the frame's brightness and contrast settings, in that
// order.  Both are multiplicative factors where 1.0 is identity, and
// identity factors are true no-ops that keep the raster untouched.
//
// Contrast scales deviation from bild's fixed mid-gray point (128 in 8-bit
// terms); results clamp to the display range.
type AdjustStep struct{}

func (s *AdjustStep) Name() string { return "adjust" }

func (s *AdjustStep) Execute(ctx context.Context, f *core.Frame) (*core.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryAdjust, s.Name(), err)
	}
	set := f.Settings
	if set.Brightness == 1.0 && set.Contrast == 1.0 {
		return f, nil
	}

	img, err := f.Rasterize()
	if err != nil {
		return nil, err
	}
	if set.Brightness != 1.0 {
		// bild expects the normalized change relative to identity.
		img = adjust.Brightness(img, set.Brightness-1)
	}
	if set.Contrast != 1.0 {
		img = adjust.Contrast(img, set.Contrast-1)
	}

	out := *f
	out.Image = img
	return &out, nil
}

// ── Rotate ────────────────────────────────────────────────────────────────────

// RotateStep rotates the raster counter-clockwise about its centre by the
// frame's rotation setting, growing the canvas to the rotated bounding box
// so no corner is cropped.  A rotation of 0 is a no-op, not a re-encode.
type RotateStep struct{}

func (s *RotateStep) Name() string { return "rotate" }

func (s *RotateStep) Execute(ctx context.Context, f *core.Frame) (*core.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryAdjust, s.Name(), err)
	}
	if f.Settings.Rotation == 0 {
		return f, nil
	}

	img, err := f.Rasterize()
	if err != nil {
		return nil, err
	}
	// bild's positive angle is clockwise on screen; negate for CCW.
	rotated := transform.Rotate(img, -f.Settings.Rotation, &transform.RotationOptions{
		ResizeBounds: true,
	})

	out := *f
	out.Image = rotated
	out.Meta.Width = rotated.Bounds().Dx()
	out.Meta.Height = rotated.Bounds().Dy()
	return &out, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeStep serialises the raster into encoded bytes using the registry.
type EncodeStep struct {
	Registry    core.Registry
	BaseOptions core.EncodeOptions
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, f *core.Frame) (*core.Frame, error) {
	enc, ok := s.Registry.EncoderFor(f.Format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, f.Format))
	}

	data, err := enc.Encode(ctx, f, s.BaseOptions)
	if err != nil {
		return nil, err
	}

	out := *f
	out.Data = data
	out.Meta.SizeBytes = int64(len(data))
	return &out, nil
}

// ── Write ─────────────────────────────────────────────────────────────────────

// WriteStep persists the encoded bytes beside the source file, replacing the
// source extension with the output format's canonical one.  An existing file
// at that path is silently overwritten.
type WriteStep struct {
	Sink core.Sink
}

func (s *WriteStep) Name() string { return "write" }

func (s *WriteStep) Execute(ctx context.Context, f *core.Frame) (*core.Frame, error) {
	if len(f.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryStorage, s.Name(), apperrors.ErrEmptyInput)
	}

	path := utils.DeriveOutputPath(f.SourcePath, f.Format.Extension())
	if err := s.Sink.Put(ctx, path, f.Data); err != nil {
		return nil, err
	}

	out := *f
	out.OutPath = path
	return &out, nil
}
