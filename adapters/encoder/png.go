// Package encoder provides core.Encoder implementations for the supported
// output formats.
package encoder

import (
	"context"
	"image/png"

	"github.com/TurbulentGoat/fts-converter/core"
	apperrors "github.com/TurbulentGoat/fts-converter/errors"
	"github.com/TurbulentGoat/fts-converter/utils"
)

// PNG encodes frames to PNG format.
type PNG struct{}

func NewPNG() *PNG { return &PNG{} }

func (p *PNG) CanEncode(format core.Format) bool { return format == core.FormatPNG }

func (p *PNG) Encode(ctx context.Context, f *core.Frame, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "png.encode", err)
	}

	src, err := f.Rasterize()
	if err != nil {
		return nil, err
	}

	enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
	if opts.PNGCompressBest {
		enc.CompressionLevel = png.BestCompression
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	if err := enc.Encode(buf, src); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "png.encode", err)
	}
	return utils.CloneBytes(buf.Bytes()), nil
}
