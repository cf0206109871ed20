package encoder

import (
	"context"

	"golang.org/x/image/tiff"

	"github.com/TurbulentGoat/fts-converter/core"
	apperrors "github.com/TurbulentGoat/fts-converter/errors"
	"github.com/TurbulentGoat/fts-converter/utils"
)

// TIFF encodes frames to TIFF format via golang.org/x/image/tiff.
type TIFF struct {
	Deflate bool // compress output with deflate
}

func NewTIFF(deflate bool) *TIFF { return &TIFF{Deflate: deflate} }

func (t *TIFF) CanEncode(format core.Format) bool { return format == core.FormatTIFF }

func (t *TIFF) Encode(ctx context.Context, f *core.Frame, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "tiff.encode", err)
	}

	src, err := f.Rasterize()
	if err != nil {
		return nil, err
	}

	compression := tiff.Uncompressed
	if t.Deflate || opts.TIFFDeflate {
		compression = tiff.Deflate
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	err = tiff.Encode(buf, src, &tiff.Options{Compression: compression, Predictor: true})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "tiff.encode", err)
	}
	return utils.CloneBytes(buf.Bytes()), nil
}
