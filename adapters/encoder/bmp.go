package encoder

import (
	"context"

	"golang.org/x/image/bmp"

	"github.com/TurbulentGoat/fts-converter/core"
	apperrors "github.com/TurbulentGoat/fts-converter/errors"
	"github.com/TurbulentGoat/fts-converter/utils"
)

// BMP encodes frames to BMP format via golang.org/x/image/bmp.
type BMP struct{}

func NewBMP() *BMP { return &BMP{} }

func (b *BMP) CanEncode(format core.Format) bool { return format == core.FormatBMP }

func (b *BMP) Encode(ctx context.Context, f *core.Frame, _ core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "bmp.encode", err)
	}

	src, err := f.Rasterize()
	if err != nil {
		return nil, err
	}

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	if err := bmp.Encode(buf, src); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "bmp.encode", err)
	}
	return utils.CloneBytes(buf.Bytes()), nil
}
