package core

import (
	"fmt"
	"image"

	apperrors "github.com/TurbulentGoat/fts-converter/errors"
)

// Rasterize converts the frame's DisplayImage into an image.Image, memoized
// on the frame.  One channel maps to grayscale; three and four channels map
// to NRGBA.  Any other channel count is rejected here and surfaces as an
// encoding failure.
func (f *Frame) Rasterize() (image.Image, error) {
	if f.Image != nil {
		return f.Image, nil
	}
	d := f.Display
	if d == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "rasterize", apperrors.ErrEmptyInput)
	}

	w, h := d.Width(), d.Height()
	switch c := d.Channels(); c {
	case 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		copy(img.Pix, d.Pix)
		f.Image = img
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			img.Pix[i*4+0] = d.Pix[i*3+0]
			img.Pix[i*4+1] = d.Pix[i*3+1]
			img.Pix[i*4+2] = d.Pix[i*3+2]
			img.Pix[i*4+3] = 255
		}
		f.Image = img
	case 4:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		copy(img.Pix, d.Pix)
		f.Image = img
	default:
		return nil, apperrors.New(apperrors.CategoryEncode, "rasterize",
			fmt.Errorf("cannot encode %d-channel image", c))
	}
	return f.Image, nil
}
