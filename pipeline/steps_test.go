package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TurbulentGoat/fts-converter/adapters/encoder"
	"github.com/TurbulentGoat/fts-converter/adapters/storage"
	"github.com/TurbulentGoat/fts-converter/core"
	apperrors "github.com/TurbulentGoat/fts-converter/errors"
	"github.com/TurbulentGoat/fts-converter/fits"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func rawFrame(dims []int, samples []float64) *core.Frame {
	return &core.Frame{
		Format:   core.FormatPNG,
		Settings: core.DefaultAdjustments(),
		Raw:      &core.RawArray{Dims: dims, Samples: samples, BitPix: -64},
	}
}

func normalize(t *testing.T, f *core.Frame, auto bool) *core.Frame {
	t.Helper()
	out, err := (&NormalizeStep{Auto: auto}).Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return out
}

func grayGradient(w, h int) *core.Frame {
	samples := make([]float64, w*h)
	for i := range samples {
		samples[i] = float64(i * 255 / (w*h - 1))
	}
	f := rawFrame([]int{h, w}, samples)
	out, _ := (&NormalizeStep{Auto: false}).Execute(context.Background(), f)
	return out
}

// writeUint8Container writes a minimal container with a w x h unsigned 8-bit
// array under dir and returns its path.
func writeUint8Container(t *testing.T, dir string, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	rec := func(k, v string) { fmt.Fprintf(&buf, "%-8s= %20s%50s", k, v, "") }
	rec("SIMPLE", "T")
	rec("BITPIX", "8")
	rec("NAXIS", "2")
	rec("NAXIS1", fmt.Sprintf("%d", w))
	rec("NAXIS2", fmt.Sprintf("%d", h))
	fmt.Fprintf(&buf, "%-80s", "END")
	for buf.Len()%fits.BlockSize != 0 {
		buf.WriteByte(' ')
	}
	buf.Write(make([]byte, w*h))
	for buf.Len()%fits.BlockSize != 0 {
		buf.WriteByte(0)
	}

	path := filepath.Join(dir, "input.fits")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// ── Decode ────────────────────────────────────────────────────────────────────

func TestDecode_SizeLimit(t *testing.T) {
	src := writeUint8Container(t, t.TempDir(), 40, 40)
	frame := func() *core.Frame {
		return &core.Frame{
			SourcePath: src,
			Format:     core.FormatPNG,
			Settings:   core.DefaultAdjustments(),
		}
	}

	// Over the cap: the failure names the limit, not a truncated file.
	_, err := (&DecodeStep{MaxBytes: fits.BlockSize + 100}).Execute(context.Background(), frame())
	if !errors.Is(err, apperrors.ErrUnreadableContainer) {
		t.Fatalf("got %v, want ErrUnreadableContainer", err)
	}
	if !strings.Contains(err.Error(), "exceeds size limit") {
		t.Errorf("error should name the size limit, got: %v", err)
	}

	// Under the cap: decodes normally.
	out, err := (&DecodeStep{MaxBytes: 4 * fits.BlockSize}).Execute(context.Background(), frame())
	if err != nil {
		t.Fatalf("decode under cap: %v", err)
	}
	if out.Raw.Len() != 1600 {
		t.Errorf("samples: got %d, want 1600", out.Raw.Len())
	}
}

// ── Normalize ─────────────────────────────────────────────────────────────────

func TestNormalize_ConstantArrayIsAllZeros(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = 42
	}
	out := normalize(t, rawFrame([]int{10, 10}, samples), true)

	for i, p := range out.Display.Pix {
		if p != 0 {
			t.Fatalf("pix[%d]: got %d, want 0 (constant input)", i, p)
		}
	}
	if out.Display.Rank() != 2 || out.Display.Channels() != 1 {
		t.Errorf("dispatch: rank %d channels %d, want 2/1", out.Display.Rank(), out.Display.Channels())
	}
}

func TestNormalize_StretchHitsFullRange(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
	}{
		{"float range", []float64{10.0, 12.5, 17.5, 20.0}},
		{"negative range", []float64{-500, -250, 0, 250}},
		{"wide int range", []float64{0, 1000, 30000, 65000}},
		{"tiny span", []float64{1.0, 1.0001, 1.0002, 1.0003}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := normalize(t, rawFrame([]int{2, 2}, tc.samples), true)

			lo, hi := uint8(255), uint8(0)
			for _, p := range out.Display.Pix {
				if p < lo {
					lo = p
				}
				if p > hi {
					hi = p
				}
			}
			if lo != 0 || hi != 255 {
				t.Errorf("stretched range: [%d, %d], want [0, 255]", lo, hi)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	samples := []float64{0, 51, 102, 153, 204, 255}
	first := normalize(t, rawFrame([]int{2, 3}, samples), true)

	again := make([]float64, len(first.Display.Pix))
	for i, p := range first.Display.Pix {
		again[i] = float64(p)
	}
	second := normalize(t, rawFrame([]int{2, 3}, again), true)

	for i := range first.Display.Pix {
		a, b := first.Display.Pix[i], second.Display.Pix[i]
		diff := int(a) - int(b)
		if diff < -1 || diff > 1 {
			t.Errorf("pix[%d]: %d vs %d, not idempotent within rounding", i, a, b)
		}
	}
	// The endpoints are exact.
	if second.Display.Pix[0] != 0 || second.Display.Pix[5] != 255 {
		t.Errorf("endpoints: got %d and %d, want 0 and 255",
			second.Display.Pix[0], second.Display.Pix[5])
	}
}

func TestNormalize_DimensionalityDispatch(t *testing.T) {
	tests := []struct {
		name     string
		dims     []int
		channels int
		wantErr  bool
	}{
		{"2D grayscale", []int{4, 4}, 1, false},
		{"3D three channels", []int{2, 2, 3}, 3, false},
		{"3D five channels", []int{2, 2, 5}, 5, false}, // passed through; encoder rejects later
		{"1D", []int{16}, 0, true},
		{"4D", []int{2, 2, 2, 2}, 0, true},
		{"5D", []int{2, 2, 2, 2, 2}, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := 1
			for _, d := range tc.dims {
				n *= d
			}
			f := rawFrame(tc.dims, make([]float64, n))
			out, err := (&NormalizeStep{Auto: true}).Execute(context.Background(), f)

			if tc.wantErr {
				if !errors.Is(err, apperrors.ErrUnsupportedDimensionality) {
					t.Fatalf("got %v, want ErrUnsupportedDimensionality", err)
				}
				if !apperrors.IsCategory(err, apperrors.CategoryNormalize) {
					t.Errorf("category: got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if out.Display.Channels() != tc.channels {
				t.Errorf("channels: got %d, want %d", out.Display.Channels(), tc.channels)
			}
		})
	}
}

func TestNormalize_PassthroughClips(t *testing.T) {
	// Without auto-normalise, samples clip to [0, 255] and truncate.
	out := normalize(t, rawFrame([]int{1, 5}, []float64{-40, 0, 99.9, 255, 300}), false)

	want := []uint8{0, 0, 99, 255, 255}
	for i, p := range out.Display.Pix {
		if p != want[i] {
			t.Errorf("pix[%d]: got %d, want %d", i, p, want[i])
		}
	}
}

func TestNormalize_ConsumesRawArray(t *testing.T) {
	out := normalize(t, rawFrame([]int{2, 2}, []float64{1, 2, 3, 4}), true)
	if out.Raw != nil {
		t.Error("raw array should be discarded once normalized")
	}
}

// ── Adjust / Rotate ───────────────────────────────────────────────────────────

func TestAdjust_IdentityIsNoOp(t *testing.T) {
	f := grayGradient(4, 4)
	img, err := f.Rasterize()
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}

	out, err := (&AdjustStep{}).Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if out.Image != img {
		t.Error("identity adjustments must not touch the raster")
	}

	out, err = (&RotateStep{}).Execute(context.Background(), out)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if out.Image != img {
		t.Error("zero rotation must not touch the raster")
	}
}

func TestAdjust_BrightnessDirection(t *testing.T) {
	f := grayGradient(4, 4)
	if _, err := f.Rasterize(); err != nil {
		t.Fatalf("rasterize: %v", err)
	}

	darker := *f
	darker.Settings.Brightness = 0.5
	dOut, err := (&AdjustStep{}).Execute(context.Background(), &darker)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	brighter := *f
	brighter.Settings.Brightness = 1.5
	bOut, err := (&AdjustStep{}).Execute(context.Background(), &brighter)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	if meanIntensity(dOut.Image) >= meanIntensity(f.Image) {
		t.Error("brightness 0.5 should darken")
	}
	if meanIntensity(bOut.Image) <= meanIntensity(f.Image) {
		t.Error("brightness 1.5 should brighten")
	}
}

func TestRotate_CounterClockwise(t *testing.T) {
	// 4 wide, 2 tall, single bright pixel in the top-right corner.  A 90°
	// counter-clockwise turn must land it in the top-left of the 2x4 result;
	// a clockwise turn would put it bottom-right.
	pix := make([]uint8, 8)
	pix[3] = 255
	f := &core.Frame{
		Format:   core.FormatPNG,
		Settings: core.AdjustmentSettings{Brightness: 1, Contrast: 1, Rotation: 90},
		Display:  &core.DisplayImage{Dims: []int{2, 4}, Pix: pix},
	}

	out, err := (&RotateStep{}).Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	b := out.Image.Bounds()
	if b.Dx() != 2 || b.Dy() != 4 {
		t.Fatalf("bounds: %dx%d, want 2x4", b.Dx(), b.Dy())
	}

	var bestX, bestY int
	var best uint32
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v, _, _, _ := out.Image.At(x, y).RGBA()
			if v > best {
				best, bestX, bestY = v, x-b.Min.X, y-b.Min.Y
			}
		}
	}
	if bestX != 0 || bestY != 0 {
		t.Errorf("bright pixel at (%d,%d) after 90°, want top-left (0,0)", bestX, bestY)
	}
}

func TestRotate_QuarterTurnsCompose(t *testing.T) {
	f := grayGradient(6, 4)

	quarter := *f
	quarter.Settings.Rotation = 90
	once, err := (&RotateStep{}).Execute(context.Background(), &quarter)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if b := once.Image.Bounds(); b.Dx() != 4 || b.Dy() != 6 {
		t.Errorf("90° bounds: %dx%d, want 4x6", b.Dx(), b.Dy())
	}
	twiceFrame := *once
	twice, err := (&RotateStep{}).Execute(context.Background(), &twiceFrame)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	half := *f
	half.Settings.Rotation = 180
	halfOut, err := (&RotateStep{}).Execute(context.Background(), &half)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	bt, bh := twice.Image.Bounds(), halfOut.Image.Bounds()
	if bt.Dx() != bh.Dx() || bt.Dy() != bh.Dy() {
		t.Fatalf("bounds: 90°x2 %v vs 180° %v", bt, bh)
	}
	if d := math.Abs(meanIntensity(twice.Image) - meanIntensity(halfOut.Image)); d > 2 {
		t.Errorf("mean intensity drift between 90°x2 and 180°: %v", d)
	}
}

func TestRotate_ExpandsCanvas(t *testing.T) {
	f := grayGradient(10, 10)
	f.Settings.Rotation = 45
	out, err := (&RotateStep{}).Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	b := out.Image.Bounds()
	if b.Dx() <= 10 || b.Dy() <= 10 {
		t.Errorf("45° rotation must expand the canvas, got %dx%d", b.Dx(), b.Dy())
	}
}

// ── Encode / Write ────────────────────────────────────────────────────────────

func TestEncode_UnsupportedChannelCount(t *testing.T) {
	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())

	f := rawFrame([]int{2, 2, 5}, make([]float64, 20))
	out := normalize(t, f, true)

	_, err := (&EncodeStep{Registry: reg}).Execute(context.Background(), out)
	if err == nil {
		t.Fatal("expected encode failure for 5-channel image")
	}
	if !apperrors.IsCategory(err, apperrors.CategoryEncode) {
		t.Errorf("category: got %v, want encode", err)
	}
}

func TestEncode_UnknownFormat(t *testing.T) {
	f := grayGradient(2, 2)
	f.Format = core.Format("gif")
	_, err := (&EncodeStep{Registry: core.NewRegistry()}).Execute(context.Background(), f)
	if !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestWrite_DerivedPathBesideSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "capture.fits")

	f := grayGradient(2, 2)
	f.SourcePath = src
	f.Data = []byte("payload")

	out, err := (&WriteStep{Sink: storage.NewLocal(0)}).Execute(context.Background(), f)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := filepath.Join(dir, "capture.png")
	if out.OutPath != want {
		t.Errorf("output path: got %s, want %s", out.OutPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("output file missing: %v", err)
	}

	// Last writer wins: a second write silently replaces the file.
	f.Data = []byte("replacement")
	if _, err := (&WriteStep{Sink: storage.NewLocal(0)}).Execute(context.Background(), f); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ := os.ReadFile(want)
	if string(got) != "replacement" {
		t.Errorf("overwrite content: got %q", got)
	}
}

func BenchmarkNormalize(b *testing.B) {
	samples := make([]float64, 1024*1024)
	for i := range samples {
		samples[i] = float64(i % 65536)
	}
	step := &NormalizeStep{Auto: true}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f := rawFrame([]int{1024, 1024}, samples)
		if _, err := step.Execute(ctx, f); err != nil {
			b.Fatal(err)
		}
	}
}

func meanIntensity(img image.Image) float64 {
	b := img.Bounds()
	var sum, n float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			sum += float64(r+g+bb) / 3 / 257
			n++
		}
	}
	return sum / n
}
