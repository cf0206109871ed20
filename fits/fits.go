// Package fits reads the primary header-data unit of a FITS container file
// and returns its numeric array.  Only the primary HDU is consulted;
// extension HDUs are ignored.
package fits

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/TurbulentGoat/fts-converter/core"
	apperrors "github.com/TurbulentGoat/fts-converter/errors"
)

// BlockSize is the FITS block length: every header and data segment is an
// integral number of 2880-byte blocks.
const BlockSize = 2880

// recordLen is the fixed length of one header keyword record.
const recordLen = 80

// recordsPerBlock is how many keyword records fit in one header block.
const recordsPerBlock = BlockSize / recordLen

// Card is a single parsed header keyword record.
type Card struct {
	Keyword string
	Value   string
	Comment string
}

// Header holds the parsed primary header.
type Header struct {
	cards map[string]Card
	order []string
}

// Get returns the raw value string for keyword.
func (h *Header) Get(keyword string) (string, bool) {
	c, ok := h.cards[keyword]
	return c.Value, ok
}

// Int parses the value of keyword as an integer.
func (h *Header) Int(keyword string) (int, error) {
	v, ok := h.Get(keyword)
	if !ok {
		return 0, fmt.Errorf("header keyword %s not present", keyword)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("header keyword %s: %w", keyword, err)
	}
	return n, nil
}

// Float parses the value of keyword as a float, falling back to def when the
// keyword is absent.
func (h *Header) Float(keyword string, def float64) (float64, error) {
	v, ok := h.Get(keyword)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("header keyword %s: %w", keyword, err)
	}
	return f, nil
}

// Cards returns the parsed cards in file order.
func (h *Header) Cards() []Card {
	out := make([]Card, 0, len(h.order))
	for _, k := range h.order {
		out = append(out, h.cards[k])
	}
	return out
}

// DecodeFile opens path, decodes the primary HDU, and closes the file before
// returning.  No file handle escapes the call.
func DecodeFile(path string) (*core.RawArray, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.New(apperrors.CategoryDecode, "fits.open",
			fmt.Errorf("%w: %v", apperrors.ErrUnreadableContainer, err))
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a FITS stream and returns the primary data unit as a
// RawArray together with the parsed header.
//
// Failure modes: ErrUnreadableContainer when the stream is not parsable FITS
// (bad magic, malformed or unterminated header, truncated data);
// ErrNoImageData when the header parses but declares an empty array
// (NAXIS = 0 or any axis of length 0).
func Decode(r io.Reader) (*core.RawArray, *Header, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, nil, err
	}

	bitpix, err := hdr.Int("BITPIX")
	if err != nil {
		return nil, nil, unreadable("fits.header", err)
	}
	sampleSize := bytesPerSample(bitpix)
	if sampleSize == 0 {
		return nil, nil, unreadable("fits.header", fmt.Errorf("invalid BITPIX %d", bitpix))
	}

	naxis, err := hdr.Int("NAXIS")
	if err != nil {
		return nil, nil, unreadable("fits.header", err)
	}
	if naxis == 0 {
		return nil, hdr, apperrors.New(apperrors.CategoryDecode, "fits.data", apperrors.ErrNoImageData)
	}
	if naxis < 0 || naxis > 999 {
		return nil, nil, unreadable("fits.header", fmt.Errorf("invalid NAXIS %d", naxis))
	}

	// Axis lengths.  NAXIS1 varies fastest in the data stream, so the
	// returned Dims reverse the declared order into row-major layout with
	// the fastest axis last.
	total := 1
	dims := make([]int, naxis)
	for i := 1; i <= naxis; i++ {
		n, err := hdr.Int(fmt.Sprintf("NAXIS%d", i))
		if err != nil {
			return nil, nil, unreadable("fits.header", err)
		}
		if n < 0 {
			return nil, nil, unreadable("fits.header", fmt.Errorf("invalid NAXIS%d %d", i, n))
		}
		dims[naxis-i] = n
		total *= n
	}
	if total == 0 {
		return nil, hdr, apperrors.New(apperrors.CategoryDecode, "fits.data", apperrors.ErrNoImageData)
	}

	// Physical value scaling, defaulting to the identity transform.
	bzero, err := hdr.Float("BZERO", 0)
	if err != nil {
		return nil, nil, unreadable("fits.header", err)
	}
	bscale, err := hdr.Float("BSCALE", 1)
	if err != nil {
		return nil, nil, unreadable("fits.header", err)
	}
	if bscale == 0 {
		bscale = 1
	}

	raw := make([]byte, total*sampleSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, unreadable("fits.data", fmt.Errorf("truncated data unit: %v", err))
	}

	samples := make([]float64, total)
	for i := 0; i < total; i++ {
		v := readSample(raw[i*sampleSize:(i+1)*sampleSize], bitpix)
		samples[i] = bzero + bscale*v
	}

	return &core.RawArray{Dims: dims, Samples: samples, BitPix: bitpix}, hdr, nil
}

// readHeader consumes 2880-byte blocks of 80-character keyword records up to
// and including the END card.
func readHeader(r io.Reader) (*Header, error) {
	hdr := &Header{cards: make(map[string]Card)}
	block := make([]byte, BlockSize)
	first := true

	for {
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, unreadable("fits.header", fmt.Errorf("unterminated header: %v", err))
		}
		for i := 0; i < recordsPerBlock; i++ {
			record := string(block[i*recordLen : (i+1)*recordLen])
			if first {
				// The primary header must open with the SIMPLE card.
				if !strings.HasPrefix(record, "SIMPLE ") && !strings.HasPrefix(record, "SIMPLE=") {
					return nil, unreadable("fits.magic", fmt.Errorf("missing SIMPLE card"))
				}
				first = false
			}
			card, end := parseCard(record)
			if end {
				return hdr, nil
			}
			if card.Keyword != "" {
				if _, dup := hdr.cards[card.Keyword]; !dup {
					hdr.order = append(hdr.order, card.Keyword)
				}
				hdr.cards[card.Keyword] = card
			}
		}
	}
}

// parseCard splits one 80-character record into keyword, value, and comment.
// The second return is true for the END card.
func parseCard(record string) (Card, bool) {
	if strings.HasPrefix(record, "END") && strings.TrimSpace(record) == "END" {
		return Card{}, true
	}
	eq := strings.Index(record, "=")
	if eq < 0 {
		// Commentary keywords (COMMENT, HISTORY, blank) carry no value.
		return Card{}, false
	}
	keyword := strings.TrimSpace(record[:eq])
	rest := record[eq+1:]

	value, comment := splitComment(rest)
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "'")
	value = strings.TrimSpace(value)

	return Card{Keyword: keyword, Value: value, Comment: comment}, false
}

// splitComment separates a record's value field from its trailing comment.
// A slash inside a single-quoted string value belongs to the value, not the
// comment.
func splitComment(rest string) (value, comment string) {
	trimmed := strings.TrimLeft(rest, " ")
	if strings.HasPrefix(trimmed, "'") {
		if close := strings.Index(trimmed[1:], "'"); close >= 0 {
			after := trimmed[close+2:]
			if slash := strings.Index(after, "/"); slash >= 0 {
				return trimmed[:close+2], strings.TrimSpace(after[slash+1:])
			}
			return trimmed[:close+2], ""
		}
	}
	if slash := strings.Index(rest, "/"); slash >= 0 {
		return rest[:slash], strings.TrimSpace(rest[slash+1:])
	}
	return rest, ""
}

// bytesPerSample maps BITPIX to the per-sample byte width, or 0 when BITPIX
// is not a legal value.
func bytesPerSample(bitpix int) int {
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
		return int(math.Abs(float64(bitpix))) / 8
	}
	return 0
}

// readSample decodes one big-endian sample.  BITPIX 8 is unsigned; the wider
// integer types are signed two's complement.
func readSample(b []byte, bitpix int) float64 {
	switch bitpix {
	case 8:
		return float64(b[0])
	case 16:
		return float64(int16(binary.BigEndian.Uint16(b)))
	case 32:
		return float64(int32(binary.BigEndian.Uint32(b)))
	case 64:
		return float64(int64(binary.BigEndian.Uint64(b)))
	case -32:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	case -64:
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	}
	return 0
}

func unreadable(op string, err error) error {
	return apperrors.New(apperrors.CategoryDecode, op,
		fmt.Errorf("%w: %v", apperrors.ErrUnreadableContainer, err))
}
