// Package legend renders color ramps as image strips.
package legend

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/woozymasta/choromap/internal/choropleth"

	"github.com/chai2010/webp"
	"golang.org/x/image/colornames"
	xdraw "golang.org/x/image/draw"
)

// Size limits for rendered strips.
const (
	MaxWidth  = 2048
	MaxHeight = 256
)

var (
	// ErrSize is returned for a strip size outside the allowed range.
	ErrSize = errors.New("legend size out of range")
	// ErrColor is returned for a stop color the widget would not understand.
	ErrColor = errors.New("unsupported color")
)

// Render draws one equal-width band per stop, left to right.
// The ramp is drawn at one pixel per band and scaled up to width x height,
// so band edges stay sharp.
func Render(stops choropleth.Stops, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || width > MaxWidth || height > MaxHeight {
		return nil, fmt.Errorf("%w: %dx%d", ErrSize, width, height)
	}
	if err := stops.Validate(); err != nil {
		return nil, err
	}

	strip := image.NewRGBA(image.Rect(0, 0, len(stops), 1))
	for i, s := range stops {
		c, err := ParseColor(s.Color)
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", i, err)
		}
		strip.SetRGBA(i, 0, c)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), strip, strip.Bounds(), draw.Src, nil)

	return dst, nil
}

// Encode writes img as WebP. Flat color bands compress best lossless.
func Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{Lossless: true, Quality: 90})
}

// ParseColor parses the color forms the map widget accepts in paint stops:
// #rgb, #rrggbb, rgb(r, g, b), rgba(r, g, b, a) and CSS color names.
func ParseColor(s string) (color.RGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))

	switch {
	case strings.HasPrefix(v, "#"):
		return parseHex(v[1:], s)
	case strings.HasPrefix(v, "rgb(") || strings.HasPrefix(v, "rgba("):
		return parseFunc(v, s)
	}

	if c, ok := colornames.Map[v]; ok {
		return c, nil
	}
	return color.RGBA{}, fmt.Errorf("%w %q", ErrColor, s)
}

func parseHex(hex, orig string) (color.RGBA, error) {
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("%w %q", ErrColor, orig)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w %q", ErrColor, orig)
	}

	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// parseFunc handles rgb() with three 0-255 channels and rgba() with an
// additional 0-1 alpha.
func parseFunc(v, orig string) (color.RGBA, error) {
	open := strings.IndexByte(v, '(')
	if !strings.HasSuffix(v, ")") {
		return color.RGBA{}, fmt.Errorf("%w %q", ErrColor, orig)
	}
	fn := v[:open]
	args := strings.Split(v[open+1:len(v)-1], ",")

	want := 3
	if fn == "rgba" {
		want = 4
	}
	if len(args) != want {
		return color.RGBA{}, fmt.Errorf("%w %q", ErrColor, orig)
	}

	var ch [3]uint8
	for i := range ch {
		n, err := strconv.Atoi(strings.TrimSpace(args[i]))
		if err != nil || n < 0 || n > 255 {
			return color.RGBA{}, fmt.Errorf("%w %q", ErrColor, orig)
		}
		ch[i] = uint8(n)
	}

	alpha := 1.0
	if want == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(args[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.RGBA{}, fmt.Errorf("%w %q", ErrColor, orig)
		}
		alpha = a
	}

	nc := color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: uint8(math.Round(alpha * 0xff))}
	return color.RGBAModel.Convert(nc).(color.RGBA), nil
}
