package legend

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/woozymasta/choromap/internal/choropleth"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ramp = choropleth.Stops{
	{Threshold: 0, Color: "#f8d5cc"},
	{Threshold: 1000, Color: "#6e40e6"},
}

func TestRender(t *testing.T) {
	img, err := Render(ramp, 4, 2)
	require.NoError(t, err)

	left := color.RGBA{R: 0xf8, G: 0xd5, B: 0xcc, A: 0xff}
	right := color.RGBA{R: 0x6e, G: 0x40, B: 0xe6, A: 0xff}
	for y := 0; y < 2; y++ {
		assert.Equal(t, left, img.RGBAAt(0, y))
		assert.Equal(t, left, img.RGBAAt(1, y))
		assert.Equal(t, right, img.RGBAAt(2, y))
		assert.Equal(t, right, img.RGBAAt(3, y))
	}
}

func TestRenderErrors(t *testing.T) {
	_, err := Render(ramp, 0, 10)
	assert.ErrorIs(t, err, ErrSize)

	_, err = Render(ramp, MaxWidth+1, 10)
	assert.ErrorIs(t, err, ErrSize)

	_, err = Render(nil, 10, 10)
	assert.ErrorIs(t, err, choropleth.ErrInvalidStops)

	_, err = Render(choropleth.Stops{{Threshold: 0, Color: "notacolor"}}, 10, 10)
	assert.ErrorIs(t, err, ErrColor)
}

func TestEncodeRoundTrip(t *testing.T) {
	img, err := Render(ramp, 8, 4)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img))

	decoded, err := webp.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
	assert.Equal(t, 4, decoded.Bounds().Dy())

	got := color.RGBAModel.Convert(decoded.At(7, 0)).(color.RGBA)
	assert.Equal(t, color.RGBA{R: 0x6e, G: 0x40, B: 0xe6, A: 0xff}, got)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#f4bfb6")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xf4, G: 0xbf, B: 0xb6, A: 0xff}, c)

	c, err = ParseColor("#fa0")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xaa, B: 0x00, A: 0xff}, c)

	for in, want := range map[string]color.RGBA{
		"red":                  {R: 0xff, A: 0xff},
		" SteelBlue ":          {R: 0x46, G: 0x82, B: 0xb4, A: 0xff},
		"rgb(0, 0, 255)":       {B: 0xff, A: 0xff},
		"RGB(1,2,3)":           {R: 1, G: 2, B: 3, A: 0xff},
		"rgba(255, 0, 0, 0)":   {},
		"rgba(255, 255, 0, 1)": {R: 0xff, G: 0xff, A: 0xff},
	} {
		c, err := ParseColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, c, in)
	}

	for _, bad := range []string{
		"", "f4bfb6", "#f4bfb", "#zzzzzz", "notacolor",
		"rgb(1,2)", "rgb(1,2,256)", "rgb(1,2,3", "rgba(1,2,3)", "rgba(1,2,3,1.5)",
	} {
		_, err := ParseColor(bad)
		assert.ErrorIs(t, err, ErrColor, bad)
	}
}

func TestRenderNamedAndFunctionalColors(t *testing.T) {
	stops := choropleth.Stops{
		{Threshold: 0, Color: "red"},
		{Threshold: 10, Color: "rgb(0,0,255)"},
	}

	img, err := Render(stops, 320, 16)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{B: 0xff, A: 0xff}, img.RGBAAt(319, 15))
}
