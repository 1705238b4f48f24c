// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"bytes"
	"image"
	"io"
	"os"

	// decoders for texture files
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pkg/errors"
)

// Pixels is a tightly packed 8-bit per channel image.
type Pixels struct {
	Width    int
	Height   int
	Channels int
	Data     []byte
}

// RGBA returns the pixels with four channels, expanding RGB data if needed.
func (p Pixels) RGBA() Pixels {
	if p.Channels != 3 {
		return p
	}
	return Pixels{
		Width:    p.Width,
		Height:   p.Height,
		Channels: 4,
		Data:     ExpandRGB(p.Data, p.Width, p.Height),
	}
}

// ExpandRGB widens packed RGB pixels to RGBA. The first three bytes of every
// pixel are copied, the fourth is whatever a fresh allocation holds and must
// not be relied on.
func ExpandRGB(rgb []byte, width, height int) []byte {
	n := width * height
	rgba := make([]byte, n*4)
	for i := 0; i < n && i*3+2 < len(rgb); i++ {
		copy(rgba[i*4:i*4+3], rgb[i*3:i*3+3])
	}
	return rgba
}

// PixelsFromImage draws a decoded image onto an RGBA canvas. Images that
// report themselves opaque come back as 3-channel RGB.
func PixelsFromImage(img image.Image) Pixels {
	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)

	px := Pixels{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: 4,
		Data:     canvas.Pix,
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		px.Channels = 3
		rgb := make([]byte, px.Width*px.Height*3)
		for i := 0; i < px.Width*px.Height; i++ {
			copy(rgb[i*3:i*3+3], canvas.Pix[i*4:i*4+3])
		}
		px.Data = rgb
	}
	return px
}

// DecodePixels decodes any registered image format.
func DecodePixels(r io.Reader) (Pixels, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Pixels{}, errors.Wrap(err, "image.Decode()")
	}
	return PixelsFromImage(img), nil
}

// DecodePixelsBytes decodes an encoded image held in memory.
func DecodePixelsBytes(data []byte) (Pixels, error) {
	return DecodePixels(bytes.NewReader(data))
}

// LoadPixels decodes an image file.
func LoadPixels(path string) (Pixels, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pixels{}, err
	}
	defer f.Close()
	return DecodePixels(f)
}
