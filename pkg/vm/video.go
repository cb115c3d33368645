package vm

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

// pixelToRGBA splits a 0xAARRGGBB framebuffer cell into RGBA bytes. The
// display has no transparency, so alpha is always opaque.
func pixelToRGBA(val uint32) (r, g, b, a byte) {
	r = byte(val >> 16)
	g = byte(val >> 8)
	b = byte(val)
	a = 0xFF
	return
}

// FramebufferRGBA converts framebuffer cells into an RGBA8888 byte slice of
// length len(fb)*4, suitable for ebiten.Image.WritePixels.
func FramebufferRGBA(fb []uint32) []byte {
	pixels := make([]byte, len(fb)*4)
	for i, val := range fb {
		r, g, b, a := pixelToRGBA(val)
		pixels[i*4+0] = r
		pixels[i*4+1] = g
		pixels[i*4+2] = b
		pixels[i*4+3] = a
	}
	return pixels
}

// GetFramebufferImage returns the current display as an *image.RGBA.
func (v *VM) GetFramebufferImage() *image.RGBA {
	return FramebufferImage(v.Framebuffer, v.Display)
}

// FramebufferImage wraps a framebuffer snapshot of the given geometry.
func FramebufferImage(fb []uint32, d DisplayInfo) *image.RGBA {
	return &image.RGBA{
		Pix:    FramebufferRGBA(fb),
		Stride: d.Width * 4,
		Rect:   image.Rect(0, 0, d.Width, d.Height),
	}
}

// SaveScreenshot encodes the current framebuffer as a PNG and writes it to filename.
func (v *VM) SaveScreenshot(filename string) error {
	return WritePNG(filename, v.Framebuffer, v.Display)
}

// WritePNG saves a framebuffer snapshot, such as one received from a
// runner, as a PNG file.
func WritePNG(filename string, fb []uint32, d DisplayInfo) error {
	if len(fb) != d.Pixels() {
		return fmt.Errorf("%w: %d cells for %dx%d", ErrDisplaySize, len(fb), d.Width, d.Height)
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(f, FramebufferImage(fb, d)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
