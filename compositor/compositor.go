// Package compositor assembles the PPU's three pixel layers into a
// single upscaled frame and hands it to a host-provided sink.
package compositor

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

const (
	width  = 256
	height = 240
	scale  = 2
)

// FramebufferSink receives a finished, upscaled frame. It is called
// only from the scheduler goroutine, once per flip.
type FramebufferSink interface {
	Present(img *image.RGBA)
}

// PixelBuf is one compositing layer. Pixels that were never plotted
// keep zero alpha so draw.Over leaves the layer beneath untouched.
type PixelBuf struct {
	img *image.RGBA
}

func newPixelBuf() *PixelBuf {
	return &PixelBuf{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (pb *PixelBuf) plot(x, y int, c color.RGBA) {
	if x < 0 || x >= width || y < 0 || y >= height {
		return
	}
	pb.img.SetRGBA(x, y, c)
}

func (pb *PixelBuf) clear() {
	for i := range pb.img.Pix {
		pb.img.Pix[i] = 0
	}
}

// Compositor holds the three PPU pixel layers (bbg, bg, fg) and the
// composited destination frame.
type Compositor struct {
	bbg, bg, fg *PixelBuf
	dst         *image.RGBA
	sink        FramebufferSink
}

func New(sink FramebufferSink) *Compositor {
	return &Compositor{
		bbg:  newPixelBuf(),
		bg:   newPixelBuf(),
		fg:   newPixelBuf(),
		dst:  image.NewRGBA(image.Rect(0, 0, width*scale, height*scale)),
		sink: sink,
	}
}

func (c *Compositor) PlotBBG(x, y int, col color.RGBA) { c.bbg.plot(x, y, col) }
func (c *Compositor) PlotBG(x, y int, col color.RGBA)  { c.bg.plot(x, y, col) }
func (c *Compositor) PlotFG(x, y int, col color.RGBA)  { c.fg.plot(x, y, col) }

// FlipDisplay upscales each layer 2x and composites bbg under bg
// under fg into the destination frame, forwards it to the sink, then
// clears all three layers for the next frame.
func (c *Compositor) FlipDisplay() {
	for i := range c.dst.Pix {
		c.dst.Pix[i] = 0
	}

	dstRect := c.dst.Bounds()
	srcRect := image.Rect(0, 0, width, height)

	for _, layer := range []*PixelBuf{c.bbg, c.bg, c.fg} {
		draw.NearestNeighbor.Scale(c.dst, dstRect, layer.img, srcRect, draw.Over, nil)
	}

	c.sink.Present(c.dst)

	c.bbg.clear()
	c.bg.clear()
	c.fg.clear()
}
