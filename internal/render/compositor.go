// ABOUTME: Compositor drawing the backdrop and decoded graphics frames
// ABOUTME: Centers the scaled frame in the viewport on every render call
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"math"
	"os"

	// Backdrop formats
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// idleFill is used when no backdrop image is configured
var idleFill = color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xFF}

// Geometry describes the graphics stream and how it is placed on screen
type Geometry struct {
	// FrameWidth and FrameHeight are the decoded buffer dimensions
	FrameWidth  int
	FrameHeight int

	// DisplayWidth and DisplayHeight select the top-left region of the
	// frame that is shown
	DisplayWidth  int
	DisplayHeight int

	Scale float64
}

// Validate checks that the geometry can be rendered
func (g Geometry) Validate() error {
	if g.FrameWidth <= 0 || g.FrameHeight <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", g.FrameWidth, g.FrameHeight)
	}
	if g.DisplayWidth <= 0 || g.DisplayHeight <= 0 ||
		g.DisplayWidth > g.FrameWidth || g.DisplayHeight > g.FrameHeight {
		return fmt.Errorf("display size %dx%d must fit inside frame %dx%d",
			g.DisplayWidth, g.DisplayHeight, g.FrameWidth, g.FrameHeight)
	}
	if !(g.Scale > 0) {
		return fmt.Errorf("scale must be positive, got %v", g.Scale)
	}
	return nil
}

// Placement is the destination rectangle of the frame in viewport coordinates
type Placement struct {
	X, Y, W, H float64
}

// Rect rounds the placement to whole pixels
func (p Placement) Rect() image.Rectangle {
	x0 := int(math.Round(p.X))
	y0 := int(math.Round(p.Y))
	return image.Rect(x0, y0, x0+int(math.Round(p.W)), y0+int(math.Round(p.H)))
}

// Place computes the centered destination for a viewport
func Place(viewport image.Point, g Geometry) Placement {
	w := float64(g.DisplayWidth) * g.Scale
	h := float64(g.DisplayHeight) * g.Scale
	return Placement{
		X: float64(viewport.X)/2 - w/2,
		Y: float64(viewport.Y)/2 - h/2,
		W: w,
		H: h,
	}
}

// Compositor draws onto a Surface
type Compositor struct {
	surface     *Surface
	geometry    Geometry
	backdrop    image.Image
	backdropSrc image.Rectangle
	cycle       *ColorCycle

	// idle is guarded by the surface lock
	idle bool
}

// NewCompositor creates a compositor. backdrop may be nil; backdropSrc is
// the region of the backdrop stretched over the viewport and defaults to
// the whole image when empty.
func NewCompositor(surface *Surface, geometry Geometry, backdrop image.Image, backdropSrc image.Rectangle) *Compositor {
	if backdrop != nil {
		if backdropSrc.Empty() {
			backdropSrc = backdrop.Bounds()
		} else {
			backdropSrc = backdropSrc.Intersect(backdrop.Bounds())
		}
	}

	return &Compositor{
		surface:     surface,
		geometry:    geometry,
		backdrop:    backdrop,
		backdropSrc: backdropSrc,
		cycle:       NewColorCycle(),
		idle:        true,
	}
}

// LoadBackdrop decodes a PNG or JPEG backdrop image
func LoadBackdrop(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backdrop: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode backdrop: %w", err)
	}

	log.Printf("Loaded backdrop %s (%s, %dx%d)", path, format, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// Surface returns the render target
func (c *Compositor) Surface() *Surface {
	return c.surface
}

// RenderIdle fills the viewport with the backdrop
func (c *Compositor) RenderIdle() {
	c.surface.draw(func(dst *image.RGBA) {
		c.idle = true
		c.drawBackdrop(dst)
	})
}

// Resize changes the viewport size. While idle the backdrop is redrawn at
// the new size; during playback the next frame fills the new canvas.
func (c *Compositor) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.surface.resize(width, height, func(dst *image.RGBA) {
		if c.idle {
			c.drawBackdrop(dst)
		}
	})
}

func (c *Compositor) drawBackdrop(dst *image.RGBA) {
	if c.backdrop == nil {
		draw.Draw(dst, dst.Bounds(), &image.Uniform{C: idleFill}, image.Point{}, draw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), c.backdrop, c.backdropSrc, draw.Src, nil)
}

// RenderFrame draws a color-cycled background, a black mask, and the
// decoded frame scaled into the centered destination rectangle.
// pix must hold FrameWidth*FrameHeight*4 bytes; it is not retained.
func (c *Compositor) RenderFrame(pix []byte) {
	g := c.geometry
	if want := g.FrameWidth * g.FrameHeight * 4; len(pix) != want {
		panic(fmt.Sprintf("render: frame buffer is %d bytes, expected %d", len(pix), want))
	}

	frame := &image.RGBA{
		Pix:    pix,
		Stride: g.FrameWidth * 4,
		Rect:   image.Rect(0, 0, g.FrameWidth, g.FrameHeight),
	}
	src := image.Rect(0, 0, g.DisplayWidth, g.DisplayHeight)

	c.surface.draw(func(dst *image.RGBA) {
		c.idle = false
		bg := c.cycle.Next()
		dest := Place(dst.Bounds().Size(), g).Rect()

		draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
		draw.Draw(dst, dest, &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
		xdraw.NearestNeighbor.Scale(dst, dest, frame, src, draw.Over, nil)
	})
}

// ColorCycle produces a slowly rotating rainbow color
type ColorCycle struct {
	step int
}

const cycleSteps = 4096

// NewColorCycle creates a cycle positioned at its first step
func NewColorCycle() *ColorCycle {
	return &ColorCycle{}
}

// Next advances one step and returns the color for it
func (c *ColorCycle) Next() color.RGBA {
	c.step = (c.step + 1) % cycleSteps

	phase := 2 * math.Pi / cycleSteps * float64(c.step)
	channel := func(offset float64) uint8 {
		return uint8(math.Floor(math.Sin(phase+offset)*127) + 128)
	}

	return color.RGBA{
		R: channel(0),
		G: channel(4 * math.Pi / 3),
		B: channel(8 * math.Pi / 3),
		A: 0xFF,
	}
}
