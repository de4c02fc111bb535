// ABOUTME: Tests for the compositor and render surface
// ABOUTME: Tests centering, idempotent idle rendering, and frame blits
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"sync"
	"testing"
)

var testGeometry = Geometry{
	FrameWidth:    300,
	FrameHeight:   216,
	DisplayWidth:  300,
	DisplayHeight: 210,
	Scale:         1.5,
}

func solidFrame(g Geometry, c color.RGBA) []byte {
	pix := make([]byte, g.FrameWidth*g.FrameHeight*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	return pix
}

func TestPlaceCentersForDifferentViewports(t *testing.T) {
	for _, vp := range []image.Point{{1280, 720}, {1913, 1001}, {640, 480}} {
		p := Place(vp, testGeometry)

		if p.W != 450 || p.H != 315 {
			t.Fatalf("viewport %v: expected 450x315 destination, got %vx%v", vp, p.W, p.H)
		}

		left, right := p.X, float64(vp.X)-(p.X+p.W)
		top, bottom := p.Y, float64(vp.Y)-(p.Y+p.H)
		if left != right {
			t.Errorf("viewport %v: horizontal margins differ: %v vs %v", vp, left, right)
		}
		if top != bottom {
			t.Errorf("viewport %v: vertical margins differ: %v vs %v", vp, top, bottom)
		}
	}
}

func TestPlaceFormula(t *testing.T) {
	p := Place(image.Point{1280, 720}, testGeometry)

	if p.X != 1280.0/2-450.0/2 {
		t.Errorf("unexpected x: %v", p.X)
	}
	if p.Y != 720.0/2-315.0/2 {
		t.Errorf("unexpected y: %v", p.Y)
	}
}

func TestGeometryValidate(t *testing.T) {
	if err := testGeometry.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := testGeometry
	bad.Scale = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero scale")
	}

	bad = testGeometry
	bad.DisplayHeight = 400
	if err := bad.Validate(); err == nil {
		t.Error("expected error when display exceeds frame")
	}
}

func TestRenderIdleIsIdempotent(t *testing.T) {
	backdrop := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			backdrop.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 8), 0x40, 0xFF})
		}
	}

	surface := NewSurface(320, 180)
	comp := NewCompositor(surface, testGeometry, backdrop, image.Rect(0, 0, 60, 30))

	comp.RenderIdle()
	first := surface.Snapshot()
	comp.RenderIdle()
	second := surface.Snapshot()

	if !bytes.Equal(first.Pix, second.Pix) {
		t.Error("expected identical output for repeated idle renders")
	}
}

func TestRenderIdleWithoutBackdrop(t *testing.T) {
	surface := NewSurface(16, 16)
	comp := NewCompositor(surface, testGeometry, nil, image.Rectangle{})

	comp.RenderIdle()

	if got := surface.Snapshot().RGBAAt(8, 8); got != idleFill {
		t.Errorf("expected idle fill %v, got %v", idleFill, got)
	}
}

func TestRenderFrameBlitsIntoCenter(t *testing.T) {
	surface := NewSurface(1280, 720)
	comp := NewCompositor(surface, testGeometry, nil, image.Rectangle{})
	red := color.RGBA{0xFF, 0, 0, 0xFF}

	comp.RenderFrame(solidFrame(testGeometry, red))
	snap := surface.Snapshot()

	dest := Place(surface.Size(), testGeometry).Rect()
	center := image.Pt((dest.Min.X+dest.Max.X)/2, (dest.Min.Y+dest.Max.Y)/2)
	if got := snap.RGBAAt(center.X, center.Y); got != red {
		t.Errorf("expected frame pixel %v at center, got %v", red, got)
	}

	if got := snap.RGBAAt(0, 0); got == red || got.A != 0xFF {
		t.Errorf("expected opaque cycle color outside the frame, got %v", got)
	}
}

func TestRenderFrameTracksResize(t *testing.T) {
	surface := NewSurface(1280, 720)
	comp := NewCompositor(surface, testGeometry, nil, image.Rectangle{})
	green := color.RGBA{0, 0xFF, 0, 0xFF}
	frame := solidFrame(testGeometry, green)

	comp.RenderFrame(frame)
	comp.Resize(800, 600)
	comp.RenderFrame(frame)

	snap := surface.Snapshot()
	if snap.Bounds().Size() != (image.Point{800, 600}) {
		t.Fatalf("unexpected surface size %v", snap.Bounds().Size())
	}
	if got := snap.RGBAAt(400, 300); got != green {
		t.Errorf("expected frame centered in resized viewport, got %v", got)
	}
	if got := snap.RGBAAt(150, 300); got == green {
		t.Error("frame should not extend to x=150 in an 800px viewport")
	}
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func TestResizeWhileIdleRedrawsBackdrop(t *testing.T) {
	backdropColor := color.RGBA{200, 10, 10, 0xFF}
	surface := NewSurface(640, 360)
	comp := NewCompositor(surface, testGeometry, solidImage(64, 36, backdropColor), image.Rectangle{})

	comp.RenderIdle()
	comp.Resize(800, 450)

	snap := surface.Snapshot()
	if snap.Bounds().Size() != (image.Point{800, 450}) {
		t.Fatalf("unexpected surface size %v", snap.Bounds().Size())
	}
	for _, pt := range []image.Point{{0, 0}, {400, 225}, {799, 449}} {
		if got := snap.RGBAAt(pt.X, pt.Y); got != backdropColor {
			t.Errorf("expected backdrop %v at %v after resize, got %v", backdropColor, pt, got)
		}
	}
}

func TestResizeBeforeFirstRenderShowsIdleFill(t *testing.T) {
	surface := NewSurface(640, 360)
	comp := NewCompositor(surface, testGeometry, nil, image.Rectangle{})

	comp.Resize(320, 200)

	if got := surface.Snapshot().RGBAAt(0, 0); got != idleFill {
		t.Errorf("expected idle fill %v, got %v", idleFill, got)
	}
}

func TestResizeDuringPlaybackLeavesCanvasForNextFrame(t *testing.T) {
	backdropColor := color.RGBA{200, 10, 10, 0xFF}
	surface := NewSurface(640, 360)
	comp := NewCompositor(surface, testGeometry, solidImage(64, 36, backdropColor), image.Rectangle{})

	comp.RenderIdle()
	comp.RenderFrame(solidFrame(testGeometry, color.RGBA{0, 0, 0xFF, 0xFF}))
	comp.Resize(800, 450)

	if got := surface.Snapshot().RGBAAt(0, 0); got == backdropColor {
		t.Error("backdrop should not be drawn while a session is rendering")
	}

	// Ending the session brings the backdrop back at the new size
	comp.RenderIdle()
	if got := surface.Snapshot().RGBAAt(799, 449); got != backdropColor {
		t.Errorf("expected backdrop after idle render, got %v", got)
	}
}

func TestResizeIgnoresEmptyViewport(t *testing.T) {
	surface := NewSurface(640, 360)
	comp := NewCompositor(surface, testGeometry, nil, image.Rectangle{})

	comp.Resize(0, 450)
	comp.Resize(800, -1)

	if got := surface.Size(); got != (image.Point{640, 360}) {
		t.Errorf("expected size to stay 640x360, got %v", got)
	}
}

func TestConcurrentRenderAndResize(t *testing.T) {
	surface := NewSurface(640, 360)
	comp := NewCompositor(surface, testGeometry, nil, image.Rectangle{})
	frame := solidFrame(testGeometry, color.RGBA{0xFF, 0xFF, 0, 0xFF})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				switch (i + j) % 3 {
				case 0:
					comp.RenderFrame(frame)
				case 1:
					comp.RenderIdle()
				default:
					comp.Resize(640+j, 360+j)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestRenderFrameRejectsWrongSize(t *testing.T) {
	comp := NewCompositor(NewSurface(10, 10), testGeometry, nil, image.Rectangle{})

	defer func() {
		if recover() == nil {
			t.Error("expected panic for mis-sized frame buffer")
		}
	}()
	comp.RenderFrame(make([]byte, 12))
}

func TestColorCycleWraps(t *testing.T) {
	c := NewColorCycle()
	first := c.Next()

	for i := 1; i < cycleSteps; i++ {
		c.Next()
	}

	if got := c.Next(); got != first {
		t.Errorf("expected cycle to repeat after %d steps: %v vs %v", cycleSteps, first, got)
	}
}

func TestSurfaceSavePNG(t *testing.T) {
	surface := NewSurface(8, 8)
	path := filepath.Join(t.TempDir(), "snap.png")

	if err := surface.SavePNG(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
}
