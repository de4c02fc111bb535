// ABOUTME: In-memory render surface shared by the compositor and viewers
// ABOUTME: Mutex-guarded RGBA canvas sized to the current viewport
package render

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"
)

// Surface is the visible render target
type Surface struct {
	mu  sync.Mutex
	img *image.RGBA
}

// NewSurface creates a surface of the given viewport size
func NewSurface(width, height int) *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// resize replaces the canvas with a blank one of the new size and runs
// fn on it before any reader can see it
func (s *Surface) resize(width, height int, fn func(dst *image.RGBA)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	fn(s.img)
}

// Size returns the current viewport dimensions
func (s *Surface) Size() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.Bounds().Size()
}

// draw runs fn with exclusive access to the canvas
func (s *Surface) draw(fn func(dst *image.RGBA)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.img)
}

// Snapshot returns a copy of the visible canvas
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := image.NewRGBA(s.img.Bounds())
	copy(cp.Pix, s.img.Pix)
	return cp
}

// SavePNG writes a snapshot of the canvas to path
func (s *Surface) SavePNG(path string) error {
	img := s.Snapshot()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}
