// ABOUTME: Graphics stream decoder adapter
// ABOUTME: Advances through sectors and hands out owned frame copies
package cdg

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Interpreter applies CD+G instructions to a canvas.
// Image must return a Width x Height RGBA canvas.
type Interpreter interface {
	Handle(inst Instruction)
	Image() *image.RGBA
}

// Decoder walks a graphics stream sector by sector
type Decoder struct {
	data    []byte
	sectors int
	pos     int
	interp  Interpreter
}

// NewDecoder validates the stream and prepares an interpreter.
// A nil interpreter selects Blank.
func NewDecoder(data []byte, interp Interpreter) (*Decoder, error) {
	sectors, err := validate(data)
	if err != nil {
		return nil, err
	}

	if interp == nil {
		interp = NewBlank()
	}
	if b := interp.Image().Bounds(); b.Dx() != Width || b.Dy() != Height {
		return nil, fmt.Errorf("interpreter canvas is %dx%d, expected %dx%d", b.Dx(), b.Dy(), Width, Height)
	}

	return &Decoder{
		data:    data,
		sectors: sectors,
		interp:  interp,
	}, nil
}

// Advance feeds the next n sectors to the interpreter, in order.
// Advancing past the end of the stream is a no-op.
func (d *Decoder) Advance(n int) error {
	if n < 0 {
		return fmt.Errorf("cannot advance by %d sectors", n)
	}

	for i := 0; i < n && d.pos < d.sectors; i++ {
		start := d.pos * SectorSize
		end := start + SectorSize
		if end > len(d.data) {
			end = len(d.data)
		}

		for off := start; off < end; off += PacketSize {
			if inst, ok := parsePacket(d.data[off : off+PacketSize]); ok {
				d.interp.Handle(inst)
			}
		}
		d.pos++
	}

	return nil
}

// CurrentFrame returns a copy of the current canvas as raw RGBA bytes,
// row-major with a top-left origin
func (d *Decoder) CurrentFrame() []byte {
	pix := d.interp.Image().Pix
	frame := make([]byte, len(pix))
	copy(frame, pix)
	return frame
}

// Position returns the number of sectors consumed so far
func (d *Decoder) Position() int {
	return d.pos
}

// Sectors returns the total number of sectors in the stream
func (d *Decoder) Sectors() int {
	return d.sectors
}

// Blank is an interpreter that keeps an opaque black canvas and only
// counts the instructions it receives
type Blank struct {
	img     *image.RGBA
	Handled int
}

// NewBlank creates a black Width x Height canvas
func NewBlank() *Blank {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	return &Blank{img: img}
}

func (b *Blank) Handle(Instruction) { b.Handled++ }

func (b *Blank) Image() *image.RGBA { return b.img }
