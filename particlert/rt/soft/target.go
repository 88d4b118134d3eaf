package soft

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/google/uuid"
)

// Target is an image-backed render target.
type Target struct {
	id    uuid.UUID
	Image *image.RGBA
}

func NewTarget(width, height int) *Target {
	return &Target{id: uuid.New(), Image: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (t *Target) ID() uuid.UUID { return t.id }

func (t *Target) Size() (int, int) {
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

func (t *Target) Clear(c color.RGBA) {
	for i := 0; i < len(t.Image.Pix); i += 4 {
		t.Image.Pix[i] = c.R
		t.Image.Pix[i+1] = c.G
		t.Image.Pix[i+2] = c.B
		t.Image.Pix[i+3] = c.A
	}
}

// Coverage returns the number of pixels that differ from c.
func (t *Target) Coverage(c color.RGBA) int {
	n := 0
	for i := 0; i < len(t.Image.Pix); i += 4 {
		p := t.Image.Pix[i : i+4 : i+4]
		if p[0] != c.R || p[1] != c.G || p[2] != c.B || p[3] != c.A {
			n++
		}
	}
	return n
}

func (t *Target) WritePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, t.Image); err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", path, err)
	}
	return nil
}
