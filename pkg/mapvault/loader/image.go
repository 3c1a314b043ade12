package loader

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// ImageHandle is a decoded cover ready for drawing. Each handle gets a unique
// blob: URL under which a presentation layer can serve the raw bytes; the URL
// is dead once the handle is released.
type ImageHandle struct {
	ID     string
	URL    string
	Format string
	Width  int
	Height int

	mu       sync.Mutex
	data     []byte
	img      image.Image
	released bool
}

// NewImageHandle decodes data. Any format registered with the image package
// is accepted (PNG, JPEG, GIF and WebP are linked in).
func NewImageHandle(id string, data []byte) (*ImageHandle, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: cover of %s: %w", ErrDecode, id, err)
	}
	b := img.Bounds()
	return &ImageHandle{
		ID:     id,
		URL:    "blob:mapvault/" + uuid.NewString(),
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
		data:   data,
		img:    img,
	}, nil
}

// Image returns the decoded image, or nil after Release.
func (h *ImageHandle) Image() image.Image {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.img
}

// Bytes returns the encoded payload, or nil after Release.
func (h *ImageHandle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data
}

func (h *ImageHandle) ContentType() string {
	return "image/" + h.Format
}

// Release drops the decoded pixels and the payload. Safe to call twice.
func (h *ImageHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.img = nil
	h.data = nil
	h.released = true
}

func (h *ImageHandle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
