package refimage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/webp"
)

// MaxSize is the largest reference image accepted, in bytes
const MaxSize = 10 << 20

type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	GIF  Format = "gif"
	WEBP Format = "webp"
)

// Image is an in-memory reference image attached to a clip slot. It is only
// sent to the server when the slot is generated.
type Image struct {
	name   string
	data   []byte
	format Format
	width  int
	height int
}

// New validates data as a supported image and wraps it.
func New(name string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data cannot be empty")
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("image is too large (%d bytes, max %d)", len(data), MaxSize)
	}

	cfg, format, err := detectFormat(data)
	if err != nil {
		return nil, fmt.Errorf("unsupported image format: %w", err)
	}

	if name == "" {
		name = "reference." + string(format)
	}

	return &Image{
		name:   name,
		data:   data,
		format: format,
		width:  cfg.Width,
		height: cfg.Height,
	}, nil
}

// Load reads and validates the image file at path.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference image: %w", err)
	}
	return New(filepath.Base(path), data)
}

func (i *Image) Name() string   { return i.name }
func (i *Image) Data() []byte   { return i.data }
func (i *Image) Format() Format { return i.format }
func (i *Image) Size() int      { return len(i.data) }

// Dimensions returns the pixel width and height.
func (i *Image) Dimensions() (int, int) {
	return i.width, i.height
}

// MimeType returns the content type used for the multipart upload.
func (i *Image) MimeType() string {
	return "image/" + string(i.format)
}

// Reader returns a fresh reader over the image bytes.
func (i *Image) Reader() *bytes.Reader {
	return bytes.NewReader(i.data)
}

func detectFormat(data []byte) (image.Config, Format, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", err
	}

	switch format {
	case "jpeg":
		return cfg, JPEG, nil
	case "png":
		return cfg, PNG, nil
	case "gif":
		return cfg, GIF, nil
	case "webp":
		return cfg, WEBP, nil
	default:
		return image.Config{}, "", fmt.Errorf("unsupported format: %s", format)
	}
}
