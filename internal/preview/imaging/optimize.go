// Package imaging downsizes preview images with libvips through bimg.
package imaging

import (
	"fmt"

	"github.com/h2non/bimg"
)

const (
	DefaultMaxSize = 1024 // longest edge in pixels
	jpegQuality    = 85
)

// keepType lists formats whose alpha channel must survive resizing.
var keepType = map[bimg.ImageType]bool{
	bimg.PNG:  true,
	bimg.WEBP: true,
}

type Optimizer struct {
	maxSize int
}

// NewOptimizer creates an optimizer that fits images into a maxSize square.
func NewOptimizer(maxSize int) *Optimizer {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Optimizer{maxSize: maxSize}
}

// Optimize shrinks data so its longer edge is at most the configured size.
// Images that already fit and GIFs are returned untouched. PNG and WebP keep
// their format; everything else is re-encoded as JPEG.
func (o *Optimizer) Optimize(data []byte) ([]byte, string, error) {
	image := bimg.NewImage(data)
	srcType := bimg.DetermineImageType(data)
	if srcType == bimg.UNKNOWN {
		return nil, "", fmt.Errorf("unrecognized image format")
	}

	if srcType == bimg.GIF {
		return data, mimeType(srcType), nil
	}

	size, err := image.Size()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get image size: %w", err)
	}
	if size.Width <= o.maxSize && size.Height <= o.maxSize {
		return data, mimeType(srcType), nil
	}

	width, height := calculateNewDimensions(size.Width, size.Height, o.maxSize)

	outType := bimg.JPEG
	if keepType[srcType] {
		outType = srcType
	}

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    outType,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to process image: %w", err)
	}

	return processed, mimeType(outType), nil
}

func mimeType(t bimg.ImageType) string {
	switch t {
	case bimg.SVG:
		return "image/svg+xml"
	case bimg.UNKNOWN:
		return "application/octet-stream"
	}
	return "image/" + bimg.ImageTypeName(t)
}

// calculateNewDimensions scales width and height so the longer edge is maxSize.
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}
