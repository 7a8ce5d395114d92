package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultThumbnailMaxDimension is the default maximum width or height of a preview.
const DefaultThumbnailMaxDimension = 256

// Thumbnail is a downscaled JPEG rendition of an image.
type Thumbnail struct {
	Data         []byte
	MIMEType     string
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
}

// GenerateThumbnail decodes an image file and returns a JPEG no larger than
// maxDimension on either side, preserving aspect ratio.
func GenerateThumbnail(filePath string, maxDimension int) (*Thumbnail, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultThumbnailMaxDimension
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := calculateThumbnailDimensions(origWidth, origHeight, maxDimension)

	// JPEG has no alpha channel; transparent areas go on white, not black.
	out := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	if newWidth != origWidth || newHeight != origHeight {
		draw.CatmullRom.Scale(out, out.Bounds(), img, bounds, draw.Over, nil)
	} else {
		draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Over)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	log.Debug().
		Str("path", filePath).
		Str("format", format).
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("output_size", buf.Len()).
		Msg("Thumbnail generated")

	return &Thumbnail{
		Data:         buf.Bytes(),
		MIMEType:     "image/jpeg",
		Width:        newWidth,
		Height:       newHeight,
		SourceWidth:  origWidth,
		SourceHeight: origHeight,
	}, nil
}

func calculateThumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return maxDimension, max(newHeight, 1)
	}

	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return max(newWidth, 1), maxDimension
}
