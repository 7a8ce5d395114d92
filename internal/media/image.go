package media

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageMetadata holds the EXIF fields shown next to a reference image preview.
type ImageMetadata struct {
	DateTaken   time.Time
	HasDate     bool
	CameraMake  string
	CameraModel string
}

// ExtractImageMetadata reads EXIF metadata from an image file. Only the
// metadata block is read, not the pixel data.
func ExtractImageMetadata(filePath string) (*ImageMetadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	exifData, err := imagemeta.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	metadata := &ImageMetadata{}

	// DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		metadata.DateTaken = exifData.DateTimeOriginal()
		metadata.HasDate = true
	case !exifData.CreateDate().IsZero():
		metadata.DateTaken = exifData.CreateDate()
		metadata.HasDate = true
	case !exifData.ModifyDate().IsZero():
		metadata.DateTaken = exifData.ModifyDate()
		metadata.HasDate = true
	}

	metadata.CameraMake = strings.TrimSpace(exifData.Make)
	metadata.CameraModel = strings.TrimSpace(exifData.Model)

	log.Debug().
		Str("path", filePath).
		Bool("has_date", metadata.HasDate).
		Msg("Image metadata extraction complete")

	return metadata, nil
}

// Camera returns "Make Model", or "" when neither is known.
func (m *ImageMetadata) Camera() string {
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}
