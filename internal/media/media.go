// Package media classifies and inspects local media files selected by the
// user: reference images for registration and videos for detection.
//
// Images are inspected in pure Go (evanoberholster/imagemeta for EXIF,
// golang.org/x/image/draw for thumbnails). Videos are only classified; the
// server does all video decoding.
package media

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// SupportedImageExtensions maps accepted reference image extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// SupportedVideoExtensions maps accepted video extensions to MIME types.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// File describes a local media file.
type File struct {
	Path     string
	Name     string
	MIMEType string
	Size     int64
}

// Stat loads a File from disk without reading its contents.
func Stat(filePath string) (*File, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	f := &File{
		Path:     filePath,
		Name:     filepath.Base(filePath),
		MIMEType: MIMEType(filePath),
		Size:     info.Size(),
	}

	log.Debug().
		Str("path", filePath).
		Str("mime_type", f.MIMEType).
		Int64("size_bytes", f.Size).
		Msg("Media file inspected")

	return f, nil
}

// MIMEType returns the MIME type for path based on its extension, falling
// back to the system table and finally application/octet-stream.
func MIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := SupportedImageExtensions[ext]; ok {
		return t
	}
	if t, ok := SupportedVideoExtensions[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// IsImage returns true if the file extension corresponds to an image.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideo returns true if the file extension corresponds to a video.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// ImagePatterns returns glob patterns for the supported image extensions.
func ImagePatterns() []string {
	return patterns(SupportedImageExtensions)
}

// VideoPatterns returns glob patterns for the supported video extensions.
func VideoPatterns() []string {
	return patterns(SupportedVideoExtensions)
}

func patterns(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for ext := range m {
		out = append(out, "*"+ext)
	}
	return out
}
