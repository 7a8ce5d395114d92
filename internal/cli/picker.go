package cli

import (
	"errors"
	"slices"

	"github.com/fpang/missing-person-client/internal/media"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// PickFunc opens a file dialog and returns the chosen path. An empty path
// with a nil error means the user canceled.
type PickFunc func(title string, patterns []string) (string, error)

// NativePicker shows the platform's file dialog.
func NativePicker(title string, patterns []string) (string, error) {
	selected, err := zenity.SelectFile(
		zenity.Title(title),
		zenity.FileFilters{{Name: title, Patterns: patterns}},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", nil
		}
		log.Error().Err(err).Msg("File picker failed")
		return "", err
	}
	log.Debug().Str("path", selected).Msg("File picked via native dialog")
	return selected, nil
}

// PickImage asks pick for a reference image.
func PickImage(pick PickFunc) (string, error) {
	return pick("Select reference image", sorted(media.ImagePatterns()))
}

// PickVideo asks pick for a video.
func PickVideo(pick PickFunc) (string, error) {
	return pick("Select video", sorted(media.VideoPatterns()))
}

func sorted(s []string) []string {
	slices.Sort(s)
	return s
}
