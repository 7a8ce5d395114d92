// Package preview binds local file selections to preview affordances.
// Reference images are decoded into a downscaled data URL; videos only show
// their file name. No network I/O happens here.
package preview

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fpang/missing-person-client/internal/media"
	"github.com/fpang/missing-person-client/internal/view"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// cacheTTL bounds how long a decoded preview is reused for an unchanged file.
const cacheTTL = 10 * time.Minute

// Binder writes previews into a view.State.
type Binder struct {
	state  *view.State
	maxDim int
	cache  *cache.Cache

	imageGen atomic.Uint64
	videoGen atomic.Uint64
}

// NewBinder creates a Binder whose image previews fit in maxDim pixels.
func NewBinder(state *view.State, maxDim int) *Binder {
	if maxDim <= 0 {
		maxDim = media.DefaultThumbnailMaxDimension
	}
	return &Binder{
		state:  state,
		maxDim: maxDim,
		// No janitor goroutine; expired entries are dropped on insert.
		cache: cache.New(cacheTTL, 0),
	}
}

// BindImage selects path as the registration reference image and renders
// its preview. An empty path clears the selection and restores the
// placeholder. If a newer selection is made while this one is decoding, this
// one is discarded.
func (b *Binder) BindImage(ctx context.Context, path string) error {
	gen := b.imageGen.Add(1)

	if path == "" {
		b.applyImage(gen, "", view.Preview{})
		return nil
	}

	p, err := b.decodeImage(path)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Reference image preview failed")
		b.applyImage(gen, "", view.Preview{})
		return fmt.Errorf("preview %s: %w", filepath.Base(path), err)
	}

	b.applyImage(gen, path, p)
	return nil
}

// BindVideo selects path as the detection video and shows its file name.
// An empty path clears the selection.
func (b *Binder) BindVideo(ctx context.Context, path string) error {
	gen := b.videoGen.Add(1)

	if path == "" {
		b.applyVideo(gen, "", view.Preview{})
		return nil
	}

	f, err := media.Stat(path)
	if err == nil && !media.IsVideo(filepath.Ext(path)) {
		err = fmt.Errorf("unsupported video type %q", filepath.Ext(path))
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Video selection rejected")
		b.applyVideo(gen, "", view.Preview{})
		return fmt.Errorf("select %s: %w", filepath.Base(path), err)
	}

	b.applyVideo(gen, path, view.Preview{
		Visible:  true,
		FileName: f.Name,
		MIMEType: f.MIMEType,
		Size:     f.Size,
	})
	return nil
}

func (b *Binder) applyImage(gen uint64, path string, p view.Preview) {
	b.state.Update(func(s *view.Snapshot) {
		if b.imageGen.Load() != gen {
			return
		}
		s.Register.ReferenceImage = path
		s.Register.ImagePreview = p
	})
}

func (b *Binder) applyVideo(gen uint64, path string, p view.Preview) {
	b.state.Update(func(s *view.Snapshot) {
		if b.videoGen.Load() != gen {
			return
		}
		s.Detect.Video = path
		s.Detect.VideoPreview = p
	})
}

// decodeImage builds the preview for an image file, reusing a cached preview
// when the file's size and modification time are unchanged.
func (b *Binder) decodeImage(path string) (view.Preview, error) {
	info, err := os.Stat(path)
	if err != nil {
		return view.Preview{}, err
	}
	if !media.IsImage(filepath.Ext(path)) {
		return view.Preview{}, fmt.Errorf("unsupported image type %q", filepath.Ext(path))
	}

	key := path + "|" + strconv.FormatInt(info.Size(), 10) + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10) +
		"|" + strconv.Itoa(b.maxDim)
	if cached, ok := b.cache.Get(key); ok {
		log.Debug().Str("path", path).Msg("Preview cache hit")
		return cached.(view.Preview), nil
	}

	thumb, err := media.GenerateThumbnail(path, b.maxDim)
	if err != nil {
		return view.Preview{}, err
	}

	p := view.Preview{
		Visible:  true,
		FileName: filepath.Base(path),
		MIMEType: media.MIMEType(path),
		Size:     info.Size(),
		DataURL:  DataURL(thumb.MIMEType, thumb.Data),
		Width:    thumb.SourceWidth,
		Height:   thumb.SourceHeight,
	}

	if meta, err := media.ExtractImageMetadata(path); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("No EXIF metadata for preview")
	} else {
		if meta.HasDate {
			p.DateTaken = meta.DateTaken
		}
		p.Camera = meta.Camera()
	}

	b.cache.DeleteExpired()
	b.cache.SetDefault(key, p)
	return p, nil
}

// DataURL encodes data as an RFC 2397 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
