// Package detect submits a video for detection and drives the cosmetic
// progress indicator while the request is outstanding.
//
// Two tasks run per submission: a ticker that raises the progress value
// towards a ceiling, and the network call. When the call settles the ticker
// is cancelled and joined before anything else touches the view, so the
// progress value only reaches 100% through the explicit post-settlement snap.
package detect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fpang/missing-person-client/internal/api"
	"github.com/fpang/missing-person-client/internal/view"
	"github.com/rs/zerolog/log"
)

// Notification and panel messages.
const (
	DetectedMessage  = "Person detected in video!"
	NotFoundMessage  = "Person not found in video"
	FailedMessage    = "Detection failed"
	NotDetectedText  = "The person was not detected in the uploaded video."
	progressComplete = 100
)

// ErrBusy is returned when a detection is already in flight.
var ErrBusy = errors.New("detection already in progress")

// Config tunes the cosmetic progress indicator.
type Config struct {
	Interval    time.Duration // tick period
	Step        int           // percentage points per tick
	Ceiling     int           // highest value reachable by ticking
	RevealDelay time.Duration // pause at 100% before the result is shown
}

// DefaultConfig returns the standard progress timings.
func DefaultConfig() Config {
	return Config{
		Interval:    500 * time.Millisecond,
		Step:        5,
		Ceiling:     90,
		RevealDelay: 500 * time.Millisecond,
	}
}

// Detector runs a detection on the service.
type Detector interface {
	DetectVideo(ctx context.Context, req api.DetectRequest) (*api.DetectResult, error)
}

type notifier interface {
	Notify(message string, kind view.NotificationKind)
}

// Submitter sends the detection form held in the view state.
type Submitter struct {
	client   Detector
	state    *view.State
	notifier notifier
	cfg      Config
	inFlight atomic.Bool
}

// NewSubmitter creates a Submitter. Zero fields of cfg take their defaults.
func NewSubmitter(client Detector, state *view.State, n notifier, cfg Config) *Submitter {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Step <= 0 {
		cfg.Step = def.Step
	}
	if cfg.Ceiling <= 0 || cfg.Ceiling >= progressComplete {
		cfg.Ceiling = def.Ceiling
	}
	if cfg.RevealDelay < 0 {
		cfg.RevealDelay = def.RevealDelay
	}
	return &Submitter{client: client, state: state, notifier: n, cfg: cfg}
}

// Submit sends the selected person and video. The submit control is
// re-enabled on every outcome. A "not found" answer is returned without
// error and raises a warning notification.
func (s *Submitter) Submit(ctx context.Context) (*api.DetectResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.inFlight.Store(false)

	var form view.DetectForm
	s.state.Update(func(snap *view.Snapshot) {
		form = snap.Detect
		snap.Detect.SubmitDisabled = true
		snap.Detect.ProgressVisible = true
		snap.Detect.ResultVisible = false
		snap.Detect.Progress = 0
	})
	defer s.state.Update(func(snap *view.Snapshot) {
		snap.Detect.SubmitDisabled = false
	})

	tickCtx, stopTicker := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go s.tick(tickCtx, &wg)

	start := time.Now()
	res, err := s.client.DetectVideo(ctx, api.DetectRequest{
		PersonID: api.ID(form.PersonID),
		Video:    api.Upload{Path: form.Video},
	})

	stopTicker()
	wg.Wait()

	if err != nil {
		log.Error().Err(err).
			Str("kind", api.KindOf(err).String()).
			Str("personId", form.PersonID).
			Dur("elapsed", time.Since(start)).
			Msg("Error detecting person in video")
		s.state.Update(func(snap *view.Snapshot) {
			snap.Detect.ProgressVisible = false
			snap.Detect.Progress = 0
		})
		s.notifier.Notify(FailedMessage, view.KindError)
		return nil, err
	}

	s.state.Update(func(snap *view.Snapshot) {
		snap.Detect.Progress = progressComplete
	})

	s.pause(ctx)

	result := &view.DetectResult{
		Detected:    res.Detected,
		Message:     res.Message,
		DetectionID: string(res.DetectionID),
		Confidence:  res.Confidence,
		FrameURL:    res.FrameURL,
		VideoURL:    res.VideoURL,
	}
	if !res.Detected && result.Message == "" {
		result.Message = NotDetectedText
	}
	s.state.Update(func(snap *view.Snapshot) {
		snap.Detect.ProgressVisible = false
		snap.Detect.ResultVisible = true
		snap.Detect.Result = result
	})

	if res.Detected {
		log.Info().
			Str("personId", form.PersonID).
			Str("detectionId", string(res.DetectionID)).
			Float64("confidence", res.Confidence).
			Dur("elapsed", time.Since(start)).
			Msg("Person detected")
		s.notifier.Notify(DetectedMessage, view.KindSuccess)
	} else {
		log.Info().Str("personId", form.PersonID).Dur("elapsed", time.Since(start)).Msg("Person not found")
		s.notifier.Notify(NotFoundMessage, view.KindWarning)
	}

	s.state.Update(func(snap *view.Snapshot) {
		snap.Detect.Progress = 0
	})
	return res, nil
}

// tick raises the progress value by Step every Interval, clamped at Ceiling,
// until ctx is done.
func (s *Submitter) tick(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.state.Update(func(snap *view.Snapshot) {
				snap.Detect.Progress = min(snap.Detect.Progress+s.cfg.Step, s.cfg.Ceiling)
			})
		}
	}
}

// pause holds the completed progress on screen for RevealDelay. A canceled
// ctx cuts the pause short.
func (s *Submitter) pause(ctx context.Context) {
	if s.cfg.RevealDelay == 0 {
		return
	}
	t := time.NewTimer(s.cfg.RevealDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
