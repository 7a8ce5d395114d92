// Package aggregate builds the detections panel: the detection histories of
// every registered person, concatenated in person order and annotated with
// the person's name.
package aggregate

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fpang/missing-person-client/internal/api"
	"github.com/fpang/missing-person-client/internal/view"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Policy decides what a failed per-person fetch does to the aggregation.
type Policy string

const (
	// PolicyAbort fails the whole aggregation.
	PolicyAbort Policy = "abort"
	// PolicySkip drops that person's detections and continues.
	PolicySkip Policy = "skip"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyAbort || p == PolicySkip
}

// Config controls how per-person fetches are issued.
type Config struct {
	// Concurrency is the number of per-person fetches in flight. 1 fetches
	// sequentially.
	Concurrency int
	// Rate caps per-person fetches per second. 0 means unlimited.
	Rate    float64
	OnError Policy
}

// DefaultConfig fetches sequentially, unpaced, aborting on failure.
func DefaultConfig() Config {
	return Config{Concurrency: 1, OnError: PolicyAbort}
}

// Source reads persons and their detection histories.
type Source interface {
	ListPersons(ctx context.Context) ([]api.Person, error)
	ListDetections(ctx context.Context, personID api.ID) ([]api.Detection, error)
}

// Aggregator rebuilds the detections panel on every Load.
type Aggregator struct {
	client  Source
	state   *view.State
	cfg     Config
	limiter *rate.Limiter
	gen     atomic.Uint64
}

// New creates an Aggregator.
func New(client Source, state *view.State, cfg Config) *Aggregator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if !cfg.OnError.Valid() {
		cfg.OnError = PolicyAbort
	}
	a := &Aggregator{client: client, state: state, cfg: cfg}
	if cfg.Rate > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return a
}

// Load shows the loading placeholder, fetches every person's detections and
// renders the result. Only the most recently started Load writes the panel.
func (a *Aggregator) Load(ctx context.Context) ([]view.DetectionCard, error) {
	gen := a.gen.Add(1)
	a.apply(gen, view.DetectionsPanel{Loading: true, Message: view.LoadingDetections})

	persons, err := a.client.ListPersons(ctx)
	if err != nil {
		log.Error().Err(err).Str("kind", api.KindOf(err).String()).Msg("Error loading persons for detections")
		msg := view.DetectionsFailed
		if api.KindOf(err) == api.KindApplication {
			// The service answered but reported no usable list.
			msg = view.NoDetections
		}
		a.apply(gen, view.DetectionsPanel{Message: msg})
		return nil, err
	}
	if len(persons) == 0 {
		a.apply(gen, view.DetectionsPanel{Message: view.NoDetections})
		return nil, nil
	}

	cards, err := a.Collect(ctx, persons)
	if err != nil {
		log.Error().Err(err).Str("kind", api.KindOf(err).String()).Msg("Error loading detections")
		a.apply(gen, view.DetectionsPanel{Message: view.DetectionsFailed})
		return nil, err
	}
	if len(cards) == 0 {
		a.apply(gen, view.DetectionsPanel{Message: view.NoDetections})
		return cards, nil
	}

	a.apply(gen, view.DetectionsPanel{Cards: cards})
	log.Debug().Int("persons", len(persons)).Int("detections", len(cards)).Msg("Detections aggregated")
	return cards, nil
}

// Collect fetches the detections of each person and returns them annotated,
// ordered by person then by server order. Fetches may overlap, but the result
// order is the same as a sequential walk.
func (a *Aggregator) Collect(ctx context.Context, persons []api.Person) ([]view.DetectionCard, error) {
	results := make([][]view.DetectionCard, len(persons))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for i, p := range persons {
		g.Go(func() error {
			if a.limiter != nil {
				if err := a.limiter.Wait(gctx); err != nil {
					return fmt.Errorf("detections for %s: %w", p.ID, err)
				}
			}

			detections, err := a.client.ListDetections(gctx, p.ID)
			if err != nil {
				return a.personFailed(p, err)
			}
			results[i] = annotate(p, detections)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var cards []view.DetectionCard
	for _, r := range results {
		cards = append(cards, r...)
	}
	return cards, nil
}

// personFailed applies the error policy. An application-level failure means
// the service answered without a usable history, which contributes nothing
// under either policy.
func (a *Aggregator) personFailed(p api.Person, err error) error {
	kind := api.KindOf(err)
	if api.IsCanceled(err) {
		return err
	}
	if kind == api.KindApplication || a.cfg.OnError == PolicySkip {
		log.Warn().Err(err).
			Str("personId", string(p.ID)).
			Str("kind", kind.String()).
			Msg("Skipping detections for person")
		return nil
	}
	return fmt.Errorf("detections for %s: %w", p.ID, err)
}

func (a *Aggregator) apply(gen uint64, panel view.DetectionsPanel) {
	a.state.Update(func(s *view.Snapshot) {
		if a.gen.Load() != gen {
			return
		}
		s.Detections = panel
	})
}

func annotate(p api.Person, detections []api.Detection) []view.DetectionCard {
	if len(detections) == 0 {
		return nil
	}
	cards := make([]view.DetectionCard, 0, len(detections))
	for _, d := range detections {
		personID := string(d.MissingPersonID)
		if personID == "" {
			personID = string(p.ID)
		}
		cards = append(cards, view.DetectionCard{
			DetectionID:     string(d.ID),
			PersonID:        personID,
			PersonName:      p.Name,
			DetectionType:   d.DetectionType,
			ConfidenceScore: d.ConfidenceScore,
			DetectedAt:      d.DetectedAt,
			FrameURL:        d.FrameURL,
			VideoURL:        d.VideoURL,
		})
	}
	return cards
}
