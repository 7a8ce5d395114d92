// Package app builds every client component from a Config around one shared
// view state.
package app

import (
	"context"
	"fmt"

	"github.com/fpang/missing-person-client/internal/aggregate"
	"github.com/fpang/missing-person-client/internal/api"
	"github.com/fpang/missing-person-client/internal/config"
	"github.com/fpang/missing-person-client/internal/detect"
	"github.com/fpang/missing-person-client/internal/notify"
	"github.com/fpang/missing-person-client/internal/persons"
	"github.com/fpang/missing-person-client/internal/preview"
	"github.com/fpang/missing-person-client/internal/register"
	"github.com/fpang/missing-person-client/internal/render"
	"github.com/fpang/missing-person-client/internal/router"
	"github.com/fpang/missing-person-client/internal/view"
	"github.com/rs/zerolog/log"
)

// App is a fully wired client.
type App struct {
	Config     *config.Config
	Client     *api.Client
	State      *view.State
	Notifier   *notify.Notifier
	Router     *router.Router
	Persons    *persons.Loader
	Preview    *preview.Binder
	Register   *register.Submitter
	Detect     *detect.Submitter
	Aggregator *aggregate.Aggregator
}

// New wires the components. Extra client options are applied after the
// configured ones.
func New(cfg *config.Config, opts ...api.Option) (*App, error) {
	clientOpts := []api.Option{api.WithTimeout(cfg.API.Timeout)}
	if cfg.API.Token != "" {
		clientOpts = append(clientOpts, api.WithToken(cfg.API.Token))
	}
	clientOpts = append(clientOpts, opts...)

	client, err := api.NewClient(cfg.API.URL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	state := view.New(view.Initial())
	n := notify.New(state, cfg.Notify.Delay)
	loader := persons.NewLoader(client, state, n)

	a := &App{
		Config:   cfg,
		Client:   client,
		State:    state,
		Notifier: n,
		Router:   router.New(state),
		Persons:  loader,
		Preview:  preview.NewBinder(state, cfg.Preview.MaxDimension),
		Register: register.NewSubmitter(client, loader, state, n),
		Detect: detect.NewSubmitter(client, state, n, detect.Config{
			Interval:    cfg.Progress.Interval,
			Step:        cfg.Progress.Step,
			Ceiling:     cfg.Progress.Ceiling,
			RevealDelay: cfg.Progress.RevealDelay,
		}),
		Aggregator: aggregate.New(client, state, aggregate.Config{
			Concurrency: cfg.Aggregate.Concurrency,
			Rate:        cfg.Aggregate.Rate,
			OnError:     aggregate.Policy(cfg.Aggregate.OnError),
		}),
	}

	a.Router.OnEnter(view.SectionDetections, func(ctx context.Context) {
		// Failures are already on the panel.
		_, _ = a.Aggregator.Load(ctx)
	})
	a.Router.OnEnter(view.SectionReports, router.NewReportsLoader(state).Load)

	return a, nil
}

// Start loads the person selection, as on first page load.
func (a *App) Start(ctx context.Context) {
	if _, err := a.Persons.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial person load failed")
	}
}

// Screen renders the current state.
func (a *App) Screen() render.Screen {
	return render.Build(a.State.Snapshot(), render.Options{MediaURL: a.Client.MediaURL})
}

// Close waits for section loads and stops the notification timer.
func (a *App) Close() {
	a.Router.Wait()
	a.Notifier.Close()
}
