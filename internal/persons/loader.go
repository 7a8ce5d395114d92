// Package persons loads the registered persons into the selection control.
package persons

import (
	"context"
	"sync/atomic"

	"github.com/fpang/missing-person-client/internal/api"
	"github.com/fpang/missing-person-client/internal/view"
	"github.com/rs/zerolog/log"
)

// FailedMessage is shown when the person list cannot be loaded.
const FailedMessage = "Failed to load missing persons"

// Lister fetches the person collection.
type Lister interface {
	ListPersons(ctx context.Context) ([]api.Person, error)
}

type notifier interface {
	Notify(message string, kind view.NotificationKind)
}

// Loader replaces the selection options with the current person list.
type Loader struct {
	client   Lister
	state    *view.State
	notifier notifier
	gen      atomic.Uint64
}

// NewLoader creates a Loader.
func NewLoader(client Lister, state *view.State, n notifier) *Loader {
	return &Loader{client: client, state: state, notifier: n}
}

// Options builds the selection options for persons: a leading placeholder
// and one entry per person in input order, or a single "none registered"
// entry when persons is empty.
func Options(persons []api.Person) []view.Option {
	if len(persons) == 0 {
		return []view.Option{{Value: "", Label: view.NoPersonsLabel}}
	}
	opts := make([]view.Option, 0, len(persons)+1)
	opts = append(opts, view.Option{Value: "", Label: view.SelectPlaceholder})
	for _, p := range persons {
		opts = append(opts, view.Option{Value: string(p.ID), Label: p.Name})
	}
	return opts
}

// Load fetches the persons and replaces the options. On failure the previous
// options are kept and an error notification is shown. When loads overlap,
// only the most recently started one may write the options.
func (l *Loader) Load(ctx context.Context) ([]api.Person, error) {
	gen := l.gen.Add(1)

	persons, err := l.client.ListPersons(ctx)
	if err != nil {
		if l.gen.Load() != gen {
			log.Debug().Err(err).Msg("Superseded person load failed")
			return nil, err
		}
		log.Error().Err(err).Str("kind", api.KindOf(err).String()).Msg("Error loading persons")
		l.notifier.Notify(FailedMessage, view.KindError)
		return nil, err
	}

	opts := Options(persons)
	l.state.Update(func(s *view.Snapshot) {
		if l.gen.Load() != gen {
			return
		}
		s.PersonOptions = opts
		if !hasValue(opts, s.Detect.PersonID) {
			s.Detect.PersonID = ""
		}
	})

	log.Debug().Int("count", len(persons)).Msg("Person options replaced")
	return persons, nil
}

func hasValue(opts []view.Option, value string) bool {
	if value == "" {
		return true
	}
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}
