// Package register submits the registration form.
package register

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/fpang/missing-person-client/internal/api"
	"github.com/fpang/missing-person-client/internal/view"
	"github.com/rs/zerolog/log"
)

// Notification messages.
const (
	SuccessMessage = "Person registered successfully!"
	FailedMessage  = "Failed to register person"
)

// ErrBusy is returned when a registration is already in flight.
var ErrBusy = errors.New("registration already in progress")

// Registrar creates a person on the service.
type Registrar interface {
	RegisterPerson(ctx context.Context, req api.RegisterRequest) (*api.Person, error)
}

// Reloader refreshes the person selection after a successful registration.
type Reloader interface {
	Load(ctx context.Context) ([]api.Person, error)
}

type notifier interface {
	Notify(message string, kind view.NotificationKind)
}

// Submitter sends the registration form held in the view state.
type Submitter struct {
	client   Registrar
	persons  Reloader
	state    *view.State
	notifier notifier
	inFlight atomic.Bool
}

// NewSubmitter creates a Submitter. persons may be nil.
func NewSubmitter(client Registrar, persons Reloader, state *view.State, n notifier) *Submitter {
	return &Submitter{client: client, persons: persons, state: state, notifier: n}
}

// Submit sends the current form. While it runs the submit control is
// disabled and shows the busy label; both are restored whatever the outcome.
// On success the form and its preview are cleared and the person list is
// reloaded. On failure the form is left intact.
func (s *Submitter) Submit(ctx context.Context) (*api.Person, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.inFlight.Store(false)

	var form view.RegisterForm
	s.state.Update(func(snap *view.Snapshot) {
		form = snap.Register
		snap.Register.SubmitDisabled = true
		snap.Register.SubmitLabel = view.RegisterBusyLabel
	})
	defer s.state.Update(func(snap *view.Snapshot) {
		snap.Register.SubmitDisabled = false
		snap.Register.SubmitLabel = form.SubmitLabel
	})

	req := api.RegisterRequest{
		Name:           form.Name,
		Description:    form.Description,
		ReferenceImage: api.Upload{Path: form.ReferenceImage},
	}
	if form.Video != "" {
		req.Video = &api.Upload{Path: form.Video}
	}

	person, err := s.client.RegisterPerson(ctx, req)
	if err != nil {
		log.Error().Err(err).
			Str("kind", api.KindOf(err).String()).
			Str("name", form.Name).
			Msg("Error registering person")
		s.notifier.Notify(FailedMessage, view.KindError)
		return nil, err
	}

	log.Info().Str("id", string(person.ID)).Str("name", person.Name).Msg("Person registered")
	s.notifier.Notify(SuccessMessage, view.KindSuccess)
	s.state.Update(func(snap *view.Snapshot) {
		snap.Register.Name = ""
		snap.Register.Description = ""
		snap.Register.ReferenceImage = ""
		snap.Register.Video = ""
		snap.Register.ImagePreview = view.Preview{}
	})

	if s.persons != nil {
		// The loader reports its own failures.
		_, _ = s.persons.Load(ctx)
	}
	return person, nil
}
