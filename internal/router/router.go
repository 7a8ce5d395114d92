// Package router switches the active section and triggers the data loads
// tied to entering a section.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/fpang/missing-person-client/internal/view"
	"github.com/rs/zerolog/log"
)

// EnterFunc runs when its section becomes active. It runs on its own
// goroutine and must report failures through the view state itself.
type EnterFunc func(ctx context.Context)

// Router owns the active-section switch.
type Router struct {
	state *view.State

	mu      sync.Mutex
	onEnter map[view.Section]EnterFunc
	wg      sync.WaitGroup
}

// New creates a Router over state.
func New(state *view.State) *Router {
	return &Router{
		state:   state,
		onEnter: make(map[view.Section]EnterFunc),
	}
}

// OnEnter registers fn to run every time section is activated.
func (r *Router) OnEnter(section view.Section, fn EnterFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnter[section] = fn
}

// Activate makes section the only active section. The switch itself is
// synchronous; any load tied to the section starts in the background and
// does not delay the return.
func (r *Router) Activate(ctx context.Context, section view.Section) error {
	if !section.Valid() {
		return fmt.Errorf("unknown section %q", section)
	}

	r.state.Update(func(s *view.Snapshot) {
		s.Active = section
	})
	log.Debug().Str("section", string(section)).Msg("Section activated")

	r.mu.Lock()
	fn := r.onEnter[section]
	r.mu.Unlock()
	if fn == nil {
		return nil
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(ctx)
	}()
	return nil
}

// Wait blocks until every load started by Activate has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}
