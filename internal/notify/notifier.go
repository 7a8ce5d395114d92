// Package notify shows transient user-facing messages. There is a single
// message slot: a new notification replaces the current one, and each
// notification hides itself after a fixed delay unless it has already been
// replaced.
package notify

import (
	"sync"
	"time"

	"github.com/fpang/missing-person-client/internal/view"
	"github.com/rs/zerolog/log"
)

// DefaultDelay is how long a notification stays visible.
const DefaultDelay = 4 * time.Second

// Notifier writes notifications into a view.State.
type Notifier struct {
	state *view.State
	delay time.Duration

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	closed bool
}

// New creates a Notifier. A non-positive delay selects DefaultDelay.
func New(state *view.State, delay time.Duration) *Notifier {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Notifier{state: state, delay: delay}
}

// Notify shows message with the given kind, replacing whatever is visible,
// and schedules it to hide after the configured delay.
func (n *Notifier) Notify(message string, kind view.NotificationKind) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.seq++
	seq := n.seq
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}

	n.state.Update(func(s *view.Snapshot) {
		s.Notification = view.Notification{
			Message: message,
			Kind:    kind,
			Visible: true,
			Seq:     seq,
		}
	})

	log.Debug().Str("kind", string(kind)).Str("message", message).Uint64("seq", seq).Msg("Notification shown")

	if n.closed {
		return
	}
	n.timer = time.AfterFunc(n.delay, func() { n.hide(seq) })
}

// hide clears the notification if it is still the one identified by seq.
// Hiding an already hidden or replaced notification is a no-op.
func (n *Notifier) hide(seq uint64) {
	n.state.Update(func(s *view.Snapshot) {
		if s.Notification.Seq == seq {
			s.Notification.Visible = false
		}
	})
}

// Close cancels the pending hide timer. Later notifications stay visible
// until replaced.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
