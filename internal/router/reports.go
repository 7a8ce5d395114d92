package router

import (
	"context"

	"github.com/fpang/missing-person-client/internal/view"
)

// ReportsLoader fills the reports section. The service has no reports
// endpoint yet, so it only shows a placeholder.
type ReportsLoader struct {
	state *view.State
}

// NewReportsLoader creates a ReportsLoader over state.
func NewReportsLoader(state *view.State) *ReportsLoader {
	return &ReportsLoader{state: state}
}

// Load shows the reports placeholder.
func (l *ReportsLoader) Load(ctx context.Context) {
	l.state.Update(func(s *view.Snapshot) {
		s.Reports.Message = view.ReportsComingSoon
	})
}
