// Package view holds the client's in-memory view state: which section is
// active, the current notification, the form and panel models. Components
// receive a *State and mutate it through Update; renderers read Snapshots.
//
// All mutation goes through one mutex so the state behaves as if driven by a
// single logical thread, whichever goroutine a network call completes on.
package view

import (
	"slices"
	"sync"
	"time"
)

// Section is one mutually exclusive top-level panel.
type Section string

const (
	SectionRegister   Section = "register"
	SectionDetect     Section = "detect"
	SectionDetections Section = "detections"
	SectionReports    Section = "reports"
)

// Sections lists every section in navigation order.
var Sections = []Section{SectionRegister, SectionDetect, SectionDetections, SectionReports}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	return slices.Contains(Sections, s)
}

// NotificationKind is the category of a notification.
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
	KindWarning NotificationKind = "warning"
)

// Notification is the single transient message slot.
type Notification struct {
	Message string
	Kind    NotificationKind
	Visible bool
	Seq     uint64
}

// Option is one entry of the person selection control.
type Option struct {
	Value string
	Label string
}

// Placeholder labels of the person selection control.
const (
	SelectPlaceholder = "Select a person..."
	NoPersonsLabel    = "No persons registered yet"
)

// Preview is the bound preview of a locally selected file. When Visible is
// false the placeholder affordance is shown instead.
type Preview struct {
	Visible   bool
	FileName  string
	MIMEType  string
	Size      int64
	DataURL   string
	Width     int
	Height    int
	DateTaken time.Time
	Camera    string
}

// RegisterForm is the registration form model.
type RegisterForm struct {
	Name           string
	Description    string
	ReferenceImage string
	Video          string
	ImagePreview   Preview
	SubmitDisabled bool
	SubmitLabel    string
}

// Default submit labels.
const (
	RegisterLabel     = "Register Person"
	RegisterBusyLabel = "Registering..."
)

// DetectResult is the result affordance of the detect form.
type DetectResult struct {
	Detected    bool
	Message     string
	DetectionID string
	Confidence  float64
	FrameURL    string
	VideoURL    string
}

// DetectForm is the detection form model.
type DetectForm struct {
	PersonID        string
	Video           string
	VideoPreview    Preview
	SubmitDisabled  bool
	ProgressVisible bool
	Progress        int
	ResultVisible   bool
	Result          *DetectResult
}

// DetectionCard is one entry of the aggregated detection list.
type DetectionCard struct {
	DetectionID     string
	PersonID        string
	PersonName      string
	DetectionType   string
	ConfidenceScore float64
	DetectedAt      string
	FrameURL        string
	VideoURL        string
}

// DetectionsPanel is the aggregated detections section.
type DetectionsPanel struct {
	Loading bool
	Message string
	Cards   []DetectionCard
}

// Panel messages of the detections and reports sections.
const (
	LoadingDetections = "Loading detections..."
	NoDetections      = "No detections found"
	DetectionsFailed  = "Failed to load detections"
	ReportsComingSoon = "Reports feature coming soon..."
)

// ReportsPanel is the reports section.
type ReportsPanel struct {
	Message string
}

// Snapshot is a copy of the whole view state.
type Snapshot struct {
	Active        Section
	Notification  Notification
	PersonOptions []Option
	Register      RegisterForm
	Detect        DetectForm
	Detections    DetectionsPanel
	Reports       ReportsPanel
}

// clone deep-copies the slices and pointers of s.
func (s Snapshot) clone() Snapshot {
	s.PersonOptions = slices.Clone(s.PersonOptions)
	s.Detections.Cards = slices.Clone(s.Detections.Cards)
	if s.Detect.Result != nil {
		r := *s.Detect.Result
		s.Detect.Result = &r
	}
	return s
}

// Initial returns the state of a freshly loaded client.
func Initial() Snapshot {
	return Snapshot{
		Active:        SectionRegister,
		PersonOptions: []Option{{Value: "", Label: SelectPlaceholder}},
		Register:      RegisterForm{SubmitLabel: RegisterLabel},
	}
}

// Listener receives a snapshot after every update. Listeners are called in
// registration order, on the updating goroutine, and see updates in the order
// they were applied. A listener must not call Update.
type Listener func(Snapshot)

// State is the injectable application state.
type State struct {
	mu        sync.Mutex
	deliver   sync.Mutex
	snap      Snapshot
	listeners map[int]Listener
	nextID    int
}

// New returns a State starting from initial.
func New(initial Snapshot) *State {
	return &State{
		snap:      initial.clone(),
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Update applies fn under the state lock and then notifies listeners with
// the resulting snapshot. fn must not call back into s.
func (s *State) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	snap := s.snap.clone()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.deliver.Lock()
	s.mu.Unlock()
	defer s.deliver.Unlock()

	for _, l := range ls {
		l(snap)
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *State) Subscribe(l Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
