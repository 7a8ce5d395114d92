// Package render turns a view snapshot into a render description. Build is
// pure: the same snapshot always yields the same description, which keeps
// presentation out of the components that drive the state.
package render

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/missing-person-client/internal/api"
	"github.com/fpang/missing-person-client/internal/view"
)

// sectionLabels are the navigation labels.
var sectionLabels = map[view.Section]string{
	view.SectionRegister:   "Register Person",
	view.SectionDetect:     "Detect in Video",
	view.SectionDetections: "Detections",
	view.SectionReports:    "Reports",
}

// NavItem is one navigation affordance.
type NavItem struct {
	Section view.Section
	Label   string
	Active  bool
}

// Notice is the visible notification.
type Notice struct {
	Text string
	Kind view.NotificationKind
}

// PreviewView is a file preview, or the placeholder when Placeholder is set.
type PreviewView struct {
	Placeholder bool
	FileName    string
	ImageURL    string
	Details     string
}

// RegisterView is the registration form.
type RegisterView struct {
	Name          string
	Description   string
	Image         PreviewView
	Video         string
	SubmitLabel   string
	SubmitEnabled bool
}

// ProgressView is the progress bar.
type ProgressView struct {
	Percent int
	Width   string
}

// ResultView is the detection result. NotFound results only carry Title and
// Message.
type ResultView struct {
	Detected    bool
	Title       string
	Message     string
	FrameURL    string
	Confidence  string
	DetectionID string
	DownloadURL string
}

// DetectView is the detection form.
type DetectView struct {
	Options       []view.Option
	Selected      string
	Video         PreviewView
	SubmitEnabled bool
	Progress      *ProgressView
	Result        *ResultView
}

// Card is one detection card.
type Card struct {
	ImageURL   string
	PersonName string
	Type       string
	DetectedAt string
	Confidence string
}

// DetectionsView is the detections panel. Message is set instead of Cards
// for the loading and empty states.
type DetectionsView struct {
	Message string
	Cards   []Card
}

// Screen is the full render description.
type Screen struct {
	Nav          []NavItem
	Active       view.Section
	Notification *Notice
	Register     RegisterView
	Detect       DetectView
	Detections   DetectionsView
	Reports      string
}

// Options tunes formatting.
type Options struct {
	// MediaURL resolves a media path returned by the service. Nil leaves
	// paths unchanged.
	MediaURL func(string) string
	// Location is used for timestamps. Nil means time.Local.
	Location *time.Location
}

// Build returns the render description of s.
func Build(s view.Snapshot, opts Options) Screen {
	resolve := opts.MediaURL
	if resolve == nil {
		resolve = func(p string) string { return p }
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	scr := Screen{Active: s.Active, Reports: s.Reports.Message}

	for _, sec := range view.Sections {
		scr.Nav = append(scr.Nav, NavItem{Section: sec, Label: sectionLabels[sec], Active: sec == s.Active})
	}

	if s.Notification.Visible {
		scr.Notification = &Notice{Text: s.Notification.Message, Kind: s.Notification.Kind}
	}

	scr.Register = RegisterView{
		Name:          s.Register.Name,
		Description:   s.Register.Description,
		Image:         previewView(s.Register.ImagePreview, "Click to upload reference image", loc),
		Video:         s.Register.Video,
		SubmitLabel:   s.Register.SubmitLabel,
		SubmitEnabled: !s.Register.SubmitDisabled,
	}

	scr.Detect = DetectView{
		Options:       s.PersonOptions,
		Selected:      s.Detect.PersonID,
		Video:         previewView(s.Detect.VideoPreview, "Click to upload video", loc),
		SubmitEnabled: !s.Detect.SubmitDisabled,
	}
	if s.Detect.ProgressVisible {
		scr.Detect.Progress = &ProgressView{
			Percent: s.Detect.Progress,
			Width:   fmt.Sprintf("%d%%", s.Detect.Progress),
		}
	}
	if s.Detect.ResultVisible && s.Detect.Result != nil {
		scr.Detect.Result = resultView(*s.Detect.Result, resolve)
	}

	scr.Detections = DetectionsView{Message: s.Detections.Message}
	for _, c := range s.Detections.Cards {
		scr.Detections.Cards = append(scr.Detections.Cards, Card{
			ImageURL:   resolve(c.FrameURL),
			PersonName: c.PersonName,
			Type:       c.DetectionType,
			DetectedAt: FormatTimestamp(c.DetectedAt, loc),
			Confidence: CardConfidence(c.ConfidenceScore),
		})
	}

	return scr
}

func previewView(p view.Preview, placeholder string, loc *time.Location) PreviewView {
	if !p.Visible {
		return PreviewView{Placeholder: true, FileName: placeholder}
	}
	pv := PreviewView{FileName: p.FileName, ImageURL: p.DataURL}
	switch {
	case p.Width > 0 && !p.DateTaken.IsZero():
		pv.Details = fmt.Sprintf("%dx%d, taken %s", p.Width, p.Height, p.DateTaken.In(loc).Format(localeLayout))
	case p.Width > 0:
		pv.Details = fmt.Sprintf("%dx%d", p.Width, p.Height)
	}
	if p.Camera != "" {
		if pv.Details != "" {
			pv.Details += ", "
		}
		pv.Details += p.Camera
	}
	return pv
}

func resultView(r view.DetectResult, resolve func(string) string) *ResultView {
	if !r.Detected {
		return &ResultView{Title: "Person Not Found", Message: r.Message}
	}
	return &ResultView{
		Detected:    true,
		Title:       "Person Detected!",
		Message:     r.Message,
		FrameURL:    resolve(r.FrameURL),
		Confidence:  ResultConfidence(r.Confidence),
		DetectionID: r.DetectionID,
		DownloadURL: resolve(r.VideoURL),
	}
}

// ResultConfidence formats a detection confidence in [0,1] as a percentage
// with two decimals, e.g. 0.873 as "87.30%".
func ResultConfidence(c float64) string {
	return toFixed(c*100, 2) + "%"
}

// CardConfidence formats a detection card's confidence badge, e.g. 0.91 as
// "91.0% Match".
func CardConfidence(c float64) string {
	return toFixed(c*100, 1) + "% Match"
}

// toFixed formats x with the given number of decimals, rounding exact ties
// away from zero as browsers do. fmt rounds ties to even, which would show
// 56.25 as "56.2".
func toFixed(x float64, digits int) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', digits, 64)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	v := new(big.Float).SetPrec(256).SetFloat64(math.Abs(x))
	v.Mul(v, new(big.Float).SetInt(scale))
	v.Add(v, big.NewFloat(0.5))
	n, _ := v.Int(nil)

	s := n.String()
	if len(s) <= digits {
		s = strings.Repeat("0", digits-len(s)+1) + s
	}
	if digits > 0 {
		s = s[:len(s)-digits] + "." + s[len(s)-digits:]
	}
	if x < 0 && n.Sign() != 0 {
		s = "-" + s
	}
	return s
}

// localeLayout renders like an en-US locale string.
const localeLayout = "1/2/2006, 3:04:05 PM"

// FormatTimestamp renders a detected_at value in loc. Unparseable values
// render as "Invalid Date".
func FormatTimestamp(raw string, loc *time.Location) string {
	t, err := api.Detection{DetectedAt: raw}.DetectedTime()
	if err != nil {
		return "Invalid Date"
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(localeLayout)
}
