package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fpang/missing-person-client/internal/view"
)

const barWidth = 30

// WriteText prints the active section of scr as plain text.
func WriteText(w io.Writer, scr Screen) error {
	var b strings.Builder

	for i, item := range scr.Nav {
		if i > 0 {
			b.WriteString("  ")
		}
		if item.Active {
			fmt.Fprintf(&b, "[%s]", item.Label)
		} else {
			fmt.Fprintf(&b, " %s ", item.Label)
		}
	}
	b.WriteString("\n")

	if scr.Notification != nil {
		fmt.Fprintf(&b, "%s %s\n", noticePrefix(scr.Notification.Kind), scr.Notification.Text)
	}
	b.WriteString("\n")

	switch scr.Active {
	case view.SectionRegister:
		writeRegister(&b, scr.Register)
	case view.SectionDetect:
		writeDetect(&b, scr.Detect)
	case view.SectionDetections:
		writeDetections(&b, scr.Detections)
	case view.SectionReports:
		fmt.Fprintf(&b, "%s\n", scr.Reports)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func noticePrefix(kind view.NotificationKind) string {
	switch kind {
	case view.KindSuccess:
		return "[ok]"
	case view.KindWarning:
		return "[!]"
	default:
		return "[x]"
	}
}

func writeRegister(b *strings.Builder, r RegisterView) {
	fmt.Fprintf(b, "Name:            %s\n", r.Name)
	fmt.Fprintf(b, "Description:     %s\n", r.Description)
	fmt.Fprintf(b, "Reference image: %s\n", previewLine(r.Image))
	if r.Video != "" {
		fmt.Fprintf(b, "Video:           %s\n", r.Video)
	}
	fmt.Fprintf(b, "\n%s\n", button(r.SubmitLabel, r.SubmitEnabled))
}

func writeDetect(b *strings.Builder, d DetectView) {
	label := ""
	for _, o := range d.Options {
		if o.Value == d.Selected {
			label = o.Label
			break
		}
	}
	fmt.Fprintf(b, "Person: %s\n", label)
	fmt.Fprintf(b, "Video:  %s\n", previewLine(d.Video))
	fmt.Fprintf(b, "\n%s\n", button("Start Detection", d.SubmitEnabled))

	if d.Progress != nil {
		filled := d.Progress.Percent * barWidth / 100
		fmt.Fprintf(b, "\n[%s%s] %s\n",
			strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled), d.Progress.Width)
	}

	if r := d.Result; r != nil {
		fmt.Fprintf(b, "\n%s\n", r.Title)
		if !r.Detected {
			fmt.Fprintf(b, "%s\n", r.Message)
			return
		}
		fmt.Fprintf(b, "Frame:        %s\n", r.FrameURL)
		fmt.Fprintf(b, "Confidence:   %s\n", r.Confidence)
		fmt.Fprintf(b, "Detection ID: %s\n", r.DetectionID)
		fmt.Fprintf(b, "Download:     %s\n", r.DownloadURL)
	}
}

func writeDetections(b *strings.Builder, d DetectionsView) {
	if len(d.Cards) == 0 {
		fmt.Fprintf(b, "%s\n", d.Message)
		return
	}
	for i, c := range d.Cards {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "%s  (%s)\n", c.PersonName, c.Confidence)
		fmt.Fprintf(b, "  Type:     %s\n", c.Type)
		fmt.Fprintf(b, "  Detected: %s\n", c.DetectedAt)
		fmt.Fprintf(b, "  Frame:    %s\n", c.ImageURL)
	}
}

func previewLine(p PreviewView) string {
	if p.Placeholder {
		return "(" + p.FileName + ")"
	}
	if p.Details != "" {
		return p.FileName + " [" + p.Details + "]"
	}
	return p.FileName
}

func button(label string, enabled bool) string {
	if enabled {
		return "<" + label + ">"
	}
	return "<" + label + " (disabled)>"
}
