package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is an opaque server-assigned identifier. The server may encode it as a
// JSON string or number; both decode to the same textual form.
type ID string

// UnmarshalJSON accepts both string and numeric identifiers.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Person is a registered missing person.
type Person struct {
	ID                ID     `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	ReferenceImageURL string `json:"reference_image_url,omitempty"`
	Status            string `json:"status,omitempty"`
}

// Detection is one server-produced match of a person in a video frame.
type Detection struct {
	ID              ID      `json:"id,omitempty"`
	MissingPersonID ID      `json:"missing_person_id,omitempty"`
	DetectionType   string  `json:"detection_type"`
	ConfidenceScore float64 `json:"confidence_score"`
	DetectedAt      string  `json:"detected_at"`
	FrameURL        string  `json:"frame_url"`
	VideoURL        string  `json:"video_url,omitempty"`
}

// timestampLayouts are the forms detected_at has been seen in.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
}

// DetectedTime parses DetectedAt. Timestamps without a zone are taken as UTC.
func (d Detection) DetectedTime() (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, d.DetectedAt); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", d.DetectedAt)
}

// DetectResult is the outcome of a video detection request.
type DetectResult struct {
	Detected    bool    `json:"detected"`
	Message     string  `json:"message,omitempty"`
	DetectionID ID      `json:"detection_id"`
	Confidence  float64 `json:"confidence"`
	FrameURL    string  `json:"frame_url"`
	VideoURL    string  `json:"video_url"`
}

// Health is the server's health probe response.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Upload names a local file attached to a multipart request.
type Upload struct {
	Path string
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	Name           string
	Description    string
	ReferenceImage Upload
	Video          *Upload
}

// DetectRequest carries the detection form.
type DetectRequest struct {
	PersonID ID
	Video    Upload
}

// --- wire envelopes ---

type listPersonsResponse struct {
	Success bool     `json:"success"`
	Data    []Person `json:"data"`
	Message string   `json:"message,omitempty"`
}

type registerResponse struct {
	Success bool    `json:"success"`
	Data    *Person `json:"data,omitempty"`
	Message string  `json:"message,omitempty"`
}

type detectResponse struct {
	Success  *bool  `json:"success,omitempty"`
	Detected bool   `json:"detected"`
	Message  string `json:"message,omitempty"`
	Data     *struct {
		DetectionID ID      `json:"detection_id"`
		Confidence  float64 `json:"confidence"`
		FrameURL    string  `json:"frame_url"`
		VideoURL    string  `json:"video_url"`
	} `json:"data,omitempty"`
}

type listDetectionsResponse struct {
	Success bool        `json:"success"`
	Data    []Detection `json:"data"`
	Message string      `json:"message,omitempty"`
}

// errorBody covers both FastAPI's {"detail": ...} and the {"message": ...} envelope.
type errorBody struct {
	Detail  json.RawMessage `json:"detail,omitempty"`
	Message string          `json:"message,omitempty"`
}
