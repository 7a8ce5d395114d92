package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fpang/missing-person-client/internal/metrics"
)

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func writeTempFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, size), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewClientValidatesURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:8000", false},
		{"https://api.example.com/", false},
		{"ftp://example.com", true},
		{"localhost:8000", true},
		{"http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := NewClient(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestListPersons(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/missing-persons" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		w.Write([]byte(`{"success":true,"data":[{"id":"p1","name":"Ada"},{"id":2,"name":"Grace"}]}`))
	}))
	defer server.Close()

	persons, err := newTestClient(t, server).ListPersons(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("expected 2 persons, got %d", len(persons))
	}
	if persons[0].ID != "p1" || persons[0].Name != "Ada" {
		t.Errorf("unexpected first person: %+v", persons[0])
	}
	if persons[1].ID != "2" {
		t.Errorf("expected numeric id decoded as \"2\", got %q", persons[1].ID)
	}
}

func TestListPersonsEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":null}`))
	}))
	defer server.Close()

	persons, err := newTestClient(t, server).ListPersons(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if persons == nil || len(persons) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", persons)
	}
}

func TestListPersonsErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantMsg  string
	}{
		{"failure flag", http.StatusOK, `{"success":false,"message":"db down"}`, KindApplication, "db down"},
		{"server error detail", http.StatusInternalServerError, `{"detail":"boom"}`, KindApplication, "boom"},
		{"malformed body", http.StatusOK, `<html>oops</html>`, KindDecode, "oops"},
		{"gateway html page", http.StatusBadGateway, `<html>Bad Gateway</html>`, KindDecode, "Bad Gateway"},
		{"empty error body", http.StatusServiceUnavailable, ``, KindDecode, "status 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server).ListPersons(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if KindOf(err) != tt.wantKind {
				t.Errorf("expected kind %s, got %s (%v)", tt.wantKind, KindOf(err), err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in error, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestListPersonsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, server)
	server.Close()

	_, err := client.ListPersons(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindTransport {
		t.Errorf("expected transport error, got %s", KindOf(err))
	}
}

func TestRegisterPerson(t *testing.T) {
	imagePath := writeTempFile(t, "face.jpg", 2<<20)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/missing-persons" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(4 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("name") != "Ada Lovelace" {
			t.Errorf("unexpected name: %q", r.FormValue("name"))
		}
		if r.FormValue("description") != "last seen at the station" {
			t.Errorf("unexpected description: %q", r.FormValue("description"))
		}
		file, header, err := r.FormFile("reference_image")
		if err != nil {
			t.Fatalf("missing reference_image: %v", err)
		}
		defer file.Close()
		if header.Filename != "face.jpg" {
			t.Errorf("unexpected filename: %s", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("unexpected part content type: %s", ct)
		}
		n, _ := io.Copy(io.Discard, file)
		if n != 2<<20 {
			t.Errorf("expected %d bytes, got %d", 2<<20, n)
		}
		if _, _, err := r.FormFile("video"); err == nil {
			t.Error("did not expect a video part")
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]string{"id": "p9", "name": "Ada Lovelace"},
		})
	}))
	defer server.Close()

	person, err := newTestClient(t, server).RegisterPerson(context.Background(), RegisterRequest{
		Name:           "  Ada Lovelace ",
		Description:    "last seen at the station",
		ReferenceImage: Upload{Path: imagePath},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if person.ID != "p9" {
		t.Errorf("expected id p9, got %q", person.ID)
	}
}

func TestRegisterPersonWithVideo(t *testing.T) {
	imagePath := writeTempFile(t, "face.png", 128)
	videoPath := writeTempFile(t, "walk.mp4", 512)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		_, header, err := r.FormFile("video")
		if err != nil {
			t.Fatalf("missing video part: %v", err)
		}
		if header.Header.Get("Content-Type") != "video/mp4" {
			t.Errorf("unexpected video content type: %s", header.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).RegisterPerson(context.Background(), RegisterRequest{
		Name:           "Grace",
		ReferenceImage: Upload{Path: imagePath},
		Video:          &Upload{Path: videoPath},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegisterPersonValidation(t *testing.T) {
	client := &Client{httpClient: http.DefaultClient, baseURL: "http://127.0.0.1:1"}

	tests := []struct {
		name string
		req  RegisterRequest
		want string
	}{
		{"blank name", RegisterRequest{Name: "  ", ReferenceImage: Upload{Path: "x.jpg"}}, "name is required"},
		{"no image", RegisterRequest{Name: "Ada"}, "reference image is required"},
		{"missing file", RegisterRequest{Name: "Ada", ReferenceImage: Upload{Path: filepath.Join(t.TempDir(), "nope.jpg")}}, "cannot read attachment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.RegisterPerson(context.Background(), tt.req)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
			if KindOf(err) != KindApplication {
				t.Errorf("expected application error, got %s", KindOf(err))
			}
		})
	}
}

func TestRegisterPersonFailureFlag(t *testing.T) {
	imagePath := writeTempFile(t, "face.jpg", 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).RegisterPerson(context.Background(), RegisterRequest{
		Name:           "Ada",
		ReferenceImage: Upload{Path: imagePath},
	})
	if err == nil || !strings.Contains(err.Error(), "Registration failed") {
		t.Errorf("expected registration failure, got %v", err)
	}
}

func TestDetectVideoDetected(t *testing.T) {
	videoPath := writeTempFile(t, "cctv.mp4", 4096)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/detect/video" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("missing_person_id") != "p1" {
			t.Errorf("unexpected person id: %q", r.FormValue("missing_person_id"))
		}
		if _, _, err := r.FormFile("video"); err != nil {
			t.Errorf("missing video part: %v", err)
		}
		w.Write([]byte(`{"success":true,"detected":true,"data":{"confidence":0.873,"detection_id":"d1","frame_url":"f.jpg","video_url":"v.mp4"}}`))
	}))
	defer server.Close()

	res, err := newTestClient(t, server).DetectVideo(context.Background(), DetectRequest{
		PersonID: "p1",
		Video:    Upload{Path: videoPath},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Detected || res.DetectionID != "d1" || res.Confidence != 0.873 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.FrameURL != "f.jpg" || res.VideoURL != "v.mp4" {
		t.Errorf("unexpected media urls: %+v", res)
	}
}

func TestDetectVideoNotFound(t *testing.T) {
	videoPath := writeTempFile(t, "cctv.mp4", 64)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"success":true,"detected":false,"message":"Person not found in video"}`))
	}))
	defer server.Close()

	res, err := newTestClient(t, server).DetectVideo(context.Background(), DetectRequest{
		PersonID: "p1",
		Video:    Upload{Path: videoPath},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Detected {
		t.Error("expected not detected")
	}
	if res.Message != "Person not found in video" {
		t.Errorf("unexpected message: %q", res.Message)
	}
}

func TestDetectVideoDetectedWithoutData(t *testing.T) {
	videoPath := writeTempFile(t, "cctv.mp4", 64)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"detected":true}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).DetectVideo(context.Background(), DetectRequest{
		PersonID: "p1",
		Video:    Upload{Path: videoPath},
	})
	if KindOf(err) != KindApplication {
		t.Errorf("expected application error, got %v", err)
	}
}

func TestDetectVideoValidation(t *testing.T) {
	client := &Client{httpClient: http.DefaultClient, baseURL: "http://127.0.0.1:1"}

	if _, err := client.DetectVideo(context.Background(), DetectRequest{Video: Upload{Path: "v.mp4"}}); err == nil ||
		!strings.Contains(err.Error(), "no person selected") {
		t.Errorf("expected missing person error, got %v", err)
	}
	if _, err := client.DetectVideo(context.Background(), DetectRequest{PersonID: "p1"}); err == nil ||
		!strings.Contains(err.Error(), "no video attached") {
		t.Errorf("expected missing video error, got %v", err)
	}
}

func TestListDetections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/detections/p 1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.RawPath != "" && r.URL.RawPath != "/api/detections/p%201" {
			t.Errorf("unexpected raw path: %s", r.URL.RawPath)
		}
		w.Write([]byte(`{"success":true,"data":[
			{"id":"d2","detection_type":"video","confidence_score":0.91,"detected_at":"2024-03-01T10:00:00+00:00","frame_url":"outputs/f2.jpg"},
			{"id":"d1","detection_type":"video","confidence_score":0.72,"detected_at":"2024-02-01T09:30:00.123456","frame_url":"outputs/f1.jpg"}
		]}`))
	}))
	defer server.Close()

	detections, err := newTestClient(t, server).ListDetections(context.Background(), "p 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detections) != 2 || detections[0].ID != "d2" || detections[1].ID != "d1" {
		t.Fatalf("unexpected detections: %+v", detections)
	}

	for _, d := range detections {
		if _, err := d.DetectedTime(); err != nil {
			t.Errorf("DetectedTime(%q): %v", d.DetectedAt, err)
		}
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"healthy","timestamp":"2024-01-01T00:00:00"}`))
	}))
	defer server.Close()

	h, err := newTestClient(t, server).Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Timestamp == "" {
		t.Error("expected timestamp")
	}
}

func TestTokenIsSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithHTTPClient(server.Client()), WithToken("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Health(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMediaURL(t *testing.T) {
	client, err := NewClient("http://api.local:8000/")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		ref  string
		want string
	}{
		{"outputs/frame.jpg", "http://api.local:8000/outputs/frame.jpg"},
		{"/outputs/frame.jpg", "http://api.local:8000/outputs/frame.jpg"},
		{"https://cdn.example.com/v.mp4", "https://cdn.example.com/v.mp4"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := client.MediaURL(tt.ref); got != tt.want {
			t.Errorf("MediaURL(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/outputs/v.mp4":
			w.Write([]byte("video-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"File not found"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), "outputs/v.mp4", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != int64(len("video-bytes")) || buf.String() != "video-bytes" {
		t.Errorf("unexpected download: n=%d body=%q", n, buf.String())
	}

	_, err = client.Download(context.Background(), "outputs/missing.mp4", io.Discard)
	if err == nil || !strings.Contains(err.Error(), "File not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestDownloadRecordsBytes(t *testing.T) {
	var out bytes.Buffer
	metrics.SetOutput(&out)
	t.Cleanup(func() { metrics.SetOutput(nil) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	if _, err := newTestClient(t, server).Download(context.Background(), "frames/f.jpg", io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc struct {
		Dimensions map[string]string `json:"dimensions"`
		Metrics    map[string]struct {
			Value float64 `json:"value"`
			Unit  string  `json:"unit"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &doc); err != nil {
		t.Fatalf("failed to parse metric record: %v\n%s", err, out.String())
	}
	if doc.Dimensions["Operation"] != "download" {
		t.Errorf("expected download operation, got %q", doc.Dimensions["Operation"])
	}
	if got := doc.Metrics["DownloadedBytes"]; got.Value != 10 || got.Unit != metrics.UnitBytes {
		t.Errorf("unexpected DownloadedBytes: %+v", got)
	}
}
