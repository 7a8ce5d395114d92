// Package api provides a client for the missing-person detection service.
//
// The service exposes four JSON endpoints plus a health probe:
//
//	GET  /api/missing-persons          list registered persons
//	POST /api/missing-persons          register a person (multipart)
//	POST /api/detect/video             search a video for a person (multipart)
//	GET  /api/detections/{person_id}   detection history of one person
//	GET  /api/health                   liveness probe
//
// Media URLs returned by the service (frame_url, video_url) are paths
// relative to the API origin; MediaURL resolves them.
//
// Every method returns an *Error whose Kind separates transport failures,
// undecodable bodies, and well-formed responses that report failure.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fpang/missing-person-client/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds a whole request including upload. Detection of
	// a long video runs server-side before the response starts.
	DefaultTimeout = 10 * time.Minute

	// maxResponseBytes caps the JSON bodies read from the service.
	maxResponseBytes = 8 << 20
)

// Client talks to the detection service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a client for the service at baseURL (scheme and host,
// optionally a path prefix).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must use http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(u.String(), "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API origin without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- Persons ---

// ListPersons returns the registered persons in server order.
func (c *Client) ListPersons(ctx context.Context) ([]Person, error) {
	const op = "list persons"

	var resp listPersonsResponse
	status, err := c.doJSON(ctx, op, http.MethodGet, "/api/missing-persons", nil, "", &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, appErr(op, status, orDefault(resp.Message, "server reported failure"))
	}
	if resp.Data == nil {
		return []Person{}, nil
	}
	return resp.Data, nil
}

// RegisterPerson uploads a new missing-person record. The reference image is
// required; the video is optional.
func (c *Client) RegisterPerson(ctx context.Context, req RegisterRequest) (*Person, error) {
	const op = "register person"

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErr(op, 0, "name is required")
	}
	if req.ReferenceImage.Path == "" {
		return nil, appErr(op, 0, "reference image is required")
	}

	fields := []formField{
		{name: "name", value: name},
		{name: "description", value: req.Description},
	}
	files := []formFile{{field: "reference_image", path: req.ReferenceImage.Path}}
	if req.Video != nil && req.Video.Path != "" {
		files = append(files, formFile{field: "video", path: req.Video.Path})
	}

	body, contentType, err := multipartBody(fields, files)
	if err != nil {
		return nil, &Error{Kind: KindApplication, Op: op, Message: "cannot read attachment", Err: err}
	}

	var resp registerResponse
	status, err := c.doJSON(ctx, op, http.MethodPost, "/api/missing-persons", body, contentType, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, appErr(op, status, orDefault(resp.Message, "Registration failed"))
	}
	if resp.Data == nil {
		return &Person{Name: name, Description: req.Description}, nil
	}
	return resp.Data, nil
}

// --- Detection ---

// DetectVideo uploads a video and asks the service to search it for the
// selected person. A well-formed "not found" answer is not an error: it is
// returned with Detected set to false.
func (c *Client) DetectVideo(ctx context.Context, req DetectRequest) (*DetectResult, error) {
	const op = "detect video"

	if req.PersonID == "" {
		return nil, appErr(op, 0, "no person selected")
	}
	if req.Video.Path == "" {
		return nil, appErr(op, 0, "no video attached")
	}

	fields := []formField{{name: "missing_person_id", value: string(req.PersonID)}}
	files := []formFile{{field: "video", path: req.Video.Path}}

	body, contentType, err := multipartBody(fields, files)
	if err != nil {
		return nil, &Error{Kind: KindApplication, Op: op, Message: "cannot read attachment", Err: err}
	}

	var resp detectResponse
	status, err := c.doJSON(ctx, op, http.MethodPost, "/api/detect/video", body, contentType, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		return nil, appErr(op, status, orDefault(resp.Message, "server reported failure"))
	}
	if !resp.Detected {
		return &DetectResult{Detected: false, Message: resp.Message}, nil
	}
	if resp.Data == nil {
		return nil, appErr(op, status, "detection reported without data")
	}
	return &DetectResult{
		Detected:    true,
		Message:     resp.Message,
		DetectionID: resp.Data.DetectionID,
		Confidence:  resp.Data.Confidence,
		FrameURL:    resp.Data.FrameURL,
		VideoURL:    resp.Data.VideoURL,
	}, nil
}

// ListDetections returns the detection history of one person in server order.
func (c *Client) ListDetections(ctx context.Context, personID ID) ([]Detection, error) {
	const op = "list detections"

	if personID == "" {
		return nil, appErr(op, 0, "person id is required")
	}

	var resp listDetectionsResponse
	path := "/api/detections/" + url.PathEscape(string(personID))
	status, err := c.doJSON(ctx, op, http.MethodGet, path, nil, "", &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, appErr(op, status, orDefault(resp.Message, "server reported failure"))
	}
	if resp.Data == nil {
		return []Detection{}, nil
	}
	return resp.Data, nil
}

// Health calls the service's liveness probe.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	const op = "health"

	var resp Health
	status, err := c.doJSON(ctx, op, http.MethodGet, "/api/health", nil, "", &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status != "healthy" {
		return nil, appErr(op, status, "service reports status "+orDefault(resp.Status, "<empty>"))
	}
	return &resp, nil
}

// --- Media ---

// MediaURL resolves a media path returned by the service against the API
// origin. Absolute URLs are returned unchanged.
func (c *Client) MediaURL(ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	return c.baseURL + "/" + strings.TrimLeft(ref, "/")
}

// Download streams the media at ref (as returned by the service) into w and
// returns the number of bytes written.
func (c *Client) Download(ctx context.Context, ref string, w io.Writer) (int64, error) {
	const op = "download"

	if ref == "" {
		return 0, appErr(op, 0, "media path is empty")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.MediaURL(ref), nil)
	if err != nil {
		return 0, transportErr(op, fmt.Errorf("build request: %w", err))
	}
	requestID := c.decorate(httpReq)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.record(op, 0, time.Since(start), err)
		return 0, transportErr(op, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		err := statusErr(op, httpResp.StatusCode, httpResp.Status, body)
		c.record(op, httpResp.StatusCode, time.Since(start), err)
		return 0, err
	}

	n, err := io.Copy(w, httpResp.Body)
	c.recorder(op, httpResp.StatusCode, time.Since(start), err).
		Metric("DownloadedBytes", float64(n), metrics.UnitBytes).
		Flush()
	if err != nil {
		return n, transportErr(op, fmt.Errorf("copy body: %w", err))
	}

	log.Debug().
		Str("requestId", requestID).
		Str("url", httpReq.URL.String()).
		Int64("bytes", n).
		Msg("Media downloaded")
	return n, nil
}

// --- Internal helpers ---

// doJSON sends a request and decodes a 2xx JSON body into out. It returns the
// HTTP status for use in application-level errors.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body io.ReadCloser, contentType string, out interface{}) (int, error) {
	if body != nil {
		// Closing a streamed upload also stops its writer goroutine when the
		// transport returned without draining it.
		defer body.Close()
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = body
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, transportErr(op, fmt.Errorf("build request: %w", err))
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	requestID := c.decorate(httpReq)

	log.Debug().
		Str("requestId", requestID).
		Str("method", method).
		Str("path", path).
		Msg("API request")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		log.Debug().Str("requestId", requestID).Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("API response")
		c.record(op, 0, duration, err)
		return 0, transportErr(op, err)
	}
	defer httpResp.Body.Close()

	log.Debug().
		Str("requestId", requestID).
		Int("statusCode", httpResp.StatusCode).
		Dur("duration", duration).
		Msg("API response")

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		c.record(op, httpResp.StatusCode, duration, err)
		return httpResp.StatusCode, transportErr(op, fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		apiErr := statusErr(op, httpResp.StatusCode, httpResp.Status, data)
		c.record(op, httpResp.StatusCode, duration, apiErr)
		return httpResp.StatusCode, apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		decErr := decodeErr(op, httpResp.StatusCode, err, data)
		c.record(op, httpResp.StatusCode, duration, decErr)
		return httpResp.StatusCode, decErr
	}

	c.record(op, httpResp.StatusCode, duration, nil)
	return httpResp.StatusCode, nil
}

// decorate attaches the request id and credentials, returning the id.
func (c *Client) decorate(req *http.Request) string {
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return requestID
}

func (c *Client) record(op string, status int, duration time.Duration, err error) {
	c.recorder(op, status, duration, err).Flush()
}

func (c *Client) recorder(op string, status int, duration time.Duration, err error) *metrics.Recorder {
	result := "success"
	if err != nil {
		result = KindOf(err).String()
	}
	return metrics.New(metrics.Namespace).
		Dimension("Operation", op).
		Dimension("Result", result).
		Duration("RequestMs", duration).
		Count("Requests").
		Property("statusCode", status)
}

// statusErr classifies a non-2xx reply. Only a JSON error envelope is an
// application failure; an empty or non-JSON body (a proxy's HTML page, for
// one) is a response the client cannot read.
func statusErr(op string, status int, statusText string, body []byte) *Error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return &Error{
			Kind:    KindDecode,
			Op:      op,
			Status:  status,
			Message: errorMessage(body, statusText),
			Err:     fmt.Errorf("unexpected error body: %w", err),
		}
	}
	return appErr(op, status, errorMessage(body, statusText))
}

// errorMessage extracts a human-readable message from an error body,
// falling back to the HTTP status text.
func errorMessage(body []byte, fallback string) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if len(eb.Detail) > 0 {
			var s string
			if err := json.Unmarshal(eb.Detail, &s); err == nil && s != "" {
				return s
			}
			return truncate(string(eb.Detail), 200)
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	if len(body) > 0 && !json.Valid(body) {
		return fallback + ": " + truncate(strings.TrimSpace(string(body)), 200)
	}
	return fallback
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
