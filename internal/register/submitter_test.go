package register

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fpang/missing-person-client/internal/api"
	"github.com/fpang/missing-person-client/internal/persons"
	"github.com/fpang/missing-person-client/internal/view"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://api.test"

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	kinds    []view.NotificationKind
}

func (r *recordingNotifier) Notify(message string, kind view.NotificationKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	r.kinds = append(r.kinds, kind)
}

func newMockClient(t *testing.T) (*api.Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	c, err := api.NewClient(baseURL, api.WithHTTPClient(&http.Client{Transport: mt}))
	require.NoError(t, err)
	return c, mt
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xFF}, size), 0o600))
	return path
}

func filledForm(t *testing.T) *view.State {
	t.Helper()
	st := view.New(view.Initial())
	image := writeFile(t, "ref.jpg", 2<<20)
	st.Update(func(s *view.Snapshot) {
		s.Register.Name = "Ada Lovelace"
		s.Register.Description = "Last seen near the station"
		s.Register.ReferenceImage = image
		s.Register.ImagePreview = view.Preview{Visible: true, FileName: "ref.jpg"}
	})
	return st
}

func TestSubmitSuccess(t *testing.T) {
	client, mt := newMockClient(t)
	st := filledForm(t)
	n := &recordingNotifier{}

	var gotName string
	var gotImageSize int64
	mt.RegisterResponder(http.MethodPost, baseURL+"/api/missing-persons",
		func(req *http.Request) (*http.Response, error) {
			if err := req.ParseMultipartForm(8 << 20); err != nil {
				return nil, err
			}
			gotName = req.FormValue("name")
			_, hdr, err := req.FormFile("reference_image")
			if err != nil {
				return nil, err
			}
			gotImageSize = hdr.Size
			return httpmock.NewStringResponse(http.StatusOK,
				`{"success":true,"data":{"id":7,"name":"Ada Lovelace"}}`), nil
		})
	mt.RegisterResponder(http.MethodGet, baseURL+"/api/missing-persons",
		httpmock.NewStringResponder(http.StatusOK, `{"success":true,"data":[{"id":7,"name":"Ada Lovelace"}]}`))

	s := NewSubmitter(client, persons.NewLoader(client, st, n), st, n)
	person, err := s.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, api.ID("7"), person.ID)
	assert.Equal(t, "Ada Lovelace", gotName)
	assert.Equal(t, int64(2<<20), gotImageSize)

	snap := st.Snapshot()
	assert.Empty(t, snap.Register.Name)
	assert.Empty(t, snap.Register.Description)
	assert.Empty(t, snap.Register.ReferenceImage)
	assert.False(t, snap.Register.ImagePreview.Visible)
	assert.False(t, snap.Register.SubmitDisabled)
	assert.Equal(t, view.RegisterLabel, snap.Register.SubmitLabel)

	require.Len(t, snap.PersonOptions, 2)
	assert.Equal(t, "7", snap.PersonOptions[1].Value)

	assert.Equal(t, []string{SuccessMessage}, n.messages)
	assert.Equal(t, 1, mt.GetCallCountInfo()["GET "+baseURL+"/api/missing-persons"])
}

func TestSubmitFailureKeepsForm(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"failure flag", httpmock.NewStringResponder(http.StatusOK, `{"success":false,"message":"duplicate"}`)},
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, `{"detail":"boom"}`)},
		{"malformed body", httpmock.NewStringResponder(http.StatusOK, `<html>`)},
		{"network failure", httpmock.NewErrorResponder(errors.New("connection refused"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mt := newMockClient(t)
			st := filledForm(t)
			n := &recordingNotifier{}
			mt.RegisterResponder(http.MethodPost, baseURL+"/api/missing-persons", tt.responder)

			before := st.Snapshot().Register
			s := NewSubmitter(client, persons.NewLoader(client, st, n), st, n)
			_, err := s.Submit(context.Background())
			require.Error(t, err)

			after := st.Snapshot().Register
			assert.Equal(t, before.Name, after.Name)
			assert.Equal(t, before.ReferenceImage, after.ReferenceImage)
			assert.True(t, after.ImagePreview.Visible)
			assert.False(t, after.SubmitDisabled)
			assert.Equal(t, view.RegisterLabel, after.SubmitLabel)

			assert.Equal(t, []string{FailedMessage}, n.messages)
			assert.Equal(t, []view.NotificationKind{view.KindError}, n.kinds)
			assert.Zero(t, mt.GetCallCountInfo()["GET "+baseURL+"/api/missing-persons"])
		})
	}
}

func TestSubmitRestoresOriginalLabel(t *testing.T) {
	client, mt := newMockClient(t)
	st := filledForm(t)
	st.Update(func(s *view.Snapshot) { s.Register.SubmitLabel = "Save Report" })
	n := &recordingNotifier{}
	mt.RegisterResponder(http.MethodPost, baseURL+"/api/missing-persons",
		httpmock.NewStringResponder(http.StatusOK, `{"success":false,"message":"duplicate"}`))

	var busy []string
	cancel := st.Subscribe(func(s view.Snapshot) {
		if s.Register.SubmitDisabled {
			busy = append(busy, s.Register.SubmitLabel)
		}
	})
	defer cancel()

	_, err := NewSubmitter(client, nil, st, n).Submit(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{view.RegisterBusyLabel}, busy)
	assert.Equal(t, "Save Report", st.Snapshot().Register.SubmitLabel)
	assert.False(t, st.Snapshot().Register.SubmitDisabled)
}

type blockingRegistrar struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRegistrar) RegisterPerson(ctx context.Context, req api.RegisterRequest) (*api.Person, error) {
	close(b.started)
	<-b.release
	return &api.Person{ID: "1", Name: req.Name}, nil
}

func TestSubmitBusyWhileInFlight(t *testing.T) {
	st := filledForm(t)
	reg := &blockingRegistrar{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSubmitter(reg, nil, st, &recordingNotifier{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	<-reg.started

	busy := st.Snapshot().Register
	assert.True(t, busy.SubmitDisabled)
	assert.Equal(t, view.RegisterBusyLabel, busy.SubmitLabel)

	_, err := s.Submit(context.Background())
	require.ErrorIs(t, err, ErrBusy)

	close(reg.release)
	require.NoError(t, <-done)
	assert.False(t, st.Snapshot().Register.SubmitDisabled)
}

func TestSubmitValidationFailsWithoutRequest(t *testing.T) {
	client, mt := newMockClient(t)
	st := view.New(view.Initial())
	n := &recordingNotifier{}

	_, err := NewSubmitter(client, nil, st, n).Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, api.KindApplication, api.KindOf(err))
	assert.Zero(t, mt.GetTotalCallCount())
	assert.Equal(t, []string{FailedMessage}, n.messages)
}
