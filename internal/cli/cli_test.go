package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/missing-person-client/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDurationShort(t *testing.T) {
	assert.Equal(t, "0:02", FormatDurationShort(2300*time.Millisecond))
	assert.Equal(t, "1:05", FormatDurationShort(65*time.Second))
	assert.Equal(t, "1:00:01", FormatDurationShort(time.Hour+time.Second))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "2.0 MiB", FormatBytes(2<<20))
}

func TestPrompterAsk(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("Ada\n\nlast"), &out)

	v, err := p.Ask("Name", "")
	require.NoError(t, err)
	assert.Equal(t, "Ada", v)

	v, err = p.Ask("Description", "none")
	require.NoError(t, err)
	assert.Equal(t, "none", v)

	v, err = p.Ask("Tail", "")
	require.NoError(t, err)
	assert.Equal(t, "last", v)

	v, err = p.Ask("Gone", "def")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "def", v)

	assert.Contains(t, out.String(), "Description [none]: ")
}

func TestPrompterLine(t *testing.T) {
	p := NewPrompter(strings.NewReader("go  detections \n"), io.Discard)
	fields, err := p.Line("> ")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "detections"}, fields)

	_, err = p.Line("> ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	got, err := ResolveFile(file)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	_, err = ResolveFile(dir)
	assert.Error(t, err)
	_, err = ResolveFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitTransport, ExitCode(&api.Error{Kind: api.KindTransport}))
	assert.Equal(t, ExitDecode, ExitCode(fmt.Errorf("wrapped: %w", &api.Error{Kind: api.KindDecode})))
	assert.Equal(t, ExitApplication, ExitCode(&api.Error{Kind: api.KindApplication}))
}

func TestPickers(t *testing.T) {
	var gotTitle string
	var gotPatterns []string
	fake := func(title string, patterns []string) (string, error) {
		gotTitle, gotPatterns = title, patterns
		return "/tmp/x", nil
	}

	path, err := PickImage(fake)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", path)
	assert.Equal(t, "Select reference image", gotTitle)
	assert.Contains(t, gotPatterns, "*.jpg")

	_, err = PickVideo(fake)
	require.NoError(t, err)
	assert.Contains(t, gotPatterns, "*.mp4")
}
