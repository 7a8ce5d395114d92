package logging

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the client's identity, endpoints, timings and
// feature flags, then emits a single structured zerolog event summarising
// how the client was configured. Secrets are never registered.
type StartupLogger struct {
	command      string
	version      string
	commitHash   string
	initDuration time.Duration

	endpoints map[string]string
	timings   map[string]time.Duration
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the given subcommand
// (e.g. "shell", "detect").
func NewStartupLogger(command string) *StartupLogger {
	return &StartupLogger{
		command:   command,
		endpoints: make(map[string]string),
		timings:   make(map[string]time.Duration),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// Version sets the release version baked into the binary.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// CommitHash sets the git commit hash baked into the binary at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// Endpoint registers a remote URL the client talks to.
func (s *StartupLogger) Endpoint(label, url string) *StartupLogger {
	s.endpoints[label] = url
	return s
}

// Timing registers a configured delay or interval.
func (s *StartupLogger) Timing(label string, d time.Duration) *StartupLogger {
	s.timings[label] = d
	return s
}

// Feature registers a boolean feature flag (e.g. "metrics", "token").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long startup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	evt := log.Info()

	client := zerolog.Dict().
		Str("command", s.command).
		Str("goVersion", runtime.Version()).
		Str("os", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.version != "" {
		client = client.Str("version", s.version)
	}
	if s.commitHash != "" {
		client = client.Str("commitHash", s.commitHash)
	}
	evt = evt.Dict("client", client)

	if len(s.endpoints) > 0 {
		evt = evt.Dict("endpoints", dictFromMap(s.endpoints))
	}

	if len(s.timings) > 0 {
		d := zerolog.Dict()
		for k, v := range s.timings {
			d = d.Dur(k, v)
		}
		evt = evt.Dict("timings", d)
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Client started")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
