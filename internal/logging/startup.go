package logging

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the command identity, resolved configuration and
// feature flags, then emits a single structured event summarising how the
// CLI was configured for this run.
//
// Only non-sensitive values belong here. Identity tokens and API keys are
// reported as presence flags, never as values.
type StartupLogger struct {
	command    string
	version    string
	commitHash string
	initDur    time.Duration

	endpoints map[string]string
	sinks     map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the given subcommand
// (e.g. "convert", "keys save").
func NewStartupLogger(command string) *StartupLogger {
	return &StartupLogger{
		command:   command,
		endpoints: make(map[string]string),
		sinks:     make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// Version sets the release version baked into the binary at build time.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// CommitHash sets the git commit hash baked into the binary at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// Endpoint registers a remote endpoint the command will talk to.
func (s *StartupLogger) Endpoint(label, url string) *StartupLogger {
	s.endpoints[label] = url
	return s
}

// Sink registers an output destination (artifact delivery, history, metrics).
func (s *StartupLogger) Sink(label, target string) *StartupLogger {
	s.sinks[label] = target
	return s
}

// Feature registers a boolean feature flag (e.g. "hasIdentity", "verifyKey").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long command setup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDur = d
	return s
}

// Log emits a single structured DEBUG log event with all collected information.
func (s *StartupLogger) Log() {
	evt := log.Debug()

	cmdDict := zerolog.Dict().
		Str("name", s.command).
		Str("goVersion", runtime.Version()).
		Str("os", runtime.GOOS).
		Str("arch", runtime.GOARCH)
	if s.version != "" {
		cmdDict = cmdDict.Str("version", s.version)
	}
	if s.commitHash != "" {
		cmdDict = cmdDict.Str("commitHash", s.commitHash)
	}
	evt = evt.Dict("command", cmdDict)

	if len(s.endpoints) > 0 {
		evt = evt.Dict("endpoints", dictFromMap(s.endpoints))
	}
	if len(s.sinks) > 0 {
		evt = evt.Dict("sinks", dictFromMap(s.sinks))
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
	if s.initDur > 0 {
		evt = evt.Dur("initDuration", s.initDur)
	}

	evt.Msg("Command configured")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
