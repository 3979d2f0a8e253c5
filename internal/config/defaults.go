package config

const (
	defaultConfigPath        = "~/.config/noteppt/config.toml"
	defaultBackendBaseURL    = "http://localhost:8000"
	defaultLogLevel          = "info"
	defaultProvider          = "gemini"
	defaultSink              = SinkLocal
	defaultOutputDir         = "."
	defaultPresignTTLMinutes = 60
	defaultHistoryBackend    = HistorySQLite
	defaultHistoryPath       = "~/.local/share/noteppt/history.db"
)

// Delivery sinks.
const (
	SinkLocal  = "local"
	SinkDialog = "dialog"
	SinkS3     = "s3"
)

// History backends.
const (
	HistorySQLite = "sqlite"
	HistoryDynamo = "dynamodb"
	HistoryNone   = "none"
)

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		BackendBaseURL: defaultBackendBaseURL,
		LogLevel:       defaultLogLevel,
		Convert: Convert{
			Provider:        defaultProvider,
			RemoveWatermark: true,
			GenerateNotes:   true,
		},
		Delivery: Delivery{
			Sink:              defaultSink,
			OutputDir:         defaultOutputDir,
			PresignTTLMinutes: defaultPresignTTLMinutes,
		},
		History: History{
			Backend: defaultHistoryBackend,
			Path:    defaultHistoryPath,
		},
	}
}
