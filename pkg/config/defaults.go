package config

// SVN defaults.
const (
	DefaultSVNBinary = "svn"
)

// Blame defaults.
const (
	// DefaultBlameWorkers lets the orchestrator size its pool from the CPU count.
	DefaultBlameWorkers = 0
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)

// Telemetry defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultMetricsAddr  = ""
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)
