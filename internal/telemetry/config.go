package telemetry

// Config holds OpenTelemetry tracing configuration
type Config struct {
	// Enabled indicates whether tracing is enabled
	Enabled bool

	// ServiceName is reported as service.name on every span
	ServiceName string

	// ServiceVersion is reported as service.version
	ServiceVersion string

	// ServerRank is attached as a resource attribute so traces from several
	// data servers can be told apart.
	ServerRank int

	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	Endpoint string

	// Insecure disables TLS towards the collector
	Insecure bool

	// SampleRate is the trace sampling rate (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns a configuration with tracing switched off.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "pdcd",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
