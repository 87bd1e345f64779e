package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	URL               string // URL of the NATS server carrying the telemetry stream
	VehicleID         string // id of the vehicle whose stream is consumed
	WaitForServices   string // duration to wait for other services to be ready
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules (empty: no filtering)
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry
	ProfilingPort     int    // port for profiling
	BufferCapacity    int    // max number of packets kept in the history buffer
	OrderTolerance    string // window in which out-of-order packets are sorted in
	CheckInterval     string // interval of the stream staleness check
	MaxBackoff        string // upper bound of the reconnect backoff
	SpeedUnit         string // preferred speed unit (ms, mph, kph)
	TempUnit          string // preferred temperature unit (c, f)
)

// Config holds the configuration values which are used by the application
type Config struct {
	PrintMessage bool // if true, the packet payload will be print on debug level
}
