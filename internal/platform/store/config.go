package store

import "time"

// Config selects and configures the audit backends
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// boot: Open pings up to ConnectRetries times, each bounded by PingTimeout
	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse
type CHConfig struct {
	Enabled    bool
	URL        string
	ClientRole string // reported to clickhouse as client info
	ClientTag  string
}
