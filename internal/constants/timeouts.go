package constants

import "time"

// Shared duration vocabulary used by timeouts and intervals.
const (
	Duration2Seconds  = 2 * time.Second
	Duration3Seconds  = 3 * time.Second
	Duration5Seconds  = 5 * time.Second
	Duration10Seconds = 10 * time.Second
)

// Stream timing.
const (
	// StreamRequestInterval is how often a session asks the data source for
	// another chunk.
	StreamRequestInterval = Duration3Seconds

	WebsocketHandshakeTimeout = Duration10Seconds
	WebsocketWriteTimeout     = Duration5Seconds
	WebsocketCloseTimeout     = Duration2Seconds
)

// Default data source location.
const (
	DefaultEndpoint = "http://localhost:4422"
	DefaultPath     = "/"
)
