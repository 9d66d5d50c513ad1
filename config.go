package tsgate

import "time"

// DedupRetention controls how long a coordinator remembers client ids it
// has already registered. The dedup set is what makes a repeated AddClient
// with the same id a no-op instead of a double registration.
type DedupRetention int

const (
	// DedupPruneOnRemove forgets a client id as soon as RemoveClient runs,
	// so the same id can legitimately register again after a clean
	// disconnect.
	DedupPruneOnRemove DedupRetention = iota
	// DedupRetainForever keeps every id for the lifetime of the
	// coordinator instance, suppressing reconnect flapping at the cost of
	// rejecting id reuse until the coordinator is recreated.
	DedupRetainForever
)

// Config contains tuning options for a Node and the coordinators it hands
// out. The zero value is usable: Validate fills in defaults.
type Config struct {
	// WorkerID identifies this worker process in the coordination store
	// and in published events. NewNode autogenerates one when empty; a
	// coordinator constructed directly falls back to "unknown".
	WorkerID string

	// ClientRecordTTL bounds the lifetime of every record this worker
	// writes to the store. Absence of refresh implies expiry even if the
	// worker crashes.
	ClientRecordTTL time.Duration

	// HeartbeatInterval is the cycle period of the heartbeat loop.
	HeartbeatInterval time.Duration

	// GhostMultiplier scales HeartbeatInterval into the staleness
	// threshold beyond which a client counts as a ghost.
	GhostMultiplier float64

	// ShutdownDelay is the grace period after the last client of a
	// channel disconnects during which the channel is kept under
	// monitoring in case of reconnection.
	ShutdownDelay time.Duration

	// EmptyCycleLimit is how many consecutive empty heartbeat cycles an
	// idle loop tolerates before terminating itself.
	EmptyCycleLimit int

	DedupRetention DedupRetention

	LogLevel   LogLevel
	LogHandler LogHandler
}

var DefaultConfig = Config{
	ClientRecordTTL:   60 * time.Second,
	HeartbeatInterval: 10 * time.Second,
	GhostMultiplier:   5.0,
	EmptyCycleLimit:   3,
}

// Validate fills zero fields with defaults.
func (c *Config) Validate() {
	if c.WorkerID == "" {
		c.WorkerID = "unknown"
	}
	if c.ClientRecordTTL == 0 {
		c.ClientRecordTTL = DefaultConfig.ClientRecordTTL
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultConfig.HeartbeatInterval
	}
	if c.GhostMultiplier == 0 {
		c.GhostMultiplier = DefaultConfig.GhostMultiplier
	}
	if c.EmptyCycleLimit == 0 {
		c.EmptyCycleLimit = DefaultConfig.EmptyCycleLimit
	}
}
