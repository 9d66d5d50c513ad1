package tsgate

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Coordinator tracks the viewers one worker serves for one channel and
// keeps the coordination store's cross-worker picture in sync: per-client
// records, the distributed membership set, the worker presence counter and
// the connect/disconnect event stream. One instance exists per
// (channel, worker) pair; instances never talk to each other directly.
//
// Store operations in AddClient/RemoveClient run while the local mutex is
// held, trading store round-trip latency for a guarantee that the local
// and distributed views never diverge under concurrent calls.
type Coordinator struct {
	mu sync.Mutex

	channelID string
	workerID  string
	config    Config

	store  Store
	pres   *presence
	events *eventPublisher
	logger *logger

	// clients is the set of client ids this worker currently serves.
	clients map[string]struct{}
	// registered dedups AddClient; retention governed by config.
	registered map[string]struct{}
	// lastHeartbeat rate-limits redundant heartbeat writes per client.
	lastHeartbeat map[string]time.Time

	lastActiveTime time.Time

	closeOnce sync.Once
	closeCh   chan struct{}
	doneCh    chan struct{}
}

// NewCoordinator creates a coordinator for one channel on this worker and
// starts its heartbeat loop. The loop stops on Close or after enough
// consecutive empty cycles outside a shutdown-delay window; construct a
// fresh coordinator for renewed activity (the Hub does this).
func NewCoordinator(channelID string, store Store, cfg Config) *Coordinator {
	cfg.Validate()
	lg := newLogger(cfg.LogLevel, cfg.LogHandler)
	c := &Coordinator{
		channelID:      channelID,
		workerID:       cfg.WorkerID,
		config:         cfg,
		store:          store,
		pres:           newPresence(store, channelID, cfg.WorkerID, cfg.ClientRecordTTL, lg),
		events:         newEventPublisher(store, channelID, cfg.WorkerID, lg),
		logger:         lg,
		clients:        make(map[string]struct{}),
		registered:     make(map[string]struct{}),
		lastHeartbeat:  make(map[string]time.Time),
		lastActiveTime: time.Now(),
		closeCh:        make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	go c.runHeartbeat()
	return c
}

// ChannelID returns the channel this coordinator serves.
func (c *Coordinator) ChannelID() string {
	return c.channelID
}

// AddClient registers a new viewer connection on this worker. Re-adding
// an id already registered is a no-op reported through the outcome, not an
// error. Store failures degrade to local-only tracking and are logged.
func (c *Coordinator) AddClient(clientID, ip, userAgent string) AddOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.registered[clientID]; ok {
		c.logger.log(NewLogEntry(LogLevelDebug, "client already registered", map[string]interface{}{"channel": c.channelID, "client": clientID}))
		return AddOutcome{Status: AddStatusAlreadyRegistered, LocalClients: len(c.clients)}
	}
	c.registered[clientID] = struct{}{}
	c.clients[clientID] = struct{}{}

	ctx := context.Background()
	now := time.Now()
	c.lastActiveTime = now

	if err := c.pres.writeClientRecord(ctx, clientID, ip, userAgent, now); err != nil {
		c.logger.log(NewLogEntry(LogLevelWarn, "error writing client record", map[string]interface{}{"channel": c.channelID, "client": clientID, "error": err.Error()}))
	}
	if err := c.pres.clearInitTimer(ctx); err != nil {
		c.logger.log(NewLogEntry(LogLevelDebug, "error clearing init timer", map[string]interface{}{"channel": c.channelID, "error": err.Error()}))
	}
	c.pres.notifyActivity(ctx, len(c.clients))
	c.events.publishConnected(ctx, clientID, userAgent, now)
	c.lastHeartbeat[clientID] = now

	numClientsGauge.Inc()
	clientConnectsCount.Inc()
	c.logger.log(NewLogEntry(LogLevelInfo, "client connected", map[string]interface{}{"channel": c.channelID, "client": clientID, "local": len(c.clients)}))

	return AddOutcome{Status: AddStatusAdded, LocalClients: len(c.clients)}
}

// RemoveClient removes a viewer connection and returns this worker's
// client count after removal. Removing an unknown id is a safe no-op.
func (c *Coordinator) RemoveClient(clientID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(context.Background(), clientID)
}

// removeLocked is the single removal path, shared by RemoveClient and the
// ghost reaper. Caller must hold c.mu.
func (c *Coordinator) removeLocked(ctx context.Context, clientID string) int {
	if _, ok := c.clients[clientID]; ok {
		delete(c.clients, clientID)
		numClientsGauge.Dec()
		clientDisconnectsCount.Inc()
	}
	delete(c.lastHeartbeat, clientID)
	if c.config.DedupRetention == DedupPruneOnRemove {
		delete(c.registered, clientID)
	}

	now := time.Now()
	c.lastActiveTime = now
	remaining, err := c.pres.removeClientRecord(ctx, clientID)
	if err != nil {
		c.logger.log(NewLogEntry(LogLevelWarn, "error removing client record", map[string]interface{}{"channel": c.channelID, "client": clientID, "error": err.Error()}))
	} else if remaining == 0 {
		// The whole channel just went empty; leave the grace-window
		// marker whether or not this worker owns the upstream.
		c.logger.log(NewLogEntry(LogLevelWarn, "last client removed, channel may shut down soon", map[string]interface{}{"channel": c.channelID, "client": clientID}))
		if err := c.pres.markDisconnect(ctx, now); err != nil {
			c.logger.log(NewLogEntry(LogLevelWarn, "error writing disconnect marker", map[string]interface{}{"channel": c.channelID, "error": err.Error()}))
		}
	}

	c.pres.notifyActivity(ctx, len(c.clients))
	if err == nil {
		c.events.publishDisconnected(ctx, clientID, remaining, now)
	}

	c.logger.log(NewLogEntry(LogLevelInfo, "client disconnected", map[string]interface{}{"channel": c.channelID, "client": clientID, "local": len(c.clients)}))
	return len(c.clients)
}

// ClientCount returns this worker's client count.
func (c *Coordinator) ClientCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// TotalClientCount returns the member count of the distributed set across
// all workers, falling back to the local count when the store cannot
// answer. Never returns an error: the total is best-effort by design.
func (c *Coordinator) TotalClientCount() int {
	c.mu.Lock()
	local := len(c.clients)
	c.mu.Unlock()

	total, err := c.pres.memberCount(context.Background())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.log(NewLogEntry(LogLevelWarn, "error getting total client count", map[string]interface{}{"channel": c.channelID, "error": err.Error()}))
		}
		return local
	}
	return int(total)
}

// RefreshClientTTL re-extends the record TTL of every locally tracked
// client and of the membership set. Meant to be called from request-path
// activity (data delivery) so a client actively receiving bytes never
// expires even if heartbeats are delayed.
func (c *Coordinator) RefreshClientTTL() {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := context.Background()
	for clientID := range c.clients {
		if err := c.pres.refreshTTL(ctx, clientID); err != nil {
			c.logger.log(NewLogEntry(LogLevelWarn, "error refreshing client ttl", map[string]interface{}{"channel": c.channelID, "client": clientID, "error": err.Error()}))
			return
		}
	}
	if err := c.pres.refreshSetTTL(ctx); err != nil {
		c.logger.log(NewLogEntry(LogLevelWarn, "error refreshing client set ttl", map[string]interface{}{"channel": c.channelID, "error": err.Error()}))
	}
}

// Close stops the heartbeat loop. It does not remove clients or touch the
// store: records expire via TTL, and administrative teardown that wants a
// clean store should call RemoveClient first.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
}

// Done is closed once the heartbeat loop has terminated, whether via
// Close or via the empty-cycle heuristic.
func (c *Coordinator) Done() <-chan struct{} {
	return c.doneCh
}
