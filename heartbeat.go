package tsgate

import (
	"context"
	"errors"
	"time"
)

// runHeartbeat is the per-coordinator background loop. Every interval it
// refreshes the liveness of locally owned clients in the store, reaps
// ghosts whose distributed record vanished or went stale, and decides
// whether an idle loop should keep spinning. A failed cycle is logged and
// never terminates the loop; the next tick is the retry.
func (c *Coordinator) runHeartbeat() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	c.logger.log(NewLogEntry(LogLevelDebug, "heartbeat loop started", map[string]interface{}{"channel": c.channelID, "interval": c.config.HeartbeatInterval.String()}))

	emptyCycles := 0
	for {
		select {
		case <-c.closeCh:
			c.logger.log(NewLogEntry(LogLevelDebug, "heartbeat loop closed", map[string]interface{}{"channel": c.channelID}))
			return
		case <-ticker.C:
		}
		if c.heartbeatCycle(&emptyCycles) {
			return
		}
	}
}

// heartbeatCycle runs one cycle and reports whether the loop should
// terminate.
func (c *Coordinator) heartbeatCycle(emptyCycles *int) bool {
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.clients) == 0 {
		*emptyCycles++
		if c.inShutdownDelay(ctx) {
			// A viewer may reconnect within the grace window; keep the
			// loop alive and start counting from scratch afterwards.
			*emptyCycles = 0
			return false
		}
		if *emptyCycles >= c.config.EmptyCycleLimit {
			c.logger.log(NewLogEntry(LogLevelInfo, "no clients after consecutive checks, stopping heartbeat loop", map[string]interface{}{"channel": c.channelID, "cycles": *emptyCycles}))
			return true
		}
		return false
	}
	*emptyCycles = 0

	now := time.Now()
	ghosts := c.detectGhosts(ctx, now)
	for _, clientID := range ghosts {
		c.removeLocked(ctx, clientID)
	}
	if len(ghosts) > 0 {
		ghostsReapedCount.Add(float64(len(ghosts)))
		c.logger.log(NewLogEntry(LogLevelInfo, "removed ghost clients", map[string]interface{}{"channel": c.channelID, "count": len(ghosts)}))
	}

	c.refreshHeartbeats(ctx, now)

	if len(c.clients) > 0 {
		c.pres.notifyActivity(ctx, len(c.clients))
	}
	return false
}

// inShutdownDelay reports whether the disconnect marker is younger than
// the configured shutdown delay. Store errors count as "not in delay":
// the empty-cycle heuristic still bounds the loop.
func (c *Coordinator) inShutdownDelay(ctx context.Context) bool {
	if c.config.ShutdownDelay <= 0 {
		return false
	}
	age, err := c.pres.disconnectAge(ctx, time.Now())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.log(NewLogEntry(LogLevelDebug, "error checking shutdown delay", map[string]interface{}{"channel": c.channelID, "error": err.Error()}))
		}
		return false
	}
	if age < c.config.ShutdownDelay {
		c.logger.log(NewLogEntry(LogLevelDebug, "channel in shutdown delay", map[string]interface{}{"channel": c.channelID, "elapsed": age.String(), "delay": c.config.ShutdownDelay.String()}))
		return true
	}
	return false
}

// detectGhosts returns locally tracked clients whose distributed record
// has vanished or whose last activity is beyond the ghost threshold.
// Caller must hold c.mu.
func (c *Coordinator) detectGhosts(ctx context.Context, now time.Time) []string {
	threshold := c.config.HeartbeatInterval.Seconds() * c.config.GhostMultiplier

	var ghosts []string
	for clientID := range c.clients {
		exists, err := c.pres.clientExists(ctx, clientID)
		if err != nil {
			// Store unreachable: keep the client, the next cycle retries.
			heartbeatErrorsCount.Inc()
			c.logger.log(NewLogEntry(LogLevelWarn, "error checking client record", map[string]interface{}{"channel": c.channelID, "client": clientID, "error": err.Error()}))
			continue
		}
		if !exists {
			c.logger.log(NewLogEntry(LogLevelDebug, "client record gone, removing locally", map[string]interface{}{"channel": c.channelID, "client": clientID}))
			ghosts = append(ghosts, clientID)
			continue
		}
		lastActive, err := c.pres.lastActive(ctx, clientID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				heartbeatErrorsCount.Inc()
				c.logger.log(NewLogEntry(LogLevelWarn, "error reading client activity", map[string]interface{}{"channel": c.channelID, "client": clientID, "error": err.Error()}))
			}
			continue
		}
		if inactive := unixFloat(now) - lastActive; inactive > threshold {
			c.logger.log(NewLogEntry(LogLevelDebug, "client inactive, removing as ghost", map[string]interface{}{"channel": c.channelID, "client": clientID, "inactive": inactive}))
			ghosts = append(ghosts, clientID)
		}
	}
	return ghosts
}

// refreshHeartbeats batch-updates last-active and TTLs for every client
// whose previous heartbeat is at least half an interval old. One atomic
// execution per cycle bounds round trips. Caller must hold c.mu.
func (c *Coordinator) refreshHeartbeats(ctx context.Context, now time.Time) {
	batch := c.store.Batch()
	refreshed := 0
	for clientID := range c.clients {
		if last, ok := c.lastHeartbeat[clientID]; ok && now.Sub(last) < c.config.HeartbeatInterval/2 {
			continue
		}
		c.pres.heartbeatBatch(batch, clientID, now)
		c.lastHeartbeat[clientID] = now
		refreshed++
	}
	if refreshed == 0 {
		return
	}
	if err := batch.Exec(ctx); err != nil {
		heartbeatErrorsCount.Inc()
		c.logger.log(NewLogEntry(LogLevelWarn, "error executing heartbeat batch", map[string]interface{}{"channel": c.channelID, "clients": refreshed, "error": err.Error()}))
	}
}
