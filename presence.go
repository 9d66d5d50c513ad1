package tsgate

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// disconnectMarkerTTL bounds how long the "channel just went idle" signal
// survives, independent of the configured shutdown delay.
const disconnectMarkerTTL = 60 * time.Second

// presence translates registry operations into coordination store
// operations under the channel's key namespace. Anything written here
// carries a TTL no larger than the client record lifetime, so state left
// behind by a crashed worker expires on its own.
type presence struct {
	store     Store
	keys      channelKeys
	workerID  string
	clientTTL time.Duration
	logger    *logger
}

func newPresence(store Store, channelID, workerID string, clientTTL time.Duration, lg *logger) *presence {
	return &presence{
		store:     store,
		keys:      newChannelKeys(channelID),
		workerID:  workerID,
		clientTTL: clientTTL,
		logger:    lg,
	}
}

// writeClientRecord stores the full client hash and adds the id to the
// distributed membership set.
func (p *presence) writeClientRecord(ctx context.Context, clientID, ip, userAgent string, now time.Time) error {
	if userAgent == "" {
		userAgent = "unknown"
	}
	ts := formatUnixFloat(unixFloat(now))
	key := p.keys.client(clientID)
	err := p.store.HSet(ctx, key, map[string]string{
		fieldUserAgent:   userAgent,
		fieldIPAddress:   ip,
		fieldConnectedAt: ts,
		fieldLastActive:  ts,
		fieldWorkerID:    p.workerID,
	})
	if err != nil {
		return err
	}
	if err := p.store.Expire(ctx, key, p.clientTTL); err != nil {
		return err
	}
	if err := p.store.SAdd(ctx, p.keys.clients(), clientID); err != nil {
		return err
	}
	return p.store.Expire(ctx, p.keys.clients(), p.clientTTL)
}

// removeClientRecord deletes the client hash and its membership entry,
// returning the distributed member count after removal. A negative count
// means the store could not answer.
func (p *presence) removeClientRecord(ctx context.Context, clientID string) (int64, error) {
	if err := p.store.SRem(ctx, p.keys.clients(), clientID); err != nil {
		return -1, err
	}
	if err := p.store.Delete(ctx, p.keys.client(clientID)); err != nil {
		return -1, err
	}
	return p.store.SCard(ctx, p.keys.clients())
}

func (p *presence) memberCount(ctx context.Context) (int64, error) {
	return p.store.SCard(ctx, p.keys.clients())
}

func (p *presence) clientExists(ctx context.Context, clientID string) (bool, error) {
	return p.store.Exists(ctx, p.keys.client(clientID))
}

// lastActive reads the client's last-active timestamp from its record.
func (p *presence) lastActive(ctx context.Context, clientID string) (float64, error) {
	raw, err := p.store.HGet(ctx, p.keys.client(clientID), fieldLastActive)
	if err != nil {
		return 0, err
	}
	return parseUnixFloat(raw)
}

// markDisconnect writes the last-client-disconnect marker. Written by
// whichever worker removed the last member, owner or not.
func (p *presence) markDisconnect(ctx context.Context, now time.Time) error {
	return p.store.SetEx(ctx, p.keys.lastClientDisconnect(), formatUnixFloat(unixFloat(now)), disconnectMarkerTTL)
}

// disconnectAge returns how long ago the channel went empty, or
// ErrNotFound when no marker is alive.
func (p *presence) disconnectAge(ctx context.Context, now time.Time) (time.Duration, error) {
	raw, err := p.store.Get(ctx, p.keys.lastClientDisconnect())
	if err != nil {
		return 0, err
	}
	ts, err := parseUnixFloat(raw)
	if err != nil {
		return 0, err
	}
	return time.Duration((unixFloat(now) - ts) * float64(time.Second)), nil
}

// clearInitTimer deletes the channel warm-up marker owned by the upstream
// connection manager. A real client arriving supersedes it.
func (p *presence) clearInitTimer(ctx context.Context) error {
	return p.store.Delete(ctx, p.keys.initTime())
}

// refreshTTL re-extends the record TTL for one locally tracked client.
func (p *presence) refreshTTL(ctx context.Context, clientID string) error {
	return p.store.Expire(ctx, p.keys.client(clientID), p.clientTTL)
}

// refreshSetTTL re-extends the membership set TTL.
func (p *presence) refreshSetTTL(ctx context.Context) error {
	return p.store.Expire(ctx, p.keys.clients(), p.clientTTL)
}

// heartbeatBatch queues the per-client refresh of one heartbeat cycle
// onto a store batch: last-active timestamp, record TTL and membership
// re-add with set TTL.
func (p *presence) heartbeatBatch(batch Batch, clientID string, now time.Time) {
	key := p.keys.client(clientID)
	batch.HSet(key, map[string]string{fieldLastActive: formatUnixFloat(unixFloat(now))})
	batch.Expire(key, p.clientTTL)
	batch.SAdd(p.keys.clients(), clientID)
	batch.Expire(p.keys.clients(), p.clientTTL)
}

// notifyActivity publishes this worker's presence record and the channel
// activity timestamp. This is how the channel owner learns that other
// workers still serve viewers. Failures are logged, never returned.
func (p *presence) notifyActivity(ctx context.Context, localClients int) {
	if localClients == 0 {
		return
	}
	now := time.Now()
	err := p.store.SetEx(ctx, p.keys.worker(p.workerID), strconv.Itoa(localClients), p.clientTTL)
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.log(NewLogEntry(LogLevelWarn, "error writing worker presence", map[string]interface{}{"channel": p.keys.channelID, "worker": p.workerID, "error": err.Error()}))
		return
	}
	err = p.store.SetEx(ctx, p.keys.activity(), formatUnixFloat(unixFloat(now)), p.clientTTL)
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.log(NewLogEntry(LogLevelWarn, "error writing channel activity", map[string]interface{}{"channel": p.keys.channelID, "worker": p.workerID, "error": err.Error()}))
	}
}
