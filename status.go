package tsgate

import (
	"context"
	"time"
)

// ClientInfo is one client's record as read back from the store.
type ClientInfo struct {
	ID          string
	IPAddress   string
	UserAgent   string
	WorkerID    string
	ConnectedAt time.Time
	LastActive  time.Time
}

// ChannelSnapshot is a cross-worker view of one channel's presence.
type ChannelSnapshot struct {
	ChannelID    string
	TotalClients int
	Clients      []ClientInfo
}

// ChannelStatus reads the channel's membership set and every still-alive
// client record into a snapshot. Read-only and best-effort: members whose
// record already expired are counted but carry no detail. Any worker may
// call this for any channel; it is the monitoring view of presence.
func ChannelStatus(ctx context.Context, store Store, channelID string) (*ChannelSnapshot, error) {
	keys := newChannelKeys(channelID)
	members, err := store.SMembers(ctx, keys.clients())
	if err != nil {
		return nil, err
	}

	snapshot := &ChannelSnapshot{
		ChannelID:    channelID,
		TotalClients: len(members),
		Clients:      make([]ClientInfo, 0, len(members)),
	}
	for _, clientID := range members {
		record, err := store.HGetAll(ctx, keys.client(clientID))
		if err != nil || len(record) == 0 {
			continue
		}
		info := ClientInfo{
			ID:        clientID,
			IPAddress: record[fieldIPAddress],
			UserAgent: record[fieldUserAgent],
			WorkerID:  record[fieldWorkerID],
		}
		if ts, err := parseUnixFloat(record[fieldConnectedAt]); err == nil {
			info.ConnectedAt = timeFromUnixFloat(ts)
		}
		if ts, err := parseUnixFloat(record[fieldLastActive]); err == nil {
			info.LastActive = timeFromUnixFloat(ts)
		}
		snapshot.Clients = append(snapshot.Clients, info)
	}
	return snapshot, nil
}
