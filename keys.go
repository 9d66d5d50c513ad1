package tsgate

// Client record hash fields.
const (
	fieldUserAgent   = "user_agent"
	fieldIPAddress   = "ip_address"
	fieldConnectedAt = "connected_at"
	fieldLastActive  = "last_active"
	fieldWorkerID    = "worker_id"
)

// channelKeys builds the coordination store key scheme for one channel.
// All per-channel state lives under the channel:<id> namespace so that a
// channel can be inspected or wiped with one key pattern.
type channelKeys struct {
	channelID string
}

func newChannelKeys(channelID string) channelKeys {
	return channelKeys{channelID: channelID}
}

// clients is the distributed membership set of client ids.
func (k channelKeys) clients() string {
	return "channel:" + k.channelID + ":clients"
}

// client is the per-client record hash.
func (k channelKeys) client(clientID string) string {
	return "channel:" + k.channelID + ":clients:" + clientID
}

// worker is the per-worker presence counter.
func (k channelKeys) worker(workerID string) string {
	return "channel:" + k.channelID + ":worker:" + workerID
}

// activity is the channel-wide last-activity timestamp.
func (k channelKeys) activity() string {
	return "channel:" + k.channelID + ":activity"
}

// lastClientDisconnect marks the moment the channel went empty.
func (k channelKeys) lastClientDisconnect() string {
	return "channel:" + k.channelID + ":last_client_disconnect"
}

// initTime is owned by the upstream connection manager; cleared here when
// a real client arrives.
func (k channelKeys) initTime() string {
	return "channel:" + k.channelID + ":init_time"
}

// events is the pub/sub topic for connect/disconnect events.
func (k channelKeys) events() string {
	return "channel:" + k.channelID + ":events"
}
