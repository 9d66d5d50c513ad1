package tsgate

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Node is one worker process's entry point into the presence subsystem.
// It owns the worker identity, the store handle and the hub of per-channel
// coordinators. The proxy's request handlers ask it for a channel's
// coordinator and call AddClient/RemoveClient on that.
type Node struct {
	mu sync.Mutex

	uid    string
	config Config
	store  Store
	hub    *Hub
	logger *logger

	shutdown   bool
	shutdownCh chan struct{}
}

// NewNode creates a Node over the given coordination store.
func NewNode(store Store, cfg Config) (*Node, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = uuid.NewString()
	}
	cfg.Validate()
	n := &Node{
		uid:        cfg.WorkerID,
		config:     cfg,
		store:      store,
		logger:     newLogger(cfg.LogLevel, cfg.LogHandler),
		shutdownCh: make(chan struct{}),
	}
	n.hub = newHub(n)
	n.logger.log(NewLogEntry(LogLevelInfo, "node started", map[string]interface{}{"worker": n.uid}))
	return n, nil
}

// WorkerID returns this worker's identifier as written to the store and
// carried in published events.
func (n *Node) WorkerID() string {
	return n.uid
}

// Coordinator returns the live coordinator for a channel, creating one if
// needed or if the previous one's heartbeat loop has terminated.
func (n *Node) Coordinator(channelID string) *Coordinator {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hub.get(channelID)
}

// CloseChannel stops monitoring a channel immediately, for administrative
// teardown that cannot wait on the empty-cycle heuristic.
func (n *Node) CloseChannel(channelID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hub.remove(channelID)
}

// NotifyShutdown returns a channel closed when the node shuts down.
func (n *Node) NotifyShutdown() <-chan struct{} {
	return n.shutdownCh
}

// Shutdown stops every coordinator's loop. Client records in the store
// are left to expire via TTL, which is what tells other workers this
// worker is gone even on an unclean exit.
func (n *Node) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.shutdown {
		return nil
	}
	n.shutdown = true
	close(n.shutdownCh)
	n.hub.shutdown()
	return ctx.Err()
}
