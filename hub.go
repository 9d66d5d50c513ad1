package tsgate

// Hub keeps the live coordinators of one worker process, one per channel.
// A coordinator whose heartbeat loop has self-terminated is replaced with
// a fresh one on the next lookup, so renewed viewer activity on a channel
// that went idle just works.
type Hub struct {
	node         *Node
	coordinators map[string]*Coordinator
}

func newHub(node *Node) *Hub {
	return &Hub{
		node:         node,
		coordinators: make(map[string]*Coordinator),
	}
}

// get returns the channel's coordinator, constructing one when none
// exists or the existing loop has stopped. Caller must hold node.mu.
func (h *Hub) get(channelID string) *Coordinator {
	if c, ok := h.coordinators[channelID]; ok {
		select {
		case <-c.Done():
			// Loop gone; fall through and recreate.
		default:
			return c
		}
	}
	c := NewCoordinator(channelID, h.node.store, h.node.config)
	h.coordinators[channelID] = c
	return c
}

// remove closes and forgets the channel's coordinator. Caller must hold
// node.mu.
func (h *Hub) remove(channelID string) {
	if c, ok := h.coordinators[channelID]; ok {
		c.Close()
		delete(h.coordinators, channelID)
	}
}

// shutdown closes every coordinator. Caller must hold node.mu.
func (h *Hub) shutdown() {
	for channelID, c := range h.coordinators {
		c.Close()
		delete(h.coordinators, channelID)
	}
}
