package tsgate

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Event types published on a channel's events topic.
const (
	EventClientConnected    = "client_connected"
	EventClientDisconnected = "client_disconnected"
)

// Event is the JSON message published on connect and disconnect. Purely
// informational; no consumer is assumed.
type Event struct {
	Event     string  `json:"event"`
	ChannelID string  `json:"channel_id"`
	ClientID  string  `json:"client_id"`
	WorkerID  string  `json:"worker_id"`
	Timestamp float64 `json:"timestamp"`
	// UserAgent set on connect when the client supplied one.
	UserAgent string `json:"user_agent,omitempty"`
	// RemainingClients set on disconnect: distributed member count after
	// removal. Pointer so a final zero survives serialization.
	RemainingClients *int64 `json:"remaining_clients,omitempty"`
}

// eventPublisher emits connect/disconnect events onto the per-channel
// pub/sub topic. Serialization or publish failures are logged and never
// block the triggering add/remove.
type eventPublisher struct {
	store    Store
	keys     channelKeys
	workerID string
	logger   *logger
}

func newEventPublisher(store Store, channelID, workerID string, lg *logger) *eventPublisher {
	return &eventPublisher{
		store:    store,
		keys:     newChannelKeys(channelID),
		workerID: workerID,
		logger:   lg,
	}
}

func (e *eventPublisher) publishConnected(ctx context.Context, clientID, userAgent string, now time.Time) {
	e.publish(ctx, Event{
		Event:     EventClientConnected,
		ChannelID: e.keys.channelID,
		ClientID:  clientID,
		WorkerID:  e.workerID,
		Timestamp: unixFloat(now),
		UserAgent: userAgent,
	})
}

func (e *eventPublisher) publishDisconnected(ctx context.Context, clientID string, remaining int64, now time.Time) {
	e.publish(ctx, Event{
		Event:            EventClientDisconnected,
		ChannelID:        e.keys.channelID,
		ClientID:         clientID,
		WorkerID:         e.workerID,
		Timestamp:        unixFloat(now),
		RemainingClients: &remaining,
	})
}

func (e *eventPublisher) publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		e.logger.log(NewLogEntry(LogLevelError, "error encoding client event", map[string]interface{}{"channel": e.keys.channelID, "event": ev.Event, "error": err.Error()}))
		return
	}
	if err := e.store.Publish(ctx, e.keys.events(), data); err != nil {
		e.logger.log(NewLogEntry(LogLevelWarn, "error publishing client event", map[string]interface{}{"channel": e.keys.channelID, "event": ev.Event, "error": err.Error()}))
		return
	}
	eventsPublishedCount.WithLabelValues(ev.Event).Inc()
}

// EventHandler consumes decoded events from a Listener.
type EventHandler func(Event)

// Listener subscribes to a channel's events topic and dispatches decoded
// events to a handler. Used by whichever process owns the channel's
// upstream connection, or by monitoring.
type Listener struct {
	sub     Subscription
	handler EventHandler
	logger  *logger

	closeOnce sync.Once
	closeCh   chan struct{}
	doneCh    chan struct{}
}

// NewListener subscribes to the events topic of channelID and starts
// dispatching. Close stops it.
func NewListener(ctx context.Context, store Store, channelID string, handler EventHandler, cfg Config) (*Listener, error) {
	cfg.Validate()
	keys := newChannelKeys(channelID)
	sub, err := store.Subscribe(ctx, keys.events())
	if err != nil {
		return nil, err
	}
	l := &Listener{
		sub:     sub,
		handler: handler,
		logger:  newLogger(cfg.LogLevel, cfg.LogHandler),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *Listener) run() {
	defer close(l.doneCh)
	for {
		select {
		case <-l.closeCh:
			return
		case msg, ok := <-l.sub.Messages():
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				l.logger.log(NewLogEntry(LogLevelDebug, "dropping malformed event payload", map[string]interface{}{"topic": msg.Channel, "error": err.Error()}))
				continue
			}
			l.handler(ev)
		}
	}
}

// Done is closed when the dispatch loop has stopped.
func (l *Listener) Done() <-chan struct{} {
	return l.doneCh
}

// Close stops dispatching and releases the subscription.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closeCh)
		err = l.sub.Close()
	})
	return err
}
