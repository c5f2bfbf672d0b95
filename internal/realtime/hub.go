// Package realtime fans session events out to in-process subscribers.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Event types the hub emits on its own.
const (
	TypeState     = "STATE"
	TypeKeepAlive = "KEEPALIVE"
)

// Envelope is one message on a subscription.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrSubscriberDropped is returned by Subscribe when events outran the snapshot load.
var ErrSubscriberDropped = errors.New("subscriber dropped before snapshot")

// SnapshotFunc loads the current state sent first to a new subscriber.
type SnapshotFunc func(ctx context.Context) (interface{}, error)

// Options configures a Hub.
type Options struct {
	// Buffer is the per-subscriber queue length. A subscriber whose queue is full is dropped.
	Buffer int
	// KeepAlive is the interval of payload-less KEEPALIVE envelopes. Zero disables them.
	KeepAlive time.Duration
	Now       func() time.Time
}

// Hub delivers events to the subscribers of each session. Publishing never
// blocks on a subscriber and there is no replay: a subscriber only sees events
// published after it subscribed, preceded by a snapshot.
type Hub struct {
	logger runtime.Logger
	opts   Options

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub(logger runtime.Logger, opts Options) *Hub {
	if opts.Buffer <= 1 {
		opts.Buffer = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{
		logger: logger,
		opts:   opts,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscription is one listener on a session.
type Subscription struct {
	hub       *Hub
	sessionID string
	events    chan Envelope
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	live    bool
	closed  bool
	dropped bool
	backlog []Envelope
}

// Subscribe registers a listener and sends it the snapshot, then live events.
// Events published while the snapshot loads are queued behind it, so the
// listener may see a change both in the snapshot and as an event.
// The subscription ends when ctx is done, Close is called or it falls behind.
func (h *Hub) Subscribe(ctx context.Context, sessionID string, snapshot SnapshotFunc) (*Subscription, error) {
	sub := &Subscription{
		hub:       h,
		sessionID: sessionID,
		events:    make(chan Envelope, h.opts.Buffer),
		done:      make(chan struct{}),
	}
	h.add(sub)

	var state interface{}
	if snapshot != nil {
		var err error
		state, err = snapshot(ctx)
		if err != nil {
			sub.Close()
			return nil, err
		}
	}

	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return nil, ErrSubscriberDropped
	}
	sub.events <- Envelope{Type: TypeState, Payload: state, Timestamp: h.opts.Now()}
	for _, env := range sub.backlog {
		sub.events <- env
	}
	sub.backlog = nil
	sub.live = true
	sub.mu.Unlock()

	go sub.run(ctx)
	return sub, nil
}

// Publish delivers an event to every current subscriber of the session.
func (h *Hub) Publish(ctx context.Context, sessionID, eventType string, payload interface{}) error {
	env := Envelope{Type: eventType, Payload: payload, Timestamp: h.opts.Now()}

	h.mu.RLock()
	set := h.subs[sessionID]
	subs := make([]*Subscription, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.deliver(env) {
			h.logger.WithFields(map[string]interface{}{
				"session_id": sessionID,
				"event":      eventType,
			}).Warn("Dropping slow subscriber")
			sub.drop()
		}
	}
	return nil
}

// Subscribers returns the number of listeners on a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) add(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sub.sessionID] = set
	}
	set[sub] = struct{}{}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.sessionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.sessionID)
		}
	}
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan Envelope { return s.events }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) SessionID() string { return s.sessionID }

// Dropped reports whether the hub ended the subscription because its queue was full.
func (s *Subscription) Dropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}

func (s *Subscription) drop() {
	s.mu.Lock()
	s.dropped = true
	s.mu.Unlock()
	s.Close()
}

// deliver enqueues env without blocking. It reports false when the queue is full.
func (s *Subscription) deliver(env Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	if !s.live {
		// One slot is reserved for the snapshot.
		if len(s.backlog) >= cap(s.events)-1 {
			return false
		}
		s.backlog = append(s.backlog, env)
		return true
	}
	select {
	case s.events <- env:
		return true
	default:
		return false
	}
}

func (s *Subscription) run(ctx context.Context) {
	var tick <-chan time.Time
	if s.hub.opts.KeepAlive > 0 {
		ticker := time.NewTicker(s.hub.opts.KeepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case <-tick:
			if !s.deliver(Envelope{Type: TypeKeepAlive, Timestamp: s.hub.opts.Now()}) {
				s.hub.logger.WithField("session_id", s.sessionID).Warn("Dropping subscriber that stopped reading")
				s.drop()
				return
			}
		}
	}
}
