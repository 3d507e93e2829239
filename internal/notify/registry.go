package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/guestdesk/concierge/internal/apperr"
	"github.com/guestdesk/concierge/internal/transport"
)

// HandlerFunc consumes the payload of one routed event.
type HandlerFunc func(payload json.RawMessage)

type ChannelState int

const (
	StateUnsubscribed ChannelState = iota
	StateSubscribing
	StateSubscribed
	StateUnsubscribing
)

func (s ChannelState) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateUnsubscribing:
		return "unsubscribing"
	default:
		return "unsubscribed"
	}
}

type subscription struct {
	state    ChannelState
	handlers map[string]HandlerFunc
	sub      transport.Subscription
}

// Registry owns the mapping from channel name to transport subscription:
// at most one transport subscription exists per name, and nothing else in
// the process mutates subscription state. It is constructed and disposed
// by whichever context owns the screen or session, never a singleton.
type Registry struct {
	mu        sync.Mutex
	transport transport.Transport
	logger    *slog.Logger
	channels  map[string]*subscription
	route     func(d transport.Delivery)
}

func NewRegistry(tr transport.Transport, logger *slog.Logger) *Registry {
	r := &Registry{
		transport: tr,
		logger:    logger,
		channels:  make(map[string]*subscription),
	}
	r.route = func(d transport.Delivery) {
		if !r.Dispatch(d.Channel, d.Event, d.Payload) {
			r.logger.Debug("event dropped, no handler bound", "channel", d.Channel, "event", d.Event)
		}
	}
	return r
}

// Use replaces the delivery path for inbound events, typically with
// Router.Route. Must be called before the first Subscribe.
func (r *Registry) Use(route func(d transport.Delivery)) {
	r.mu.Lock()
	r.route = route
	r.mu.Unlock()
}

// Subscribe is idempotent per channel name: the first caller establishes
// the transport subscription, later callers merge their handler bindings
// into the existing entry (same event name: the later handler wins) and
// share delivery. Returns a transport error and leaves the channel
// unsubscribed when the service refuses the subscription; the next
// Subscribe starts fresh.
func (r *Registry) Subscribe(ctx context.Context, name string, handlers map[string]HandlerFunc) (*Handle, error) {
	r.mu.Lock()
	if existing, ok := r.channels[name]; ok {
		for event, fn := range handlers {
			existing.handlers[event] = fn
		}
		r.mu.Unlock()
		return &Handle{name: name, registry: r}, nil
	}

	sub := &subscription{state: StateSubscribing, handlers: make(map[string]HandlerFunc, len(handlers))}
	for event, fn := range handlers {
		sub.handlers[event] = fn
	}
	r.channels[name] = sub
	r.mu.Unlock()

	tsub, err := r.transport.Subscribe(ctx, name, r.deliver)

	r.mu.Lock()
	current, ok := r.channels[name]
	if err != nil {
		if ok && current == sub {
			delete(r.channels, name)
		}
		r.mu.Unlock()
		r.logger.Error("channel subscribe failed", "channel", name, "error", err)
		return nil, apperr.ErrTransportSubscribe.Wrap(err)
	}
	if !ok || current != sub {
		// Unsubscribed while the acknowledgement was in flight; release
		// the transport binding we no longer own.
		r.mu.Unlock()
		go func() {
			if err := tsub.Unsubscribe(); err != nil {
				r.logger.Warn("transport unsubscribe failed", "channel", name, "error", err)
			}
		}()
		return nil, apperr.ErrTransportSubscribe
	}
	sub.state = StateSubscribed
	sub.sub = tsub
	r.mu.Unlock()

	r.logger.Info("channel subscribed", "channel", name)
	return &Handle{name: name, registry: r}, nil
}

// Unsubscribe removes all handler bindings synchronously; no handler fires
// for this channel once it returns. The transport teardown proceeds in the
// background and its failures are logged only. Safe to call repeatedly and
// on names that were never subscribed.
func (r *Registry) Unsubscribe(name string) {
	r.mu.Lock()
	sub, ok := r.channels[name]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.channels, name)
	sub.state = StateUnsubscribing
	sub.handlers = nil
	tsub := sub.sub
	r.mu.Unlock()

	r.logger.Info("channel unsubscribed", "channel", name)
	if tsub == nil {
		return
	}
	go func() {
		if err := tsub.Unsubscribe(); err != nil {
			r.logger.Warn("transport unsubscribe failed", "channel", name, "error", err)
		}
	}()
}

// UnsubscribeAll tears down every channel on context disposal. Handlers
// are unbound before any transport connection is released so no dangling
// callback fires mid-teardown.
func (r *Registry) UnsubscribeAll() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]*subscription)
	for _, sub := range channels {
		sub.state = StateUnsubscribing
		sub.handlers = nil
	}
	r.mu.Unlock()

	for name, sub := range channels {
		if sub.sub != nil {
			if err := sub.sub.Unsubscribe(); err != nil {
				r.logger.Warn("transport unsubscribe failed", "channel", name, "error", err)
			}
		}
	}
	if len(channels) > 0 {
		r.logger.Info("all channels unsubscribed", "count", len(channels))
	}
}

// Dispatch invokes the handler currently bound to (channel, event). The
// lookup happens at delivery time, so rebinding through Handle.Bind takes
// effect without touching the transport subscription. Reports whether a
// handler ran.
func (r *Registry) Dispatch(channel, event string, payload json.RawMessage) bool {
	r.mu.Lock()
	var fn HandlerFunc
	if sub, ok := r.channels[channel]; ok {
		fn = sub.handlers[event]
	}
	r.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(payload)
	return true
}

// Channels lists active channel names, sorted for stable output.
func (r *Registry) Channels() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

func (r *Registry) deliver(d transport.Delivery) {
	r.mu.Lock()
	route := r.route
	r.mu.Unlock()
	route(d)
}

// Handle is the opaque per-channel reference returned by Subscribe.
type Handle struct {
	name     string
	registry *Registry
}

func (h *Handle) Name() string {
	return h.name
}

// Bind points an event at a new handler. The transport binding is
// untouched; the next delivery sees fn.
func (h *Handle) Bind(event string, fn HandlerFunc) {
	r := h.registry
	r.mu.Lock()
	if sub, ok := r.channels[h.name]; ok && sub.handlers != nil {
		sub.handlers[event] = fn
	}
	r.mu.Unlock()
}

// Unbind drops a single event binding, leaving the channel subscribed.
func (h *Handle) Unbind(event string) {
	r := h.registry
	r.mu.Lock()
	if sub, ok := r.channels[h.name]; ok {
		delete(sub.handlers, event)
	}
	r.mu.Unlock()
}

func (h *Handle) State() ChannelState {
	r := h.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.channels[h.name]; ok {
		return sub.state
	}
	return StateUnsubscribed
}
