package notify

import (
	"encoding/json"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/guestdesk/concierge/internal/transport"
)

// Alert is what the notification presenter receives for each routed event.
type Alert struct {
	Channel string
	Event   string
	Payload json.RawMessage
}

// Presenter turns routed events into user-visible alerts. It consumes
// router output only and never touches registry or counter state.
type Presenter interface {
	Notify(a Alert)
}

// Router resolves inbound deliveries against the registry's current
// handler bindings and forwards them to the presenter. Unknown events are
// dropped at debug level: the server may emit types this client version
// does not understand yet.
type Router struct {
	registry  *Registry
	presenter Presenter
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// Presenter alerts are capped so an event storm degrades to fewer toasts,
// not a frozen UI. Counter updates are not limited.
const (
	alertsPerSecond = 10
	alertBurst      = 20
)

func NewRouter(registry *Registry, presenter Presenter, logger *slog.Logger) *Router {
	return &Router{
		registry:  registry,
		presenter: presenter,
		limiter:   rate.NewLimiter(alertsPerSecond, alertBurst),
		logger:    logger,
	}
}

// Route dispatches one delivery. Handlers are looked up at delivery time,
// so rebinding never requires resubscription.
func (r *Router) Route(d transport.Delivery) {
	handled := r.registry.Dispatch(d.Channel, d.Event, d.Payload)
	if !handled {
		r.logger.Debug("event dropped, no handler bound", "channel", d.Channel, "event", d.Event)
		return
	}

	if r.presenter == nil {
		return
	}
	if !r.limiter.Allow() {
		r.logger.Debug("alert suppressed by rate limit", "channel", d.Channel, "event", d.Event)
		return
	}
	r.presenter.Notify(Alert{Channel: d.Channel, Event: d.Event, Payload: d.Payload})
}
