package notify

import (
	"context"
	"sync"
	"time"

	"yaoundeconnect.org/internal/obs"
)

// Event types emitted by the directory.
const (
	EventPOICreated   = "poi.created"
	EventPOIApproved  = "poi.approved"
	EventPOIRejected  = "poi.rejected"
	EventUserVerify   = "user.verify_email"
	EventUserWelcome  = "user.welcome"
	EventUserPassword = "user.password_reset"
)

// Event is an opaque payload handed to sinks. Delivery is best-effort: a
// failed or dropped event never affects the mutation that produced it.
type Event struct {
	Type    string `json:"type"`
	POIID   string `json:"poi_id,omitempty"`
	POIName string `json:"poi_name,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
	Detail  string `json:"detail,omitempty"`

	// RecipientID identifies the account the event concerns (for moderation
	// events, the POI creator). Sinks that need an address resolve it through
	// a RecipientLookup when RecipientEmail is not already set.
	RecipientID    string    `json:"recipient_id,omitempty"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecipientLookup resolves an account id to its email address. Used by sinks
// that deliver to the user an event concerns.
type RecipientLookup func(ctx context.Context, userID string) (string, error)

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt Event) error
}

// Dispatcher is the asynchronous half of the two-phase contract: the
// transactional mutation returns first, then the event is queued here.
// Dispatch never blocks; when the queue is full the event is counted and
// dropped. Sink errors are logged and swallowed, by contract they must never
// propagate to the caller.
type Dispatcher struct {
	sinks   []Sink
	ch      chan Event
	timeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewDispatcher builds a dispatcher with the given queue capacity.
func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		sinks:   sinks,
		ch:      make(chan Event, buffer),
		timeout: 10 * time.Second,
		done:    make(chan struct{}),
	}
}

// Register adds a sink. Must be called before Start; it exists so sinks that
// depend on the stores can be attached after the stores (which themselves
// hold the dispatcher) are built.
func (d *Dispatcher) Register(sinks ...Sink) {
	d.sinks = append(d.sinks, sinks...)
}

// Start launches the delivery worker. Safe to call once.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// Dispatch queues an event without blocking. Returns false when the event
// was dropped because the queue is full.
func (d *Dispatcher) Dispatch(evt Event) bool {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	select {
	case d.ch <- evt:
		return true
	default:
		obs.NotifyDropped()
		obs.LogError("notify.dropped", nil, map[string]any{"type": evt.Type, "poi_id": evt.POIID})
		return false
	}
}

// Close stops the worker after draining queued events.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.ch)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for evt := range d.ch {
		d.deliver(evt)
	}
}

func (d *Dispatcher) deliver(evt Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := sink.Deliver(ctx, evt); err != nil {
			obs.NotifyDeliveryError(sink.Name())
			obs.LogError("notify.deliver", err, map[string]any{
				"sink": sink.Name(),
				"type": evt.Type,
			})
		}
		cancel()
	}
}
