package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus for simulation events.
//
// Handlers subscribe by Event.Type() within an optional topic; the default
// topic is "" and BodyTopic names the per-body topics. Delivery is
// synchronous, in the publisher's goroutine, and in subscription order, so a collision begin published before an end reaches
// every handler in that order. Handler errors are joined and returned.
type EventBus interface {
	Publish(event Event) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the subscription. Nil is ignored.
	Unsubscribe(Subscription) error

	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	PublishToTopic(topic string, event Event) error
	// PublishBatch delivers events in order on the default topic and joins
	// every handler error.
	PublishBatch(events ...Event) error

	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	Metrics() Metrics
}

// Event is an immutable message. Treat values as read-only.
type Event interface {
	Type() string
	Source() string
	// Tick is the simulation tick the event belongs to, zero if none.
	Tick() uint64
	Timestamp() time.Time
	Data() any
}

// EventHandler is invoked per delivered event.
type EventHandler func(event Event) error

// Subscription is a registered handler bound to a topic and event type.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Observer is notified about deliveries. Observers should return quickly.
type Observer interface {
	OnPublish(topic string, event Event)
	OnDelivered(topic string, event Event, handlers int, err error, took time.Duration)
}

type Metrics struct {
	Published         uint64 `json:"published"`
	DeliveredHandlers uint64 `json:"delivered_handlers"`
	Errors            uint64 `json:"errors"`
	SubscribersActive uint64 `json:"subscribers_active"`
	Topics            uint64 `json:"topics"`
}
