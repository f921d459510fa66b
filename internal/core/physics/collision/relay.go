package collision

import (
	"errors"

	"github.com/zeusync/rigidbody/internal/core/events/bus"
	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics"
)

// Lookup resolves a physics id to the body that should receive events.
type Lookup func(id physics.BodyID) (physics.Internal, bool)

// Relay fans collision events out to both bodies of each pair and then
// publishes them on the bus. Every recipient gets its own copy of the data.
type Relay struct {
	lookup Lookup
	bus    bus.EventBus
	logger log.Log
}

// NewRelay builds a relay. eventBus may be nil when only per-body listeners
// are needed.
func NewRelay(lookup Lookup, eventBus bus.EventBus, logger log.Log) *Relay {
	return &Relay{
		lookup: lookup,
		bus:    eventBus,
		logger: log.OrNop(logger).With(log.String("component", "collision_relay")),
	}
}

// Dispatch delivers events in order to the bodies involved, then publishes
// them as one batch on the default topic and once more on each body's
// topic. Bus handler errors are joined and returned after every event was
// delivered.
func (r *Relay) Dispatch(events []physics.CollisionEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]bus.Event, 0, len(events))
	for _, ev := range events {
		r.deliver(ev)
		msgs = append(msgs, bus.NewEvent(EventType(ev.Kind), "physics", ev.Data.Tick, ev.Data.Clone()))
	}
	if r.bus == nil {
		return nil
	}

	all := r.bus.PublishBatch(msgs...)
	for i, ev := range events {
		a, b := ev.Data.Colliders[0].Body, ev.Data.Colliders[1].Body
		for _, id := range [2]physics.BodyID{a, b} {
			if id == 0 || (id == b && a == b) {
				continue
			}
			if err := r.bus.PublishToTopic(bus.BodyTopic(uint32(id)), msgs[i]); err != nil {
				all = errors.Join(all, err)
			}
		}
	}
	if all != nil {
		r.logger.Warn("collision subscribers failed", log.Error(all))
	}
	return all
}

func (r *Relay) deliver(ev physics.CollisionEvent) {
	a, b := ev.Data.Colliders[0].Body, ev.Data.Colliders[1].Body
	r.deliverTo(a, ev)
	if b != a {
		r.deliverTo(b, ev)
	}
}

func (r *Relay) deliverTo(id physics.BodyID, ev physics.CollisionEvent) {
	if r.lookup == nil || id == 0 {
		return
	}
	body, ok := r.lookup(id)
	if !ok {
		r.logger.Debug("collision for unknown body", log.BodyID(uint32(id)), log.String("kind", ev.Kind.String()))
		return
	}
	body.DeliverCollision(ev.Kind, ev.Data.Clone())
}

// EventType maps a collision kind to its bus event type.
func EventType(kind physics.CollisionKind) string {
	switch kind {
	case physics.CollisionBegin:
		return bus.TypeCollisionBegin
	case physics.CollisionStay:
		return bus.TypeCollisionStay
	default:
		return bus.TypeCollisionEnd
	}
}
