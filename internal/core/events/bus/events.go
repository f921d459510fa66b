package bus

import (
	"strconv"
	"time"
)

// Event types published by the physics layer.
const (
	TypeCollisionBegin = "collision.begin"
	TypeCollisionStay  = "collision.stay"
	TypeCollisionEnd   = "collision.end"
	// TypeTick carries a scene snapshot after every completed tick.
	TypeTick = "scene.tick"
)

// BodyTopic is the topic carrying the collision events of one body.
func BodyTopic(id uint32) string {
	return "body/" + strconv.FormatUint(uint64(id), 10)
}

type event struct {
	typ  string
	src  string
	tick uint64
	ts   time.Time
	data any
}

func (e event) Type() string         { return e.typ }
func (e event) Source() string       { return e.src }
func (e event) Tick() uint64         { return e.tick }
func (e event) Timestamp() time.Time { return e.ts }
func (e event) Data() any            { return e.data }

// NewEvent builds an Event stamped with the current wall time.
func NewEvent(typ, source string, tick uint64, data any) Event {
	return event{typ: typ, src: source, tick: tick, ts: time.Now(), data: data}
}
