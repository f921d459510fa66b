// Package collision turns per-tick contact sets into begin, stay and end
// notifications and relays them to bodies and bus subscribers.
package collision

import (
	"sort"

	"github.com/zeusync/rigidbody/internal/core/physics"
)

// Pair identifies a collider pair independent of report order.
type Pair struct {
	A, B physics.ColliderRef
}

func less(a, b physics.ColliderRef) bool {
	if a.Body != b.Body {
		return a.Body < b.Body
	}
	return a.Collider < b.Collider
}

// MakePair orders the two sides canonically.
func MakePair(a, b physics.ColliderRef) Pair {
	if less(b, a) {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func (p Pair) less(o Pair) bool {
	if p.A != o.A {
		return less(p.A, o.A)
	}
	return less(p.B, o.B)
}

type touch struct {
	data      physics.CollisionData
	transient bool
}

// Tracker diffs the contact set of consecutive ticks. It is not safe for
// concurrent use; a backend owns one and drives it from its step.
type Tracker struct {
	active  map[Pair]physics.CollisionData
	current map[Pair]touch
	tick    uint64
}

func NewTracker() *Tracker {
	return &Tracker{
		active:  make(map[Pair]physics.CollisionData),
		current: make(map[Pair]touch),
	}
}

// BeginTick starts collecting contacts for tick.
func (t *Tracker) BeginTick(tick uint64) {
	t.tick = tick
	clear(t.current)
}

// Touch records that the pair in data is in contact at the end of the tick.
// Repeated reports for a pair within one tick merge their contact points.
func (t *Tracker) Touch(data physics.CollisionData) {
	t.record(data, false)
}

// TouchTransient records a contact that started and ended inside the tick,
// such as one found only by a swept sub-step.
func (t *Tracker) TouchTransient(data physics.CollisionData) {
	t.record(data, true)
}

func (t *Tracker) record(data physics.CollisionData, transient bool) {
	pair := MakePair(data.Colliders[0], data.Colliders[1])
	data = data.Clone()
	data.Tick = t.tick
	data.Colliders = [2]physics.ColliderRef{pair.A, pair.B}

	if prev, ok := t.current[pair]; ok {
		prev.data.Contacts = append(prev.data.Contacts, data.Contacts...)
		// A persistent report wins over a transient one.
		prev.transient = prev.transient && transient
		t.current[pair] = prev
		return
	}
	t.current[pair] = touch{data: data, transient: transient}
}

// EndTick compares the collected contacts with the previous tick and returns
// events ordered begin, then stay, then end; pairs are ordered by id inside
// each group. A transient touch of a new pair produces begin and end in the
// same tick.
func (t *Tracker) EndTick() []physics.CollisionEvent {
	var begins, stays, ends []pairEvent

	for pair, cur := range t.current {
		_, wasActive := t.active[pair]
		switch {
		case cur.transient && wasActive:
			ends = append(ends, pairEvent{pair, endData(cur.data)})
			delete(t.active, pair)
		case cur.transient:
			begins = append(begins, pairEvent{pair, cur.data})
			ends = append(ends, pairEvent{pair, endData(cur.data)})
		case wasActive:
			stays = append(stays, pairEvent{pair, cur.data})
			t.active[pair] = cur.data
		default:
			begins = append(begins, pairEvent{pair, cur.data})
			t.active[pair] = cur.data
		}
	}
	for pair, last := range t.active {
		if _, ok := t.current[pair]; ok {
			continue
		}
		last.Tick = t.tick
		ends = append(ends, pairEvent{pair, endData(last)})
		delete(t.active, pair)
	}

	out := make([]physics.CollisionEvent, 0, len(begins)+len(stays)+len(ends))
	out = appendSorted(out, physics.CollisionBegin, begins)
	out = appendSorted(out, physics.CollisionStay, stays)
	out = appendSorted(out, physics.CollisionEnd, ends)
	return out
}

// Forget drops every active pair involving body, returning end events for
// them. Used when a body is destroyed mid-contact.
func (t *Tracker) Forget(body physics.BodyID) []physics.CollisionEvent {
	var ends []pairEvent
	for pair, last := range t.active {
		if pair.A.Body != body && pair.B.Body != body {
			continue
		}
		last.Tick = t.tick
		ends = append(ends, pairEvent{pair, endData(last)})
		delete(t.active, pair)
	}
	return appendSorted(nil, physics.CollisionEnd, ends)
}

// Active reports the number of pairs currently in contact.
func (t *Tracker) Active() int { return len(t.active) }

type pairEvent struct {
	pair Pair
	data physics.CollisionData
}

func appendSorted(out []physics.CollisionEvent, kind physics.CollisionKind, in []pairEvent) []physics.CollisionEvent {
	sort.Slice(in, func(i, j int) bool { return in[i].pair.less(in[j].pair) })
	for _, e := range in {
		out = append(out, physics.CollisionEvent{Kind: kind, Data: e.data})
	}
	return out
}

func endData(d physics.CollisionData) physics.CollisionData {
	d.Contacts = nil
	return d
}
