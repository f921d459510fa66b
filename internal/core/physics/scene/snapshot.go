package scene

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/rigidbody/internal/core/physics"
)

// Snapshot is the state of every body after one tick. It is what the
// stream server broadcasts and the replay log stores.
type Snapshot struct {
	Tick   uint64        `json:"tick"`
	Time   float64       `json:"time"`
	Digest uint64        `json:"digest"`
	Bodies []BodyState   `json:"bodies"`
	Events []EventRecord `json:"events,omitempty"`
}

// BodyState holds one body. Rotation is stored as w, x, y, z.
type BodyState struct {
	ID        uint32     `json:"id"`
	Position  [3]float64 `json:"position"`
	Rotation  [4]float64 `json:"rotation"`
	Linear    [3]float64 `json:"linear_velocity"`
	Angular   [3]float64 `json:"angular_velocity"`
	Sleeping  bool       `json:"sleeping,omitempty"`
	Kinematic bool       `json:"kinematic,omitempty"`
}

// EventRecord is a collision notification without its contact points.
type EventRecord struct {
	Kind      string    `json:"kind"`
	Bodies    [2]uint32 `json:"bodies"`
	Colliders [2]uint64 `json:"colliders"`
	Contacts  int       `json:"contacts"`
}

func captureBodies(bodies []physics.Rigidbody) []BodyState {
	out := make([]BodyState, 0, len(bodies))
	for _, rb := range bodies {
		p, q := rb.Position(), rb.Rotation()
		v, w := rb.Velocity(), rb.AngularVelocity()
		out = append(out, BodyState{
			ID:        uint32(rb.PhysicsID()),
			Position:  [3]float64{p[0], p[1], p[2]},
			Rotation:  [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
			Linear:    [3]float64{v[0], v[1], v[2]},
			Angular:   [3]float64{w[0], w[1], w[2]},
			Sleeping:  rb.IsSleeping(),
			Kinematic: rb.IsKinematic(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func recordEvents(events []physics.CollisionEvent) []EventRecord {
	if len(events) == 0 {
		return nil
	}
	out := make([]EventRecord, len(events))
	for i, e := range events {
		c := e.Data.Colliders
		out[i] = EventRecord{
			Kind:      e.Kind.String(),
			Bodies:    [2]uint32{uint32(c[0].Body), uint32(c[1].Body)},
			Colliders: [2]uint64{uint64(c[0].Collider), uint64(c[1].Collider)},
			Contacts:  len(e.Data.Contacts),
		}
	}
	return out
}

// Digest hashes body states in id order. Two runs fed the same commands
// produce the same digest tick for tick.
func Digest(bodies []BodyState) uint64 {
	h := xxhash.New()
	var buf [8]byte
	write := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	for _, b := range bodies {
		write(uint64(b.ID))
		for _, v := range b.Position {
			write(math.Float64bits(v))
		}
		for _, v := range b.Rotation {
			write(math.Float64bits(v))
		}
		for _, v := range b.Linear {
			write(math.Float64bits(v))
		}
		for _, v := range b.Angular {
			write(math.Float64bits(v))
		}
		var flags uint64
		if b.Sleeping {
			flags |= 1
		}
		if b.Kinematic {
			flags |= 2
		}
		write(flags)
	}
	return h.Sum64()
}
