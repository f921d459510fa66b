package mass

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Part is one collider's contribution, expressed in the body frame.
type Part struct {
	// Mass is density times volume. May be zero.
	Mass   float64
	Volume float64
	// Position and Rotation place the shape centre and axes in the body frame.
	Position mgl64.Vec3
	Rotation mgl64.Quat
	// UnitInertia holds the principal inertia per unit mass about the shape centre.
	UnitInertia mgl64.Vec3
}

// Properties is an aggregated mass distribution.
type Properties struct {
	Mass         float64
	CenterOfMass mgl64.Vec3
	// Rotation orients the principal axes in the body frame.
	Rotation mgl64.Quat
	// Inertia holds principal moments along the axes given by Rotation.
	Inertia mgl64.Vec3
}

// Aggregate combines parts into a single mass distribution.
//
// With autoMass the total is the sum of part masses. Otherwise explicitMass is
// spread over the parts in proportion to their own masses, falling back to
// volumes and then to equal shares when those are all zero. ok is false when
// parts is empty.
func Aggregate(parts []Part, autoMass bool, explicitMass float64) (props Properties, ok bool) {
	if len(parts) == 0 {
		return Properties{Rotation: mgl64.QuatIdent()}, false
	}

	masses := distribute(parts, autoMass, explicitMass)

	var total float64
	for _, m := range masses {
		total += m
	}

	com := centroid(parts, masses, total)

	var tensor mgl64.Mat3
	for i, p := range parts {
		if masses[i] == 0 {
			continue
		}
		tensor = tensor.Add(partTensor(p, masses[i], com))
	}

	principal, rotation := Diagonalize(tensor)
	return Properties{
		Mass:         total,
		CenterOfMass: com,
		Rotation:     rotation,
		Inertia:      principal,
	}, true
}

func distribute(parts []Part, autoMass bool, explicitMass float64) []float64 {
	masses := make([]float64, len(parts))
	var sum float64
	for i, p := range parts {
		masses[i] = p.Mass
		sum += p.Mass
	}
	if autoMass {
		return masses
	}

	if sum == 0 {
		for i, p := range parts {
			masses[i] = p.Volume
			sum += p.Volume
		}
	}
	if sum == 0 {
		for i := range masses {
			masses[i] = 1
		}
		sum = float64(len(masses))
	}

	scale := explicitMass / sum
	for i := range masses {
		masses[i] *= scale
	}
	return masses
}

func centroid(parts []Part, masses []float64, total float64) mgl64.Vec3 {
	var com mgl64.Vec3
	if total == 0 {
		for _, p := range parts {
			com = com.Add(p.Position)
		}
		return com.Mul(1 / float64(len(parts)))
	}
	for i, p := range parts {
		com = com.Add(p.Position.Mul(masses[i]))
	}
	return com.Mul(1 / total)
}

// partTensor is the part's inertia tensor about com, in the body frame.
func partTensor(p Part, m float64, com mgl64.Vec3) mgl64.Mat3 {
	rot := p.Rotation
	if rot.Len() == 0 {
		rot = mgl64.QuatIdent()
	}
	r := rot.Normalize().Mat4().Mat3()
	local := mgl64.Diag3(p.UnitInertia.Mul(m))
	rotated := r.Mul3(local).Mul3(r.Transpose())
	return rotated.Add(ParallelAxis(m, p.Position.Sub(com)))
}

// ParallelAxis is the term m(|d|²I - d dᵀ) shifting a tensor by offset d.
func ParallelAxis(m float64, d mgl64.Vec3) mgl64.Mat3 {
	d2 := d.Dot(d)
	outer := d.OuterProd3(d)
	return mgl64.Diag3(mgl64.Vec3{d2, d2, d2}).Sub(outer).Mul(m)
}
