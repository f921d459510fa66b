package mass

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Volumes and principal inertia per unit mass for the primitive collider
// shapes. Inertia is about the shape centre, along the shape axes.

func SphereVolume(radius float64) float64 {
	return 4.0 / 3.0 * math.Pi * radius * radius * radius
}

func SphereUnitInertia(radius float64) mgl64.Vec3 {
	i := 2.0 / 5.0 * radius * radius
	return mgl64.Vec3{i, i, i}
}

// BoxVolume takes half extents.
func BoxVolume(half mgl64.Vec3) float64 {
	return 8 * half[0] * half[1] * half[2]
}

// BoxUnitInertia takes half extents.
func BoxUnitInertia(half mgl64.Vec3) mgl64.Vec3 {
	x2, y2, z2 := half[0]*half[0], half[1]*half[1], half[2]*half[2]
	return mgl64.Vec3{
		(y2 + z2) / 3,
		(x2 + z2) / 3,
		(x2 + y2) / 3,
	}
}

// CapsuleVolume is for a capsule aligned with Y; halfHeight excludes the caps.
func CapsuleVolume(radius, halfHeight float64) float64 {
	return math.Pi*radius*radius*2*halfHeight + SphereVolume(radius)
}

// CapsuleUnitInertia is for a capsule aligned with Y; halfHeight excludes the caps.
func CapsuleUnitInertia(radius, halfHeight float64) mgl64.Vec3 {
	total := CapsuleVolume(radius, halfHeight)
	if total == 0 {
		return mgl64.Vec3{}
	}
	h := 2 * halfHeight
	r2 := radius * radius
	cyl := math.Pi * r2 * h / total
	caps := SphereVolume(radius) / total

	axial := cyl*r2/2 + caps*2*r2/5
	transverse := cyl*(h*h/12+r2/4) + caps*(2*r2/5+h*h/4+3*h*radius/8)
	return mgl64.Vec3{transverse, axial, transverse}
}
