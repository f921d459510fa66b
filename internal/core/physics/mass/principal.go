package mass

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	jacobiSweeps  = 32
	jacobiEpsilon = 1e-12
)

// Diagonalize returns the principal moments of a symmetric inertia tensor and
// the rotation whose columns are the matching principal axes. An already
// diagonal tensor yields the identity rotation.
func Diagonalize(tensor mgl64.Mat3) (mgl64.Vec3, mgl64.Quat) {
	var a, v [3][3]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			a[row][col] = tensor.At(row, col)
		}
		v[row][row] = 1
	}

	for sweep := 0; sweep < jacobiSweeps; sweep++ {
		off := a[0][1]*a[0][1] + a[0][2]*a[0][2] + a[1][2]*a[1][2]
		scale := a[0][0]*a[0][0] + a[1][1]*a[1][1] + a[2][2]*a[2][2]
		if off <= jacobiEpsilon*jacobiEpsilon*math.Max(scale, 1) {
			break
		}
		for p := 0; p < 2; p++ {
			for q := p + 1; q < 3; q++ {
				rotate(&a, &v, p, q)
			}
		}
	}

	// keep the basis right handed so it converts to a proper rotation
	det := v[0][0]*(v[1][1]*v[2][2]-v[1][2]*v[2][1]) -
		v[0][1]*(v[1][0]*v[2][2]-v[1][2]*v[2][0]) +
		v[0][2]*(v[1][0]*v[2][1]-v[1][1]*v[2][0])
	if det < 0 {
		for row := 0; row < 3; row++ {
			v[row][2] = -v[row][2]
		}
	}

	principal := mgl64.Vec3{a[0][0], a[1][1], a[2][2]}
	basis := mgl64.Mat4{
		v[0][0], v[1][0], v[2][0], 0,
		v[0][1], v[1][1], v[2][1], 0,
		v[0][2], v[1][2], v[2][2], 0,
		0, 0, 0, 1,
	}
	return principal, mgl64.Mat4ToQuat(basis).Normalize()
}

// rotate applies one Jacobi rotation zeroing a[p][q].
func rotate(a, v *[3][3]float64, p, q int) {
	apq := a[p][q]
	if math.Abs(apq) < jacobiEpsilon {
		return
	}
	theta := (a[q][q] - a[p][p]) / (2 * apq)
	t := 1 / (math.Abs(theta) + math.Sqrt(theta*theta+1))
	if theta < 0 {
		t = -t
	}
	c := 1 / math.Sqrt(t*t+1)
	s := t * c

	for k := 0; k < 3; k++ {
		akp, akq := a[k][p], a[k][q]
		a[k][p] = c*akp - s*akq
		a[k][q] = s*akp + c*akq
	}
	for k := 0; k < 3; k++ {
		apk, aqk := a[p][k], a[q][k]
		a[p][k] = c*apk - s*aqk
		a[q][k] = s*apk + c*aqk
	}
	for k := 0; k < 3; k++ {
		vkp, vkq := v[k][p], v[k][q]
		v[k][p] = c*vkp - s*vkq
		v[k][q] = s*vkp + c*vkq
	}
}
