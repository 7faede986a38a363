package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const tol = 1e-9

func assertVec3(t *testing.T, want, got Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol)
	assert.InDelta(t, want.Y, got.Y, tol)
	assert.InDelta(t, want.Z, got.Z, tol)
}

func TestRotations(t *testing.T) {
	x := Vec3{X: 1}
	y := Vec3{Y: 1}
	z := Vec3{Z: 1}

	assertVec3(t, y, RotationZ(90).Apply(x))
	assertVec3(t, z, RotationX(90).Apply(y))
	assertVec3(t, x, RotationY(90).Apply(z))
	assertVec3(t, x, RotationZ(360).Apply(x))
}

func TestMulOrder(t *testing.T) {
	// scale first, then rotate, then translate
	m := Translation(1, 1, 0).Mul(RotationZ(90)).Mul(Scaling(2, 2, 1))
	assertVec3(t, Vec3{X: 1, Y: 3}, m.Apply(Vec3{X: 1}))
}

func TestStackPushPop(t *testing.T) {
	s := NewStack()
	s.RotateZ(30)
	before := s.Current()

	s.Push()
	s.Scale(2, 3, 1)
	s.RotateX(45)
	assert.Equal(t, 1, s.Depth())
	assert.NotEqual(t, before, s.Current())

	s.Pop()
	assert.Equal(t, before, s.Current())
	assert.Zero(t, s.Depth())

	s.Pop()
	assert.Equal(t, Identity(), s.Current())
}

func TestDetXYCompounds(t *testing.T) {
	s := NewStack()
	for i := 0; i < 5; i++ {
		s.RotateZ(17)
		s.Scale(1.5, 0.5, 1)
	}
	assert.InDelta(t, math.Pow(0.75, 5), s.Current().DetXY(), tol)
}

func TestCameraProject(t *testing.T) {
	c := NewCamera(800, 600)
	assert.InDelta(t, 300/math.Tan(math.Pi/6), c.EyeZ, tol)

	x, y, ok := c.Project(Vec3{X: 10, Y: -20})
	assert.True(t, ok)
	assert.InDelta(t, 410, x, tol)
	assert.InDelta(t, 280, y, tol)

	// closer points spread out
	x, _, ok = c.Project(Vec3{X: 10, Z: c.EyeZ / 2})
	assert.True(t, ok)
	assert.InDelta(t, 420, x, tol)

	_, _, ok = c.Project(Vec3{Z: c.EyeZ})
	assert.False(t, ok)
	_, _, ok = c.Project(Vec3{X: math.Inf(1)})
	assert.False(t, ok)
}
