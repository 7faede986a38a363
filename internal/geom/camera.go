package geom

import "math"

// DefaultFovY is the vertical field of view of the default 3D viewport.
const DefaultFovY = 60.0

// Camera is a perspective camera on the +Z axis looking at the origin.
// The eye distance is chosen so the z=0 plane maps one unit to one pixel,
// with the origin at the viewport centre and +Y pointing down.
type Camera struct {
	Width, Height float64
	EyeZ          float64
	Near          float64
}

// NewCamera builds the default camera for a viewport.
func NewCamera(width, height int) Camera {
	h := float64(height)
	eye := (h / 2) / math.Tan(Radians(DefaultFovY/2))
	return Camera{
		Width:  float64(width),
		Height: h,
		EyeZ:   eye,
		Near:   eye / 10,
	}
}

// Project maps a view-space point to pixel coordinates. ok is false when
// the point is behind the near plane or not finite.
func (c Camera) Project(v Vec3) (x, y float64, ok bool) {
	if !v.Finite() {
		return 0, 0, false
	}
	dist := c.EyeZ - v.Z
	if dist < c.Near {
		return 0, 0, false
	}
	k := c.EyeZ / dist
	return c.Width/2 + v.X*k, c.Height/2 + v.Y*k, true
}
