package geom

// Stack is a save/restore stack of model transforms. Operations compose
// onto the current matrix in local space, the way immediate-mode sketch
// APIs do: the last operation issued is the first applied to a point.
type Stack struct {
	cur   Mat4
	saved []Mat4
}

// NewStack returns a stack whose current transform is the identity.
func NewStack() *Stack {
	return &Stack{cur: Identity()}
}

// Current returns the active transform.
func (s *Stack) Current() Mat4 {
	return s.cur
}

// Depth returns the number of saved transforms.
func (s *Stack) Depth() int {
	return len(s.saved)
}

// Push saves the current transform.
func (s *Stack) Push() {
	s.saved = append(s.saved, s.cur)
}

// Pop restores the most recently saved transform. Popping an empty stack
// resets to the identity.
func (s *Stack) Pop() {
	if len(s.saved) == 0 {
		s.cur = Identity()
		return
	}
	s.cur = s.saved[len(s.saved)-1]
	s.saved = s.saved[:len(s.saved)-1]
}

// Reset clears all saved transforms and returns to the identity.
func (s *Stack) Reset() {
	s.cur = Identity()
	s.saved = s.saved[:0]
}

// Multiply composes m onto the current transform.
func (s *Stack) Multiply(m Mat4) {
	s.cur = s.cur.Mul(m)
}

func (s *Stack) RotateX(deg float64) { s.Multiply(RotationX(deg)) }
func (s *Stack) RotateY(deg float64) { s.Multiply(RotationY(deg)) }
func (s *Stack) RotateZ(deg float64) { s.Multiply(RotationZ(deg)) }

func (s *Stack) Scale(x, y, z float64) { s.Multiply(Scaling(x, y, z)) }

func (s *Stack) Translate(x, y, z float64) { s.Multiply(Translation(x, y, z)) }
