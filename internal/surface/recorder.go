package surface

import (
	"image/color"

	"github.com/talgya/rubbed-squares/internal/geom"
)

// OpKind identifies a recorded surface call.
type OpKind uint8

const (
	OpPush OpKind = iota
	OpPop
	OpTranslate
	OpRotateX
	OpRotateY
	OpRotateZ
	OpScale
	OpLine
)

// Op is one recorded surface call.
type Op struct {
	Kind  OpKind
	Args  [3]float64 // angle in Args[0] for rotations, x/y/z for scale and translate
	A, B  geom.Vec2  // line endpoints, local frame
	Color color.NRGBA
	Model geom.Mat4 // transform active when a line was drawn
}

// Recorder keeps every call in order instead of drawing. It tracks the
// transform stack so recorded lines carry the model matrix they saw.
type Recorder struct {
	Ops   []Op
	stack *geom.Stack
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{stack: geom.NewStack()}
}

func (r *Recorder) Push() {
	r.stack.Push()
	r.Ops = append(r.Ops, Op{Kind: OpPush})
}

func (r *Recorder) Pop() {
	r.stack.Pop()
	r.Ops = append(r.Ops, Op{Kind: OpPop})
}

func (r *Recorder) Translate(x, y, z float64) {
	r.stack.Translate(x, y, z)
	r.Ops = append(r.Ops, Op{Kind: OpTranslate, Args: [3]float64{x, y, z}})
}

func (r *Recorder) RotateX(deg float64) {
	r.stack.RotateX(deg)
	r.Ops = append(r.Ops, Op{Kind: OpRotateX, Args: [3]float64{deg}})
}

func (r *Recorder) RotateY(deg float64) {
	r.stack.RotateY(deg)
	r.Ops = append(r.Ops, Op{Kind: OpRotateY, Args: [3]float64{deg}})
}

func (r *Recorder) RotateZ(deg float64) {
	r.stack.RotateZ(deg)
	r.Ops = append(r.Ops, Op{Kind: OpRotateZ, Args: [3]float64{deg}})
}

func (r *Recorder) Scale(x, y, z float64) {
	r.stack.Scale(x, y, z)
	r.Ops = append(r.Ops, Op{Kind: OpScale, Args: [3]float64{x, y, z}})
}

func (r *Recorder) Line(a, b geom.Vec2, c color.NRGBA) {
	r.Ops = append(r.Ops, Op{Kind: OpLine, A: a, B: b, Color: c, Model: r.stack.Current()})
}

// Lines returns the recorded line draws in order.
func (r *Recorder) Lines() []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Kind == OpLine {
			out = append(out, op)
		}
	}
	return out
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind OpKind) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Depth returns the number of transforms currently saved.
func (r *Recorder) Depth() int {
	return r.stack.Depth()
}

// Current returns the active transform.
func (r *Recorder) Current() geom.Mat4 {
	return r.stack.Current()
}

// Reset discards all recorded calls and transforms.
func (r *Recorder) Reset() {
	r.Ops = r.Ops[:0]
	r.stack.Reset()
}

var _ Surface = (*Recorder)(nil)
