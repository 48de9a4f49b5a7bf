// Package tensor provides the minimal dense tensor used to carry
// observations and actions between the robot, the policy, and the recorder.
package tensor

import "fmt"

// Tensor is a dense float32 array with a row-major shape.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New creates a zero-filled tensor with the given shape.
func New(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, n),
	}
}

// FromSlice wraps data in a 1-D tensor without copying.
func FromSlice(data []float32) *Tensor {
	return &Tensor{Shape: []int{len(data)}, Data: data}
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float32(nil), t.Data...),
	}
	return out
}

// Len returns the total number of elements.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Scale multiplies every element by f in place and returns the tensor.
func (t *Tensor) Scale(f float32) *Tensor {
	for i := range t.Data {
		t.Data[i] *= f
	}
	return t
}

// HWCToCHW converts an interleaved [H,W,C] image to planar [C,H,W] layout.
func (t *Tensor) HWCToCHW() (*Tensor, error) {
	if len(t.Shape) != 3 {
		return nil, fmt.Errorf("hwc to chw: want 3 dims, got shape %v", t.Shape)
	}
	h, w, c := t.Shape[0], t.Shape[1], t.Shape[2]
	out := New(c, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				out.Data[ch*h*w+y*w+x] = t.Data[y*w*c+x*c+ch]
			}
		}
	}
	return out, nil
}

// Unsqueeze returns a view with a leading dimension of size 1 added.
func (t *Tensor) Unsqueeze() *Tensor {
	return &Tensor{
		Shape: append([]int{1}, t.Shape...),
		Data:  t.Data,
	}
}

// Squeeze returns a view with a leading dimension of size 1 removed.
// It is a no-op when the leading dimension is not 1.
func (t *Tensor) Squeeze() *Tensor {
	if len(t.Shape) == 0 || t.Shape[0] != 1 {
		return t
	}
	return &Tensor{
		Shape: append([]int(nil), t.Shape[1:]...),
		Data:  t.Data,
	}
}
