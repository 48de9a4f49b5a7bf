package tensor

import "testing"

func TestHWCToCHW(t *testing.T) {
	// 2x2 image with 3 channels, pixel value = 10*y + x + channel/10 pattern
	// encoded simply as unique values so we can track positions.
	in := &Tensor{
		Shape: []int{2, 2, 3},
		Data: []float32{
			0, 1, 2, // (0,0)
			10, 11, 12, // (0,1)
			20, 21, 22, // (1,0)
			30, 31, 32, // (1,1)
		},
	}

	out, err := in.HWCToCHW()
	if err != nil {
		t.Fatal(err)
	}

	wantShape := []int{3, 2, 2}
	for i, d := range wantShape {
		if out.Shape[i] != d {
			t.Fatalf("shape = %v, want %v", out.Shape, wantShape)
		}
	}

	// Channel 0 plane should be 0, 10, 20, 30.
	want := []float32{0, 10, 20, 30, 1, 11, 21, 31, 2, 12, 22, 32}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("data[%d] = %v, want %v", i, out.Data[i], v)
		}
	}
}

func TestHWCToCHW_WrongRank(t *testing.T) {
	if _, err := FromSlice([]float32{1, 2, 3}).HWCToCHW(); err == nil {
		t.Error("expected error for 1-D tensor")
	}
}

func TestSqueezeUnsqueeze(t *testing.T) {
	v := FromSlice([]float32{1, 2, 3})

	b := v.Unsqueeze()
	if len(b.Shape) != 2 || b.Shape[0] != 1 || b.Shape[1] != 3 {
		t.Fatalf("unsqueeze shape = %v", b.Shape)
	}

	s := b.Squeeze()
	if len(s.Shape) != 1 || s.Shape[0] != 3 {
		t.Fatalf("squeeze shape = %v", s.Shape)
	}

	// Squeeze on a non-1 leading dim is a no-op.
	same := v.Squeeze()
	if len(same.Shape) != 1 || same.Shape[0] != 3 {
		t.Fatalf("squeeze no-op shape = %v", same.Shape)
	}
}

func TestScale(t *testing.T) {
	v := FromSlice([]float32{2, 4, 255})
	v.Scale(1.0 / 255)
	if v.Data[2] != 1.0 {
		t.Errorf("Data[2] = %v, want 1", v.Data[2])
	}
}
