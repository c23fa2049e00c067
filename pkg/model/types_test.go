package model

import "testing"

func TestBatch_SetAt(t *testing.T) {
	b := NewBatch(3, 4)
	b.Set(1, 2, 0.5, -0.25)

	dx, dy := b.At(1, 2)
	if dx != 0.5 || dy != -0.25 {
		t.Errorf("At(1,2) = (%v, %v), want (0.5, -0.25)", dx, dy)
	}

	// Neighbouring steps untouched
	if dx, dy := b.At(1, 1); dx != 0 || dy != 0 {
		t.Errorf("At(1,1) = (%v, %v), want zeros", dx, dy)
	}
}

func TestBatch_CloneIsDeep(t *testing.T) {
	b := NewBatch(2, 2)
	b.Set(0, 0, 1, 2)

	c := b.Clone()
	c.Set(0, 0, 9, 9)

	if dx, _ := b.At(0, 0); dx != 1 {
		t.Errorf("Original batch mutated through clone: dx = %v", dx)
	}
}

func TestBatch_Flatten32Order(t *testing.T) {
	b := NewBatch(1, 2)
	b.Set(0, 0, 1, 2)
	b.Set(0, 1, 3, 4)

	flat := b.Flatten32()
	want := []float32{1, 2, 3, 4}
	for i, v := range want {
		if flat[i] != v {
			t.Errorf("flat[%d] = %v, want %v", i, flat[i], v)
		}
	}
}

func TestDepthMap_At(t *testing.T) {
	d := DepthMap{Width: 3, Height: 2, Data: []float32{0, 1, 2, 3, 4, 5}}
	if got := d.At(1, 2); got != 5 {
		t.Errorf("At(1,2) = %v, want 5", got)
	}
	if got := d.At(0, 1); got != 1 {
		t.Errorf("At(0,1) = %v, want 1", got)
	}
}
