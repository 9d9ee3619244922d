package transform

import (
	"image"
	"testing"
)

func TestApplyRect(t *testing.T) {
	r := Rect{0, 0, 10, 20}
	got := Scale(2, 0.5).Then(Translate(1, 1)).ApplyRect(r)
	want := Rect{1, 1, 21, 11}
	if !got.ApproxEqual(want) {
		t.Errorf("ApplyRect() = %v, want %v", got, want)
	}
	if got.W() != 20 || got.H() != 10 {
		t.Errorf("W,H = %v,%v, want 20,10", got.W(), got.H())
	}
}

func TestRectImageConversion(t *testing.T) {
	ir := image.Rect(3, 4, 1920, 1080)
	if got := RectFromImage(ir).Round(); got != ir {
		t.Errorf("Round(RectFromImage(%v)) = %v", ir, got)
	}
}
