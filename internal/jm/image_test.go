package jm

import (
	"image"
	"image/color"
	"testing"
)

func TestCalcSegmentationNum(t *testing.T) {
	tests := []struct {
		name       string
		scrambleID string
		photoID    string
		want       int
	}{
		{"below scramble id", "220980", "100", 0},
		{"invalid scramble", "abc", "300000", 0},
		{"invalid photo", "220980", "", 0},
		{"below first threshold", "220980", "250000", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calcSegmentationNum(tt.scrambleID, tt.photoID, "00001"); got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCalcSegmentationNumHashed(t *testing.T) {
	// Above the first threshold the count is hash derived: always even
	// and inside the modulus range.
	cases := []struct {
		photoID string
		max     int
	}{
		{"300000", 20}, // modulus 10
		{"500000", 16}, // modulus 8
	}
	for _, c := range cases {
		for _, name := range []string{"00001", "00002", "photo"} {
			got := calcSegmentationNum("220980", c.photoID, name)
			if got < 2 || got > c.max || got%2 != 0 {
				t.Fatalf("calcSegmentationNum(220980, %s, %s) = %d, want even in [2,%d]", c.photoID, name, got, c.max)
			}
		}
	}
}

func TestUnscrambleImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: uint8(y), A: 255})
		}
	}

	if got := unscrambleImage(src, 1); got != src {
		t.Fatal("num<=1 should return the source unchanged")
	}

	got := unscrambleImage(src, 4)
	if got.Bounds() != src.Bounds() {
		t.Fatalf("bounds = %v, want %v", got.Bounds(), src.Bounds())
	}
	// 10 rows in 4 strips: first strip takes the 2 remainder rows, so
	// the bottom source strip (rows 8,9 plus remainder) lands on top.
	r, _, _, _ := got.At(0, 0).RGBA()
	if uint8(r>>8) != 6 {
		t.Fatalf("top row came from source row %d, want 6", uint8(r>>8))
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	k := gaussianKernel(blurRadius)
	if len(k) != 2*blurRadius+1 {
		t.Fatalf("kernel size = %d", len(k))
	}
	sum := 0.0
	for _, v := range k {
		sum += v
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("kernel sum = %f, want ~1", sum)
	}
}
