package grid

import "testing"

func TestGetGridIndex(t *testing.T) {
	tests := []struct {
		x, y, cols int64
		want       int64
	}{
		// 64 cols (Standard)
		{0, 0, 64, 0},
		{1, 0, 64, 1},
		{63, 0, 64, 63},
		{0, 1, 64, 64},
		{1, 1, 64, 65},
		{63, 63, 64, 4095},

		// 32 cols (Low Res)
		{31, 0, 32, 31},
		{0, 1, 32, 32},
		{31, 31, 32, 1023},
	}

	for _, tc := range tests {
		if got := GetGridIndex(tc.x, tc.y, tc.cols); got != tc.want {
			t.Errorf("GetGridIndex(%d, %d, %d) = %d; want %d", tc.x, tc.y, tc.cols, got, tc.want)
		}
	}
}

func TestInBounds(t *testing.T) {
	tests := []struct {
		x, y int64
		want bool
	}{
		{0, 0, true},
		{63, 31, true},
		{64, 0, false},
		{0, 32, false},
		{-1, 0, false},
		{0, -1, false},
	}
	for _, tc := range tests {
		if got := InBounds(tc.x, tc.y, 64, 32); got != tc.want {
			t.Errorf("InBounds(%d, %d, 64, 32) = %v; want %v", tc.x, tc.y, got, tc.want)
		}
	}
}
