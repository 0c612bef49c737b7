package core

import (
	"math"
	"testing"
	"time"
)

func TestInRange(t *testing.T) {
	tests := []struct {
		name     string
		val      float64
		expected bool
	}{
		{"inside", 5, true},
		{"at min", -10, true},
		{"at max", 10, true},
		{"below min", -10.5, false},
		{"above max", 11, false},
		{"nan", math.NaN(), false},
		{"positive infinity", math.Inf(1), false},
		{"negative infinity", math.Inf(-1), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := InRange(tc.val, -10, 10); got != tc.expected {
				t.Errorf("InRange(%v) = %v, expected %v", tc.val, got, tc.expected)
			}
		})
	}
}

func TestVec2(t *testing.T) {
	v := NewVec2(3, 4)
	if v.IsZero() {
		t.Error("(3,4) should not be zero")
	}
	if !NewVec2(0, 0).IsZero() {
		t.Error("(0,0) should be zero")
	}
	if NewVec2(math.NaN(), 1).IsFinite() {
		t.Error("NaN component should not be finite")
	}
	if !v.IsFinite() {
		t.Error("(3,4) should be finite")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, min, max, expected int
	}{
		{5, 0, 10, 5},   // within range
		{-5, 0, 10, 0},  // below min
		{15, 0, 10, 10}, // above max
		{0, 0, 10, 0},   // at min
		{10, 0, 10, 10}, // at max
	}

	for _, tc := range tests {
		result := Clamp(tc.val, tc.min, tc.max)
		if result != tc.expected {
			t.Errorf("Clamp(%d, %d, %d) = %d, expected %d", tc.val, tc.min, tc.max, result, tc.expected)
		}
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, expected %v", c.Now(), start)
	}
	c.Advance(1500 * time.Millisecond)
	if got := c.Now().Sub(start); got != 1500*time.Millisecond {
		t.Errorf("elapsed = %v, expected 1.5s", got)
	}
}
