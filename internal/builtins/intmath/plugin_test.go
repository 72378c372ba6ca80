package intmath

import (
	"context"
	"math"
	"testing"

	"github.com/xirelogy/go-wasmrepl/internal/runtime"
)

func TestPow(t *testing.T) {
	cases := []struct {
		base, exp, want int32
	}{
		{2, 10, 1024},
		{-3, 3, -27},
		{7, 0, 1},
		{0, 0, 1},
		{2, -1, 0},
		{-1, -3, -1},
		{-1, -4, 1},
		{2, 31, math.MinInt32},
		{2, 32, 0},
	}
	for _, tc := range cases {
		if got := Pow(tc.base, tc.exp); got != tc.want {
			t.Fatalf("Pow(%d, %d): expected %d, got %d", tc.base, tc.exp, tc.want, got)
		}
	}
}

func TestAbsWraps(t *testing.T) {
	if got := Abs(-5); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := Abs(math.MinInt32); got != math.MinInt32 {
		t.Fatalf("expected MinInt32, got %d", got)
	}
}

func TestRegistered(t *testing.T) {
	for name, arity := range map[string]int{"abs": 1, "min": 2, "max": 2, "pow": 2} {
		spec, ok := runtime.LookupByName(name)
		if !ok || spec.Arity != arity {
			t.Fatalf("expected %s/%d to be registered, got %+v", name, arity, spec)
		}
	}
	spec, _ := runtime.LookupByName("min")
	if got, _ := spec.Handler(context.Background(), nil, []int32{3, -4}); got != -4 {
		t.Fatalf("expected min(3, -4) = -4, got %d", got)
	}
}
