// Package intmath provides the integer intrinsics abs, min, max and pow.
// Results wrap to 32 bits the same way i32 arithmetic does.
package intmath

import (
	"context"

	"github.com/xirelogy/go-wasmrepl/internal/runtime"
)

func init() {
	runtime.Register(runtime.Spec{Name: "abs", Arity: 1, Handler: runAbs})
	runtime.Register(runtime.Spec{Name: "min", Arity: 2, Handler: runMin})
	runtime.Register(runtime.Spec{Name: "max", Arity: 2, Handler: runMax})
	runtime.Register(runtime.Spec{Name: "pow", Arity: 2, Handler: runPow})
}

func runAbs(_ context.Context, _ runtime.Host, args []int32) (int32, error) {
	return Abs(args[0]), nil
}

func runMin(_ context.Context, _ runtime.Host, args []int32) (int32, error) {
	return min(args[0], args[1]), nil
}

func runMax(_ context.Context, _ runtime.Host, args []int32) (int32, error) {
	return max(args[0], args[1]), nil
}

func runPow(_ context.Context, _ runtime.Host, args []int32) (int32, error) {
	return Pow(args[0], args[1]), nil
}

// Abs returns |x|. Abs(math.MinInt32) is math.MinInt32.
func Abs(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

// Pow raises base to exp with wrapping multiplication. A negative exponent
// truncates the fractional result toward zero, so only bases 1 and -1 give
// a nonzero answer.
func Pow(base, exp int32) int32 {
	if exp < 0 {
		switch base {
		case 1:
			return 1
		case -1:
			if exp%2 == 0 {
				return 1
			}
			return -1
		default:
			return 0
		}
	}
	result := int32(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}
