package graphdbtest

import (
	"context"
)

func IsPrime(x int) bool {
	if x < 2 {
		return false
	}
	for i := 2; i*i <= x; i++ {
		if x%i == 0 {
			return false
		}
	}
	return true
}

// Lattice calls add for every edge b -(a/b)-> a of the divisor lattice
// of the numbers below max, where a/b is prime. The edges are generated
// in ascending order of a and then b.
func Lattice(ctx context.Context, max int, add func(ctx context.Context, from, factor, to int) error) error {
	for a := 2; a < max; a++ {
		for b := 1; b < a; b++ {
			if a%b == 0 && IsPrime(a/b) {
				if err := add(ctx, b, a/b, a); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
