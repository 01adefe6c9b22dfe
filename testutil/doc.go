// Package testutil provides deterministic test data for volume tests.
//
// It is intended for tests and benchmarks only.
//
//	rng := testutil.NewRNG(seed)
//	data := rng.RandomBytes(2500)
//	name := rng.RandomName() // e.g. "K3Q.TX"
package testutil
