package util

import "runtime"

// GetOptimalPoolSize returns the worker count for file conversion.
//
// Formula: min(max(runtime.NumCPU() * 2, 4), 32)
//
// Conversion is mostly I/O (mmap reads, atomic writes) with short CPU
// bursts, and syntax-aware mode adds CGO parsing, so two workers per core
// keep the cores busy while others wait.
//
// Examples:
//   - 1-2 cores: 4 (minimum enforced)
//   - 8 cores: 16
//   - 24 cores: 32 (capped)
//
// Used for both the workspace worker pool and the parser pool so that a
// worker never waits on a parser.
func GetOptimalPoolSize() int {
	cores := runtime.NumCPU()
	poolSize := cores * 2

	if poolSize < 4 {
		poolSize = 4
	}
	if poolSize > 32 {
		poolSize = 32
	}

	return poolSize
}

// GetOptimalPoolSizeWithOverride returns override when it is positive
// (the `workers` config key), otherwise GetOptimalPoolSize().
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
