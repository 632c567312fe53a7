//go:build !linux && !darwin

package tuner

import "runtime"

// Detect reports the CPU count only; memory is left unknown.
func Detect() (SystemResources, error) {
	return SystemResources{CPUCores: runtime.NumCPU()}, nil
}
