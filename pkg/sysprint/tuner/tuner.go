// Package tuner sizes the scanner's worker pool from the host's resources.
package tuner

// Worker limits.
const (
	minWorkers = 2
	maxWorkers = 32

	// lowMemory is the available-RAM threshold below which the pool is
	// halved, since every worker holds an open file and a read buffer.
	lowMemory = 1 << 30
)

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the available (free) RAM in bytes. May be an estimate.
	AvailableRAM int64
}

// Workers returns the walk/hash pool size. A positive override wins, capped
// at the maximum. Otherwise hashing is treated as I/O bound and given two
// workers per core.
func Workers(res SystemResources, override int) int {
	if override > 0 {
		return min(override, maxWorkers)
	}

	n := res.CPUCores * 2
	if res.AvailableRAM > 0 && res.AvailableRAM < lowMemory {
		n /= 2
	}
	return min(max(n, minWorkers), maxWorkers)
}

// AutoWorkers detects resources and returns Workers(res, override).
func AutoWorkers(override int) int {
	res, _ := Detect()
	return Workers(res, override)
}
