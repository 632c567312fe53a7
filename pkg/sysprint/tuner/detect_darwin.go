//go:build darwin

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect uses sysctl hw.memsize. Available memory is estimated as half of
// total since macOS keeps most free memory in its file cache.
func Detect() (SystemResources, error) {
	res := SystemResources{CPUCores: runtime.NumCPU()}

	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return res, fmt.Errorf("sysctl hw.memsize: %w", err)
	}
	res.TotalRAM = int64(memsize)
	res.AvailableRAM = res.TotalRAM / 2
	return res, nil
}
