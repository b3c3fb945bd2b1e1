//go:build arm64

package popcnt

import "golang.org/x/sys/cpu"

func init() {
	// CNT lives in the ASIMD unit.
	if cpu.ARM64.HasASIMD {
		distanceImpl = distanceUnrolled
		distanceImplDesc = "ASIMD"
	} else {
		distanceImpl = distanceTable
		distanceImplDesc = "Table"
	}
}
