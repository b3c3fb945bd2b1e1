//go:build amd64

package popcnt

import "golang.org/x/sys/cpu"

func init() {
	if cpu.X86.HasPOPCNT {
		distanceImpl = distanceUnrolled
		distanceImplDesc = "POPCNT"
	} else {
		distanceImpl = distanceTable
		distanceImplDesc = "Table"
	}
}
