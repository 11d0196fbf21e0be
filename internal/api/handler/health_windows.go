//go:build windows
// +build windows

package handler

// getDiskStats reports zeros on Windows. The service deploys on Linux;
// the stub only keeps cross-platform builds working.
func getDiskStats(path string) (total, free, used int64, usedPct float64) {
	return 0, 0, 0, 0
}
