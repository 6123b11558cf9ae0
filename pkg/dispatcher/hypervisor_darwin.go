//go:build darwin

package dispatcher

import "github.com/Code-Hex/vz/v3"

// platformVZAvailable reports whether the host's macOS Virtualization
// framework can back a microvm workload.
func platformVZAvailable() bool {
	return vz.Available()
}
