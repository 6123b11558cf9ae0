//go:build !darwin

package dispatcher

// platformVZAvailable is always false off macOS: the Virtualization
// framework vz binds to is Apple-only.
func platformVZAvailable() bool {
	return false
}
