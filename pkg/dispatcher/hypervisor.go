package dispatcher

import (
	"os/exec"
	"time"

	"github.com/containerd/platforms"
	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

// DetectCapabilities builds the capability map §6.2's auto-registration
// path attaches to a newly-seen node: OS, architecture, and whichever
// hypervisors this host can plausibly run microvm workloads under.
func DetectCapabilities() map[string]string {
	spec := platforms.DefaultSpec()

	caps := map[string]string{
		"os":   spec.OS,
		"arch": spec.Architecture,
	}

	if hv := detectHypervisors(); len(hv) > 0 {
		caps["hypervisors"] = joinComma(hv)
	}

	return caps
}

// detectHypervisors probes for the hypervisor backends this module
// knows how to report capability for. It never launches a VM; it only
// answers "could this host run one". Actual VM lifecycle management is
// out of scope for this module (see the executor protocol in §6.3).
func detectHypervisors() []string {
	var out []string

	if _, err := exec.LookPath("limactl"); err == nil {
		out = append(out, "lima")
	}
	if libvirtReachable() {
		out = append(out, "libvirt")
	}
	if hv := platformVZAvailable(); hv {
		out = append(out, "vz")
	}

	return out
}

// libvirtReachable attempts a short-lived connection to the local
// libvirtd socket via go-libvirt, the same client library an agent
// would use to actually drive a libvirt-backed microvm. A successful
// connect-then-disconnect is all this module needs: it is a
// capability probe, not a session.
func libvirtReachable() bool {
	dialer := dialers.NewLocal(dialers.WithSocket("/var/run/libvirt/libvirt-sock"), dialers.WithRemoteTimeout(500*time.Millisecond))
	l := libvirt.NewWithDialer(dialer)
	if err := l.Connect(); err != nil {
		return false
	}
	defer func() { _ = l.Disconnect() }()
	return true
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
