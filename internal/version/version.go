// ABOUTME: Build and product identification
// ABOUTME: Reported by the version command, mDNS TXT records and the control hello
package version

// Version is overridden at build time with -ldflags "-X ...version.Version=v1.2.3".
var Version = "0.1.0"

const (
	Product      = "Rehearsal Audio Engine"
	Manufacturer = "Choirless"
)

// String returns the product and version on one line.
func String() string {
	return Product + " " + Version
}
