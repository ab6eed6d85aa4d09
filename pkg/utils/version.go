// Package utils holds small helpers shared by the trickle commands: build
// information stamped in at link time and display string trimming.
package utils

import "fmt"

// Set with -ldflags "-X github.com/papercomputeco/trickle/pkg/utils.Version=..."
// by release builds.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// ClientName identifies this build in published turn events.
func ClientName() string {
	return "trickle/" + Version
}

// BuildInfo is the one-line summary printed by "trickle version".
func BuildInfo() string {
	return fmt.Sprintf("trickle %s (%s, built %s)", Version, Sha, Buildtime)
}
