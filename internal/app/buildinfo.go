package app

// Build information populated via -ldflags at release time.
var (
	// BuildVersion is the semantic version of the built binary.
	BuildVersion = "0.1.0-dev"
	// BuildCommit is the VCS commit SHA associated with the build.
	BuildCommit = "unknown"
	// BuildDate is the ISO-8601 timestamp of the build.
	BuildDate = "unknown"
)

// VersionString is printed by `webbriefer --version`.
func VersionString() string {
	return BuildVersion + " (" + BuildCommit + ", " + BuildDate + ")"
}
