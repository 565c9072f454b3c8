package version

// Version is the application version, overridden at build time with
// -ldflags "-X github.com/wcpos/siteconnect/internal/version.Version=...".
var Version = "0.1.0-dev"

// GitCommit is set at build time.
var GitCommit = ""

// FullVersion returns the version with the commit when known.
func FullVersion() string {
	if GitCommit == "" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}
