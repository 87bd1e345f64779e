package version

// overwritten at build time via -ldflags
var (
	Version     = "dev"
	GitCommit   = ""
	FullVersion = composeFullVersion()
)

func composeFullVersion() string {
	if GitCommit != "" {
		return Version + " (" + GitCommit + ")"
	}
	return Version
}
