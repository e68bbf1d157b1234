// Package version exposes build information, set at link time:
//
//	go build -ldflags "-X github.com/farcloser/cochlea/version.version=v0.1.0 -X github.com/farcloser/cochlea/version.commit=$(git rev-parse --short HEAD)"
package version

//nolint:gochecknoglobals // overridden by ldflags
var (
	name    = "cochlea"
	version = "dev"
	commit  = "unknown"
)

// Name returns the program name.
func Name() string {
	return name
}

// Version returns the release version, or "dev" for local builds.
func Version() string {
	return version
}

// Commit returns the source revision the binary was built from.
func Commit() string {
	return commit
}
