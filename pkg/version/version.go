package version

import "runtime/debug"

// version is set at build time with
// -ldflags "-X github.com/cbodonnell/worldgate/pkg/version.version=v1.2.3"
var version = ""

// Get returns the build version, falling back to the module version recorded
// by the Go toolchain.
func Get() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}
