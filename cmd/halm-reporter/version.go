package main

import "runtime/debug"

// version is stamped at release time with -ldflags "-X main.version=x.y.z".
var version string

// Version is the value reported by --version: the stamped release version
// when present, otherwise the module version recorded by go install,
// otherwise "dev".
var Version = func() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}()
