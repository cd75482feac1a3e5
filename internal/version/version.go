// Package version holds the build-time version string.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"
