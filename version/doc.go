// Package version exposes the emhttp build version.
//
// Version and commit are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/eranb/em-aws/version.Version=1.0.0" ./cmd/emhttp
//
// When unset, the commit and build time fall back to the VCS stamps
// recorded by the Go toolchain.
package version
