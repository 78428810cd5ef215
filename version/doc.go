// Package version reports the build version of photoflow.
//
// Values are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/photoflow/version.Version=1.2.0" ./cmd/photoflow
//
// Missing values fall back to the module build info recorded by the Go
// toolchain.
package version
