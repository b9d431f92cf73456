// Package buildinfo exposes filekv version information.
//
// Release builds inject values through ldflags:
//
//	go build -ldflags "-X github.com/yndnr/filekv/internal/infra/buildinfo.Version=v1.0.0 \
//	    -X github.com/yndnr/filekv/internal/infra/buildinfo.Commit=abc123"
//
// Values left unset fall back to what the Go toolchain embedded in the
// binary (module version, VCS revision and time, Go version).
package buildinfo
