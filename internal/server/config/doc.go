// Package config defines the filekv-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: defaults and conversion to component configs
//   - verify.go: validation
//   - sanitize.go: normalization applied after loading
//
// Configuration is loaded through internal/infra/confloader from a YAML
// file and FILEKV_ environment variables.
package config
