// Command filekv-server runs the filekv store as a daemon.
//
// It serves the store over a local Unix socket, exposes /metrics and
// /healthz over HTTP, sweeps expired keys in the background and, when a
// journal engine is configured, rebuilds its index on start.
//
// Usage:
//
//	filekv-server [--config filekv.yaml] [--log-level debug]
//
// Configuration is read from the YAML file and FILEKV_ environment
// variables. Changing log.level in the file takes effect without a restart.
package main
