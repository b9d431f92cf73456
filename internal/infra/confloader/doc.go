// Package confloader loads filekv configuration.
//
// Values come from, in increasing priority:
//
//  1. Defaults already present in the target struct
//  2. A YAML file
//  3. FILEKV_ environment variables
//  4. Explicit overrides (command-line flags)
//
// Environment variables use a double underscore between path segments so
// that keys containing underscores survive the mapping:
//
//	FILEKV_STORAGE__QUOTA_BYTES=1048576  ->  storage.quota_bytes
//	FILEKV_SERVER__LOCAL__PATH=/run/kv   ->  server.local.path
//
// Watcher reports changes to a single configuration file so that the
// daemon can re-apply the settings that are safe to change at runtime.
package confloader
