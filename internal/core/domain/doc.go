// Package domain defines the core domain model for filekv.
//
// Domain types are plain values without IO dependencies:
//
//   - Entry: index record mapping a key to its backing file and expiry
//   - Validation: key and payload constraints
//   - Errors: coded errors shared by every layer
package domain
