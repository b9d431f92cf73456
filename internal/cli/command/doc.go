// Package command defines the filekv-cli commands.
//
// Every command talks to a running filekv-server over its local socket.
// Results are printed in the format selected by --output; failures exit
// non-zero with a code derived from the server's error code.
package command
