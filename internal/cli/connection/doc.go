// Package connection talks to filekv-server over its local socket.
package connection
