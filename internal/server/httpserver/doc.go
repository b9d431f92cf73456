// Package httpserver serves the filekv operational endpoints:
//
//	GET /metrics  Prometheus exposition
//	GET /healthz  liveness and store summary
//
// Data operations are not exposed over HTTP; they go through the local
// socket.
package httpserver
