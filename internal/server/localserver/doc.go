// Package localserver serves the filekv store over a Unix domain socket.
//
// The protocol is newline-delimited JSON. Each request line is answered by
// exactly one response line on the same connection, in order:
//
//	-> {"id":"1","op":"put","key":"user1","data":"{\"a\":1}","ttl_ms":1000}
//	<- {"id":"1","ok":true}
//	-> {"op":"get","key":"user1"}
//	<- {"id":"01J...","ok":true,"data":"{\"a\":1}"}
//	-> {"op":"get","key":"nope"}
//	<- {"id":"01J...","ok":false,"code":"FK-KEY-4040","message":"key not found or expired"}
//
// Requests without an id are assigned a ULID. Access control is left to
// the file permissions of the socket, which is created mode 0600.
package localserver
