// Package zmq runs xqueue over ZeroMQ sockets (github.com/go-zeromq/zmq4).
//
// Transport name: "zmq"
//
// dealer maps to DEALER and router to ROUTER. req is a DEALER that adds the
// empty delimiter on send and strips it on receive, which is what a REQ socket
// puts on the wire. Addresses are ZeroMQ endpoints such as
// "tcp://127.0.0.1:5555" or "ipc:///tmp/jobs". Each socket gets a random
// identity so a ROUTER on the other side can address it.
//
// Config keys:
// - dial_retry: reconnect interval of dialed sockets (default 250ms)
// - buffer_size: per-channel inbox capacity (default 1024)
package zmq
