// Package redisstream carries xqueue frames over Redis Streams.
//
// Transport name: "redis-streams"
//
// Every channel owns one inbox stream. A listener at address A reads
// "<prefix>:A"; a channel dialed to A reads "<prefix>:A:<identity>" and is
// registered in the set "<prefix>:A:peers" while open. Each entry carries the
// sender's inbox key in "from" and the frames in "f0".."fN", so routers can
// address replies to the sender exactly like a socket identity.
//
// Config keys:
// - addr: "host:port" (default "127.0.0.1:6379")
// - prefix: key namespace (default "xqueue")
// - block: XREAD BLOCK duration (default 500ms)
// - batch_size: XREAD COUNT (default 128)
// - buffer_size: per-channel inbox capacity (default 1024)
// - max_len_approx: MAXLEN ~ trim of inbox streams (optional)
//
// Example builder usage:
//
//	client, _ := xqueue.NewBuilder().
//	    WithTransport(redisstream.TransportName, map[string]any{
//	        "addr":   "localhost:6379",
//	        "prefix": "jobs",
//	        "block":  "1s",
//	    }).
//	    Build()
package redisstream
