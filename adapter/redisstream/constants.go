package redisstream

// Entry field names (avoid typos/allocs)
const (
	fieldFrom  = "from" // sender inbox key, the peer handle seen by routers
	fieldCount = "n"
	fieldFrame = "f" // f0..f{n-1}, raw bytes
)

const (
	peersSuffix = "peers"
	startID     = "0-0"
)
