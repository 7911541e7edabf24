package xqueue

import (
	"context"
	"strconv"
)

// Monitor queries the broker's management endpoint.
type Monitor struct {
	*endpoint
}

// Stats sends MONITOR, waits for the single reply and parses it into an
// ordered key/value mapping. A line without ": " fails with a ProtocolError.
func (m *Monitor) Stats(ctx context.Context) (*Stats, error) {
	ch, err := m.channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Send(ctx, [][]byte{[]byte(MonitorCommand)}); err != nil {
		return nil, err
	}
	reply, err := ch.Recv(ctx)
	if err != nil {
		return nil, err
	}
	if len(reply) != 1 {
		return nil, &ProtocolError{Reason: "monitor reply needs 1 frame, got " + strconv.Itoa(len(reply))}
	}
	return parseStats(string(reply[0]))
}
