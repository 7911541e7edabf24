package xqueue

import (
	"strconv"
	"strings"
)

// Wire tokens.
const (
	StatusOK       = "OK"
	MonitorCommand = "MONITOR"
	statsSeparator = ": "
)

// Frame positions of a broker to consumer delivery:
// [peer, id, sentTime, ackTimeout, "", payload...].
const (
	deliveryPeer = iota
	deliveryID
	deliverySentTime
	deliveryAckTimeout
	deliveryDelimiter
	deliveryPayload
)

// encodeProduce frames a producer request as [id, "", payload...].
func encodeProduce(msg *Message) [][]byte {
	out := make([][]byte, 0, 2+len(msg.payload))
	out = append(out, []byte(msg.id), []byte{})
	return append(out, msg.payload...)
}

// decodeAccept reads a broker accept reply [_, id, status].
func decodeAccept(frames [][]byte) (id, status string, err error) {
	if len(frames) < 3 {
		return "", "", &ProtocolError{Reason: "accept reply needs 3 frames, got " + strconv.Itoa(len(frames))}
	}
	return string(frames[1]), string(frames[2]), nil
}

// EncodeAccept builds the accept reply a broker sends to a producer.
func EncodeAccept(id, status string) [][]byte {
	return [][]byte{{}, []byte(id), []byte(status)}
}

// EncodeDelivery builds the frames a consumer receives for msg. The peer frame
// is normally prepended by the transport; it is included here when msg carries
// one.
func EncodeDelivery(msg *Message) [][]byte {
	out := make([][]byte, 0, deliveryPayload+len(msg.payload))
	if msg.peer != nil {
		out = append(out, msg.peer)
	}
	out = append(out,
		[]byte(msg.id),
		[]byte(strconv.FormatInt(msg.sentTime, 10)),
		[]byte(strconv.FormatInt(msg.ackTimeout, 10)),
		[]byte{},
	)
	return append(out, msg.payload...)
}

// decodeDelivery rebuilds a Message from [peer, id, sentTime, ackTimeout, "", payload...].
func decodeDelivery(frames [][]byte) (*Message, error) {
	if len(frames) < deliveryPayload {
		return nil, &ProtocolError{Reason: "delivery needs at least 5 frames, got " + strconv.Itoa(len(frames))}
	}
	if len(frames[deliveryDelimiter]) != 0 {
		return nil, &ProtocolError{Reason: "delivery delimiter frame is not empty"}
	}
	sent, err := parseMicros(frames[deliverySentTime])
	if err != nil {
		return nil, &ProtocolError{Reason: "invalid sent time", Line: string(frames[deliverySentTime])}
	}
	timeout, err := parseMicros(frames[deliveryAckTimeout])
	if err != nil {
		return nil, &ProtocolError{Reason: "invalid ack timeout", Line: string(frames[deliveryAckTimeout])}
	}

	peer := make([]byte, len(frames[deliveryPeer]))
	copy(peer, frames[deliveryPeer])

	payload := cloneFrames(frames[deliveryPayload:])
	if payload == nil {
		payload = [][]byte{}
	}
	return &Message{
		id:         string(frames[deliveryID]),
		peer:       peer,
		sentTime:   sent,
		ackTimeout: timeout,
		payload:    payload,
	}, nil
}

// encodeCompletion frames the consumer completion notice [peer, "", id].
func encodeCompletion(msg *Message) [][]byte {
	return [][]byte{msg.peer, {}, []byte(msg.id)}
}

// DecodeCompletion extracts the id from a completion notice as seen by the
// broker once the routing frame has been consumed: ["", id].
func DecodeCompletion(frames [][]byte) (string, error) {
	if len(frames) < 2 || len(frames[0]) != 0 {
		return "", &ProtocolError{Reason: "malformed completion notice"}
	}
	return string(frames[1]), nil
}

func parseMicros(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, nil
	}
	return strconv.ParseInt(string(b), 10, 64)
}

// parseStats parses a newline separated "<key>: <value>" report.
func parseStats(report string) (*Stats, error) {
	st := newStats()
	for _, line := range strings.Split(report, "\n") {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, statsSeparator)
		if !ok {
			return nil, &ProtocolError{Reason: "stats line has no separator", Line: line}
		}
		st.set(key, value)
	}
	return st, nil
}

// FormatStats renders entries in report order, one "<key>: <value>" per line.
func FormatStats(entries ...StatEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Key)
		sb.WriteString(statsSeparator)
		sb.WriteString(e.Value)
		sb.WriteByte('\n')
	}
	return sb.String()
}
