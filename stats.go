package xqueue

import (
	"fmt"
	"strconv"
)

// StatEntry is one line of a monitor report.
type StatEntry struct {
	Key   string
	Value string
}

// Stats is the ordered key/value mapping returned by Monitor.Stats.
// Iteration order is report order; a repeated key keeps its first position
// and takes the last value.
type Stats struct {
	keys   []string
	values map[string]string
}

func newStats() *Stats {
	return &Stats{values: make(map[string]string)}
}

func (s *Stats) set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Len returns the number of distinct keys.
func (s *Stats) Len() int { return len(s.keys) }

// Keys returns the keys in report order.
func (s *Stats) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Get returns the value for key.
func (s *Stats) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Entries returns the report as ordered pairs.
func (s *Stats) Entries() []StatEntry {
	out := make([]StatEntry, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, StatEntry{Key: k, Value: s.values[k]})
	}
	return out
}

// Map returns an unordered copy.
func (s *Stats) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Int parses the value for key as a base 10 integer.
func (s *Stats) Int(key string) (int64, error) {
	v, ok := s.values[key]
	if !ok {
		return 0, fmt.Errorf("xqueue: stat %q not reported", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("xqueue: stat %q: %w", key, err)
	}
	return n, nil
}

// Keys reported by the reference broker.
const (
	StatMessages         = "messages"
	StatMessagesInFlight = "messages_in_flight"
	StatDBSize           = "db_size"
	StatInFlightDBSize   = "in_flightdb_size"
	StatSyncs            = "syncs"
	StatExpiredMessages  = "expired_messages"
)

// BrokerStats is a typed view over the well-known broker counters. Counters
// the broker did not report are left at zero.
type BrokerStats struct {
	Messages         int64
	MessagesInFlight int64
	DBSize           int64
	InFlightDBSize   int64
	Syncs            int64
	ExpiredMessages  int64
}

// Broker extracts the well-known counters. A reported counter that is not an
// integer is an error.
func (s *Stats) Broker() (BrokerStats, error) {
	var bs BrokerStats
	fields := []struct {
		key string
		dst *int64
	}{
		{StatMessages, &bs.Messages},
		{StatMessagesInFlight, &bs.MessagesInFlight},
		{StatDBSize, &bs.DBSize},
		{StatInFlightDBSize, &bs.InFlightDBSize},
		{StatSyncs, &bs.Syncs},
		{StatExpiredMessages, &bs.ExpiredMessages},
	}
	for _, f := range fields {
		if _, ok := s.values[f.key]; !ok {
			continue
		}
		n, err := s.Int(f.key)
		if err != nil {
			return BrokerStats{}, err
		}
		*f.dst = n
	}
	return bs, nil
}

// Entries renders the counters in the broker's report order.
func (bs BrokerStats) Entries() []StatEntry {
	return []StatEntry{
		{StatMessages, strconv.FormatInt(bs.Messages, 10)},
		{StatMessagesInFlight, strconv.FormatInt(bs.MessagesInFlight, 10)},
		{StatDBSize, strconv.FormatInt(bs.DBSize, 10)},
		{StatInFlightDBSize, strconv.FormatInt(bs.InFlightDBSize, 10)},
		{StatSyncs, strconv.FormatInt(bs.Syncs, 10)},
		{StatExpiredMessages, strconv.FormatInt(bs.ExpiredMessages, 10)},
	}
}
