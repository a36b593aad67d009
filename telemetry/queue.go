// Package telemetry implements the non-blocking event queue mirrored to an
// external collector (spec.md §2, §5, §6). The core only ever sees the
// small events.Sink interface; Queue is the bounded, capacity-100
// implementation that backs it, generalized from the teacher's in-process
// dbgBuf/dbgPush ring buffer (rfm69/dbgbuf.go) into a capacity-bounded,
// drop-on-full queue a second goroutine drains — the shape spec.md §5
// requires for the subordinate telemetry actor.
package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/varint"
)

// Event is one recorded telemetry occurrence, timestamped at Emit time.
type Event struct {
	Kind   events.Kind
	Fields events.Fields
	At     time.Time
}

// Queue is a bounded, non-blocking events.Sink. Emit drops the event and
// counts it in Dropped once the queue holds TelemetryQueueCapacity entries,
// rather than ever blocking the core event loop (spec.md §5).
//
// The mutex here is the one exception to "no lock inside the core" in
// spec.md §5: it guards only the boundary between the core's Emit calls
// and the subordinate drain goroutine, exactly as sx1276.Radio guards its
// own fields with sync.Mutex while leaving its RX/TX channels unlocked.
type Queue struct {
	mu      sync.Mutex
	buf     []Event
	dropped uint64
}

// NewQueue returns an empty queue bounded at meshconst.TelemetryQueueCapacity.
func NewQueue() *Queue { return &Queue{} }

// Emit implements events.Sink. It never blocks.
func (q *Queue) Emit(kind events.Kind, fields events.Fields) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) >= meshconst.TelemetryQueueCapacity {
		q.dropped++
		return
	}
	q.buf = append(q.buf, Event{Kind: kind, Fields: fields, At: time.Now()})
}

// Drain removes and returns every queued event, resetting the queue to
// empty. It is the single-consumer half of the SPSC contract: only the
// telemetry mirror goroutine may call it.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.buf
	q.buf = nil
	return out
}

// Dropped reports how many events have been discarded for capacity since
// construction.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Len reports the number of events currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// WireEvent is the JSON envelope published to the external collector. The
// small integer fields (NodeId, hop, rssi, snr, counters) travel packed as
// a varint blob rather than individually JSON-encoded numbers, directly
// reusing the pack's varint.Encode/Decode instead of a bespoke format.
type WireEvent struct {
	Kind    string                 `json:"kind"`
	At      time.Time              `json:"at"`
	IntKeys []string               `json:"int_keys,omitempty"`
	Ints    []byte                 `json:"ints,omitempty"` // varint.Encode of the values named by IntKeys
	Other   map[string]interface{} `json:"other,omitempty"`
}

// ToWire converts Event into its wire envelope, splitting Fields into the
// varint-packed integer subset and a small leftover map for everything else
// (strings, bools, errors formatted upstream as strings).
func (e Event) ToWire() WireEvent {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var intKeys []string
	var ints []int
	other := make(map[string]interface{})

	for _, k := range keys {
		if n, ok := asInt(e.Fields[k]); ok {
			intKeys = append(intKeys, k)
			ints = append(ints, n)
			continue
		}
		other[k] = e.Fields[k]
	}

	var blob []byte
	if len(ints) > 0 {
		blob = varint.Encode(ints)
	}
	return WireEvent{Kind: string(e.Kind), At: e.At, IntKeys: intKeys, Ints: blob, Other: other}
}

// asInt reports whether v is one of the small integer types core
// components attach to telemetry fields, normalising it to int for
// varint.Encode.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case bool, string:
		return 0, false
	default:
		return 0, false
	}
}
