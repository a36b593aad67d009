// Package forwardqueue implements the bounded FIFO of payloads in transit
// from an origin toward the gateway.
package forwardqueue

import (
	"errors"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
)

// ErrFull is returned by Enqueue when the queue is at capacity.
var ErrFull = errors.New("forwardqueue: full")

// Entry is one payload in transit, including the path accumulated so far.
type Entry struct {
	Origin            meshconst.NodeID
	MessageID         uint16
	HopsSoFar         uint8
	Payload           []byte
	Path              [meshconst.MaxPathHops]meshconst.NodeID
	OriginTxTimestamp uint64
}

// ContainsID reports whether id already appears in Path[0:HopsSoFar], the
// loop-freedom check that must run before an entry is enqueued.
func (e Entry) ContainsID(id meshconst.NodeID) bool {
	n := e.HopsSoFar
	if int(n) > len(e.Path) {
		n = uint8(len(e.Path))
	}
	for i := uint8(0); i < n; i++ {
		if e.Path[i] == id {
			return true
		}
	}
	return false
}

// Queue is a fixed-capacity FIFO. The zero value is not usable; use New.
type Queue struct {
	buf  []Entry
	Sink events.Sink
}

// New returns an empty queue bounded at ForwardQueueSize.
func New(sink events.Sink) *Queue {
	if sink == nil {
		sink = events.Discard
	}
	return &Queue{Sink: sink}
}

// Len reports the current number of queued entries.
func (q *Queue) Len() int { return len(q.buf) }

// Enqueue appends e to the tail. It fails with ErrFull rather than evicting
// an older entry when the queue is at capacity.
func (q *Queue) Enqueue(e Entry) error {
	if len(q.buf) >= meshconst.ForwardQueueSize {
		q.Sink.Emit(events.ForwardEnqueue, events.Fields{"origin": e.Origin, "ok": false})
		return ErrFull
	}
	q.buf = append(q.buf, e)
	q.Sink.Emit(events.ForwardEnqueue, events.Fields{"origin": e.Origin, "ok": true})
	return nil
}

// Dequeue removes and returns the head entry, if any. Callers must ensure at
// most one Dequeue happens per cycle; the queue itself does not track cycles.
func (q *Queue) Dequeue() (Entry, bool) {
	if len(q.buf) == 0 {
		return Entry{}, false
	}
	e := q.buf[0]
	q.buf = q.buf[1:]
	return e, true
}

// Reset empties the queue, as required on pause/resume.
func (q *Queue) Reset() {
	q.buf = nil
}
