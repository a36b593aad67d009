// Package relay implements the non-gateway store-and-forward path: frames
// addressed to this node by hop_decision_target are appended to the
// accumulated path and queued for the next cycle's forward slot.
package relay

import (
	"errors"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/forwardqueue"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/frame"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
)

// ErrLoop is returned when myID already appears in the frame's accumulated
// path; the entry must not be queued.
var ErrLoop = errors.New("relay: path already contains this node")

// ErrNotForUs is returned when the frame's hop_decision_target does not name
// this node; such frames only feed neighbour/stratum/cycle state elsewhere.
var ErrNotForUs = errors.New("relay: frame not addressed to this node")

// OnDataFrame builds a forward entry from f and enqueues it into q. Frames
// whose hop_decision_target is not myID are rejected with ErrNotForUs and
// must be left to update neighbour/stratum/cycle state only. A path already
// containing myID is rejected with ErrLoop before any enqueue is attempted.
func OnDataFrame(q *forwardqueue.Queue, sink events.Sink, myID meshconst.NodeID, f frame.Frame) error {
	if sink == nil {
		sink = events.Discard
	}
	if f.HopDecisionTarget != myID {
		return ErrNotForUs
	}

	d := f.Data
	entry := forwardqueue.Entry{
		Origin:            d.OriginID,
		MessageID:         d.MessageID,
		HopsSoFar:         d.HopCount,
		Payload:           append([]byte(nil), d.Payload...),
		Path:              d.Path,
		OriginTxTimestamp: d.OriginTxTimestamp,
	}

	if entry.ContainsID(myID) {
		return ErrLoop
	}

	if entry.HopsSoFar < meshconst.MaxPathHops {
		entry.Path[entry.HopsSoFar] = myID
		entry.HopsSoFar++
	}

	if err := q.Enqueue(entry); err != nil {
		sink.Emit(events.ForwardEnqueue, events.Fields{"origin": entry.Origin, "ok": false, "reason": "full"})
		return err
	}
	return nil
}
