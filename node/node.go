// Package node owns the single long-lived state object for one mesh node:
// everything the scheduler touches lives here, passed around by exclusive
// reference rather than split across goroutine-local state.
package node

import (
	"sync/atomic"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/forwardqueue"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/gateway"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/neighbor"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/origination"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/stratum"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/upstream"
)

// OwnPayload is a message this node has minted and is waiting to transmit.
type OwnPayload struct {
	MessageID uint16
	Payload   []byte
}

// State is the node's complete routing and delivery state. The radio,
// clock, and telemetry queue are the only things that live outside it.
type State struct {
	MyID      meshconst.NodeID
	IsGateway bool
	MySlot    uint8
	NSlots    uint8

	Hop   uint8
	Cycle uint8

	Neighbors    *neighbor.Table
	Stratum      *stratum.Engine
	Origination  *origination.Engine
	ForwardQueue *forwardqueue.Queue
	Gateway      *gateway.Sink // non-nil only when IsGateway

	PendingOwnPayload *OwnPayload
	msgCounter        uint8 // low 8 bits of the next minted message_id

	enabled int32 // atomic; read/written only through Enabled/SetEnabled

	Events events.Sink
}

// New returns a fresh node state. mySlot and nSlots are static, externally
// assigned inputs (auto slot assignment is out of scope).
func New(myID meshconst.NodeID, isGateway bool, mySlot, nSlots uint8, up upstream.Sink, evSink events.Sink) *State {
	if evSink == nil {
		evSink = events.Discard
	}
	s := &State{
		MyID:         myID,
		IsGateway:    isGateway,
		MySlot:       mySlot,
		NSlots:       nSlots,
		Neighbors:    neighbor.New(myID, evSink),
		Stratum:      nil,
		Origination:  origination.New(evSink),
		ForwardQueue: forwardqueue.New(evSink),
		Events:       evSink,
		enabled:      1,
	}
	if isGateway {
		s.Hop = 0
		s.Stratum = stratum.NewGateway(evSink)
		s.Gateway = gateway.New(myID, up, evSink)
	} else {
		s.Hop = meshconst.HopUnreachable
		s.Stratum = stratum.New(evSink)
	}
	return s
}

// Enabled reports the scheduler_enabled flag, safe to call from the control
// channel's goroutine concurrently with the event loop.
func (s *State) Enabled() bool { return atomic.LoadInt32(&s.enabled) != 0 }

// SetEnabled flips scheduler_enabled. Disabling takes effect at the next
// loop iteration, which calls Reset.
func (s *State) SetEnabled(v bool) {
	n := int32(0)
	if v {
		n = 1
	}
	atomic.StoreInt32(&s.enabled, n)
}

// NextMessageID mints the next (origin_id<<8 | counter) message id and
// advances the per-origin sequence counter with modulo-256 wraparound.
func (s *State) NextMessageID() uint16 {
	id := uint16(s.MyID)<<8 | uint16(s.msgCounter)
	s.msgCounter++
	return id
}

// Reset clears all routing state for a pause/resume cycle: neighbours, hop,
// forward queue, stratum, cycle validation, and (at the gateway) PDR
// counters. The wall-clock reference and monotonic clock are untouched
// because they live outside State.
func (s *State) Reset() {
	s.Neighbors = neighbor.New(s.MyID, s.Events)
	s.ForwardQueue.Reset()
	s.Origination.Reset()
	s.PendingOwnPayload = nil

	if s.IsGateway {
		s.Hop = 0
		if s.Gateway != nil {
			s.Gateway.Reset()
		}
	} else {
		s.Hop = meshconst.HopUnreachable
		s.Stratum.Reset()
	}
}
