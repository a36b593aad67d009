// Package origination implements the cycle-validation gate and round-robin
// scheduling that decide when a leaf node may mint its own payload.
package origination

import (
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
)

// Engine tracks one node's cycle-validation state and pending-payload flag.
type Engine struct {
	CycleValidated       bool
	HasPendingOwnPayload bool

	validCounter int
	haveLast     bool
	lastCycle    uint8

	Sink events.Sink
}

// New returns an engine with validation not yet earned.
func New(sink events.Sink) *Engine {
	if sink == nil {
		sink = events.Discard
	}
	return &Engine{Sink: sink}
}

// ObserveUpstreamCycle folds one cycle value seen from a neighbour strictly
// closer to the gateway. Three consecutive values (mod M) earn validation,
// which then holds for the process lifetime until Reset. A non-sequential
// observation restarts the count at one rather than zero, since the
// observation itself still counts as the new baseline.
func (e *Engine) ObserveUpstreamCycle(cycle uint8) {
	m := uint8(meshconst.AutoSendIntervalCycles)

	if !e.haveLast {
		e.haveLast = true
		e.lastCycle = cycle
		e.validCounter = 1
		return
	}

	if cycle == (e.lastCycle+1)%m {
		e.validCounter++
	} else {
		e.validCounter = 1
	}
	e.lastCycle = cycle

	if e.validCounter >= 3 && !e.CycleValidated {
		e.CycleValidated = true
		e.Sink.Emit(events.CycleVal, events.Fields{"validated": true})
	}
}

// ShouldOriginate reports whether this cycle is the node's round-robin turn
// and every origination precondition holds.
func (e *Engine) ShouldOriginate(myID meshconst.NodeID, cycle uint8, myHop uint8, hasBidirLowerHopNeighbor bool) bool {
	if e.HasPendingOwnPayload {
		return false
	}
	if myHop == 0 || myHop == meshconst.HopUnreachable {
		return false
	}
	if !hasBidirLowerHopNeighbor {
		return false
	}
	if !e.CycleValidated {
		return false
	}
	m := uint8(meshconst.AutoSendIntervalCycles)
	return cycle == uint8((int(myID)-1))%m
}

// Reset clears validation state, as required on pause/resume: cycle
// validation must be re-earned after a STOP/START cycle.
func (e *Engine) Reset() {
	e.CycleValidated = false
	e.HasPendingOwnPayload = false
	e.validCounter = 0
	e.haveLast = false
	e.lastCycle = 0
}
