// Package stratum implements hierarchical time-authority propagation: sync
// source election, a valid-counter countdown, and degradation to Local when
// upstream sync is lost.
package stratum

import (
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
)

// Engine holds one node's stratum state.
type Engine struct {
	IsGateway    bool
	Stratum      meshconst.Stratum
	SyncSource   meshconst.NodeID
	ValidCounter int // cycles remaining before degradation; never decremented on the gateway
	Sink         events.Sink
}

// New returns a non-gateway engine initialised to Local with no sync source.
func New(sink events.Sink) *Engine {
	if sink == nil {
		sink = events.Discard
	}
	return &Engine{Stratum: meshconst.StratumLocal, Sink: sink}
}

// NewGateway returns an engine pinned permanently to Gateway.
func NewGateway(sink events.Sink) *Engine {
	if sink == nil {
		sink = events.Discard
	}
	return &Engine{IsGateway: true, Stratum: meshconst.StratumGateway, Sink: sink}
}

// OnFrame folds one accepted frame's sender stratum into the engine. A
// direct frame from the gateway always yields Direct; otherwise the proposed
// stratum is one worse than the sender's, capped at Indirect. The proposal
// is adopted when it strictly improves the current stratum, or when it ties
// and comes from the already-adopted sync source (refreshing the counter
// without forcing a reelection on every frame).
func (e *Engine) OnFrame(senderID meshconst.NodeID, senderStratum meshconst.Stratum) {
	if e.IsGateway {
		return
	}

	var proposed meshconst.Stratum
	if senderID == meshconst.GatewayID {
		proposed = meshconst.StratumDirect
	} else {
		proposed = senderStratum + 1
		if proposed > meshconst.StratumIndirect {
			proposed = meshconst.StratumIndirect
		}
	}

	if proposed < e.Stratum || (proposed == e.Stratum && e.SyncSource == senderID) {
		e.Stratum = proposed
		e.SyncSource = senderID
		e.ValidCounter = meshconst.SyncValidCycles
		e.Sink.Emit(events.CycleSync, events.Fields{"stratum": proposed, "source": senderID})
	}
}

// Tick runs the once-per-cycle countdown. When the counter expires, the
// engine drops straight to Local regardless of how far up the hierarchy it
// had climbed — there is no stepwise decay.
func (e *Engine) Tick() {
	if e.IsGateway || e.Stratum == meshconst.StratumLocal {
		return
	}
	e.ValidCounter--
	if e.ValidCounter <= 0 {
		e.Stratum = meshconst.StratumLocal
		e.SyncSource = 0
		e.ValidCounter = 0
		e.Sink.Emit(events.CycleSync, events.Fields{"stratum": meshconst.StratumLocal, "reason": "expired"})
	}
}

// Reset clears sync state on pause/resume. The gateway is unaffected.
func (e *Engine) Reset() {
	if e.IsGateway {
		return
	}
	e.Stratum = meshconst.StratumLocal
	e.SyncSource = 0
	e.ValidCounter = 0
}
