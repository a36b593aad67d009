// Package gateway implements the sink logic that runs only on the network's
// single gateway node: loopback suppression, per-origin latency and packet
// delivery ratio accounting, and batched handoff to the upstream collector.
package gateway

import (
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/frame"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/upstream"
)

// maxLatencyDeltaUs bounds a plausible origin-to-gateway delay: one hour.
const maxLatencyDeltaUs = 3_600_000_000

// LatencyStats accumulates count/sum/min/max for one origin's observed
// end-to-end delays, in microseconds.
type LatencyStats struct {
	Count int
	Sum   uint64
	Min   uint64
	Max   uint64
}

// Average returns Sum/Count, or 0 if no samples were recorded.
func (s LatencyStats) Average() uint64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / uint64(s.Count)
}

// PDREntry tracks modulo-256 sequence gaps for one origin.
type PDREntry struct {
	LastSeq  uint8
	Expected uint64
	Received uint64
	Gaps     uint64
}

// PDR returns Received/Expected, or 0 before any observation.
func (e PDREntry) PDR() float64 {
	if e.Expected == 0 {
		return 0
	}
	return float64(e.Received) / float64(e.Expected)
}

// Sink is the gateway's per-node state. It must only be constructed for the
// node whose NodeID equals meshconst.GatewayID.
type Sink struct {
	MyID meshconst.NodeID

	pdr     map[meshconst.NodeID]*PDREntry
	latency map[meshconst.NodeID]*LatencyStats

	batch    []upstream.Message
	Upstream upstream.Sink
	Events   events.Sink
}

// New returns a gateway sink with empty accounting state.
func New(myID meshconst.NodeID, up upstream.Sink, evSink events.Sink) *Sink {
	if up == nil {
		up = upstream.Discard
	}
	if evSink == nil {
		evSink = events.Discard
	}
	return &Sink{
		MyID:     myID,
		pdr:      make(map[meshconst.NodeID]*PDREntry),
		latency:  make(map[meshconst.NodeID]*LatencyStats),
		Upstream: up,
		Events:   evSink,
	}
}

// PDRFor returns a copy of the tracked entry for origin, if any.
func (s *Sink) PDRFor(origin meshconst.NodeID) (PDREntry, bool) {
	e, ok := s.pdr[origin]
	if !ok {
		return PDREntry{}, false
	}
	return *e, true
}

// Origins returns the NodeIds with tracked PDR state, for status reporting.
func (s *Sink) Origins() []meshconst.NodeID {
	out := make([]meshconst.NodeID, 0, len(s.pdr))
	for id := range s.pdr {
		out = append(out, id)
	}
	return out
}

// LatencyFor returns a copy of the tracked latency stats for origin, if any.
func (s *Sink) LatencyFor(origin meshconst.NodeID) (LatencyStats, bool) {
	e, ok := s.latency[origin]
	if !ok {
		return LatencyStats{}, false
	}
	return *e, true
}

// OnDataFrame folds one received data frame into gateway state. nowUs is the
// current microsecond timestamp used to compute latency. Loopback frames
// (origin == gateway) are dropped silently without touching any counter.
func (s *Sink) OnDataFrame(f frame.Frame, nowUs uint64) {
	d := f.Data
	if d.OriginID == s.MyID {
		return
	}

	if d.OriginTxTimestamp > 0 {
		var delta uint64
		if nowUs >= d.OriginTxTimestamp {
			delta = nowUs - d.OriginTxTimestamp
		}
		if delta > 0 && delta <= maxLatencyDeltaUs {
			st := s.latency[d.OriginID]
			if st == nil {
				st = &LatencyStats{Min: delta, Max: delta}
				s.latency[d.OriginID] = st
			}
			st.Count++
			st.Sum += delta
			if delta < st.Min {
				st.Min = delta
			}
			if delta > st.Max {
				st.Max = delta
			}
			s.Events.Emit(events.Latency, events.Fields{"origin": d.OriginID, "delta_us": delta})
		}
	}

	s.updatePDR(d.OriginID, uint8(d.MessageID&0xFF))

	path := make([]meshconst.NodeID, 0, len(d.Path))
	for i := uint8(0); i < d.HopCount && int(i) < len(d.Path); i++ {
		path = append(path, d.Path[i])
	}
	s.batch = append(s.batch, upstream.Message{
		Origin:    d.OriginID,
		MessageID: d.MessageID,
		Payload:   append([]byte(nil), d.Payload...),
		Path:      path,
	})
	s.Events.Emit(events.GWRxData, events.Fields{"origin": d.OriginID, "msg_id": d.MessageID})

	if len(s.batch) >= meshconst.UpstreamBatchSize {
		s.Flush()
	}
}

// updatePDR implements the per-origin sequence-gap accounting. Once
// PDROrigins origins are tracked, a new origin is not added and a PDR_NODE
// event with ok=false is emitted instead.
func (s *Sink) updatePDR(origin meshconst.NodeID, seq uint8) {
	e := s.pdr[origin]
	if e == nil {
		if len(s.pdr) >= meshconst.PDROrigins {
			s.Events.Emit(events.PDRNode, events.Fields{"origin": origin, "ok": false, "reason": "full"})
			return
		}
		e = &PDREntry{LastSeq: seq, Expected: 1, Received: 1}
		s.pdr[origin] = e
		s.Events.Emit(events.PDRNode, events.Fields{"origin": origin, "pdr": e.PDR()})
		return
	}
	delta := uint64(seq-e.LastSeq) % 256
	e.Received++
	e.Expected += delta
	if delta > 1 {
		e.Gaps += delta - 1
	}
	e.LastSeq = seq
	s.Events.Emit(events.PDRNode, events.Fields{"origin": origin, "pdr": e.PDR()})
}

// Flush hands the accumulated batch to the upstream sink and clears it,
// called when the batch fills or the processing phase ends, whichever
// comes first.
func (s *Sink) Flush() {
	if len(s.batch) == 0 {
		return
	}
	s.Upstream.PublishBatch(s.batch)
	s.batch = nil
}

// Reset clears all gateway accounting, as required on pause/resume.
func (s *Sink) Reset() {
	s.pdr = make(map[meshconst.NodeID]*PDREntry)
	s.latency = make(map[meshconst.NodeID]*LatencyStats)
	s.batch = nil
}
