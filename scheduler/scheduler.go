// Package scheduler implements the four-phase TDMA loop described in
// spec.md §4.6: processing, RX-before, TX, RX-after. It is the one place
// that drives the radio and the clock; every other package only reacts to
// frames or ticks handed to it. The phase sequence replaces the original
// event-driven design's cooperative yield() loop with one function that
// runs the phases in order against a thin radio/clock boundary (spec.md
// §9's "suspension model replacement" design note) — no callbacks, no
// interrupts interleaving with state mutation.
package scheduler

import (
	"time"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/frame"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/node"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/radioio"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/relay"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/routing"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/thread"
)

// Timing holds the microsecond time constants from spec.md §4.6. All
// fields are inputs; SlotOffset and Period are derived.
type Timing struct {
	TSlot       uint64
	TProcessing uint64
	TPacket     uint64
	TTxDelay    uint64
	TRxDelay    uint64
}

// SlotOffset is T_SLOT - T_PACKET - T_TX_DELAY - T_RX_DELAY (spec.md §4.6).
func (t Timing) SlotOffset() int64 {
	return int64(t.TSlot) - int64(t.TPacket) - int64(t.TTxDelay) - int64(t.TRxDelay)
}

// Period is T_PERIOD = N_SLOTS * T_SLOT.
func (t Timing) Period(nSlots uint8) uint64 { return uint64(nSlots) * t.TSlot }

// DefaultTiming matches a SF7/BW125kHz LoRa link's typical on-air time for
// a 54-byte frame plus guard margins, scaled so T_SLOT comfortably covers
// T_PACKET, T_TX_DELAY and T_RX_DELAY.
var DefaultTiming = Timing{
	TSlot:       250_000,
	TProcessing: 20_000,
	TPacket:     120_000,
	TTxDelay:    5_000,
	TRxDelay:    5_000,
}

// PayloadSource produces the next sensor payload for an Own-mode
// transmission (spec.md §1's sensor acquisition stub, out of core scope).
type PayloadSource interface {
	Read() []byte
}

type rxKind int

const (
	rxBefore rxKind = iota
	rxAfter
)

// Scheduler drives one node.State through its phase machine. The zero
// value is not usable; use New.
type Scheduler struct {
	Radio   radioio.Radio
	Clock   radioio.Clock
	Timing  Timing
	Payload PayloadSource
	State   *node.State

	// PinRealtime, when true, has Run lock its goroutine to a realtime OS
	// thread via thread.Realtime before entering the loop.
	PinRealtime bool

	// Sleep pads slot boundaries and RX poll waits; defaults to time.Sleep.
	// Tests inject a function that advances a radioio.FakeClock instead of
	// blocking, so phase timing is exercised without real wall-clock delay.
	Sleep func(time.Duration)

	// PollInterval bounds how long an RX phase waits between ReceiveOnce
	// polls when the radio has nothing queued. Defaults to 1ms.
	PollInterval time.Duration

	// RawSink, if non-nil, receives a capture of every raw frame exchanged
	// with the radio — the verbose-telemetry counterpart to the decoded
	// PktRx event, for a deployment running with config.NodeConfig.Mode==2.
	RawSink radioio.RawSink

	drift DriftTracker
}

// New returns a Scheduler with defaults filled in for any zero-value field
// that must not be zero.
func New(radio radioio.Radio, clock radioio.Clock, payload PayloadSource, st *node.State) *Scheduler {
	return &Scheduler{
		Radio:        radio,
		Clock:        clock,
		Timing:       DefaultTiming,
		Payload:      payload,
		State:        st,
		Sleep:        time.Sleep,
		PollInterval: time.Millisecond,
	}
}

func (s *Scheduler) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(d)
}

// Run pins the goroutine realtime (if requested) and runs RunCycle forever
// until stop is closed. This is the only blocking entry point; everything
// else is a single synchronous call for tests to drive directly.
func (s *Scheduler) Run(stop <-chan struct{}) {
	if s.PinRealtime {
		if err := thread.Realtime(); err != nil {
			s.State.Events.Emit(events.Status, events.Fields{"realtime_pin_failed": err.Error()})
		}
	}
	for {
		select {
		case <-stop:
			return
		default:
		}
		s.RunCycle()
	}
}

// RunCycle executes one full cycle: processing, RX-before, TX, RX-after
// (spec.md §4.6). When the node is disabled (scheduler_enabled clear via a
// STOP command, spec.md §5/§6) it resets all routing state instead of
// scheduling, so the next enabled cycle starts from a clean slate.
func (s *Scheduler) RunCycle() {
	if !s.State.Enabled() {
		s.State.Reset()
		return
	}

	s.processingPhase()

	nSlots := s.State.NSlots
	mySlot := s.State.MySlot

	s.rxPhase(rxBefore, uint64(mySlot)*s.Timing.TSlot)
	s.txPhase()
	s.rxPhase(rxAfter, uint64(nSlots-mySlot-1)*s.Timing.TSlot)
}

// processingPhase runs neighbour aging, hop recomputation, stratum
// countdown and origination gating — all without touching the radio
// (spec.md §4.6 phase 1).
func (s *Scheduler) processingPhase() {
	phaseStart := s.Clock.NowUs()
	st := s.State

	st.Neighbors.Tick()

	if st.IsGateway {
		st.Cycle = uint8((int(st.Cycle) + 1) % meshconst.CycleMax)
		if st.Gateway != nil {
			st.Gateway.Flush()
		}
	} else {
		st.Hop = routing.RecomputeHop(st.Neighbors, st.Events, st.Hop)
		st.Stratum.Tick()

		if !st.Origination.HasPendingOwnPayload && st.PendingOwnPayload == nil && s.Payload != nil {
			hasUpstream := routing.SelectNextHop(st.Neighbors, st.Hop) != 0
			if st.Origination.ShouldOriginate(st.MyID, st.Cycle, st.Hop, hasUpstream) {
				id := st.NextMessageID()
				st.PendingOwnPayload = &node.OwnPayload{MessageID: id, Payload: s.Payload.Read()}
				st.Origination.HasPendingOwnPayload = true
			}
		}
	}

	if epoch, ok := s.Clock.EpochNowUs(); ok {
		s.drift.Observe(phaseStart, epoch)
	}

	elapsed := s.Clock.NowUs() - phaseStart
	if elapsed < s.Timing.TProcessing {
		s.sleep(time.Duration(s.Timing.TProcessing-elapsed) * time.Microsecond)
	}
}

// rxPhase runs the receive-and-adjust loop shared by RX-before and
// RX-after (spec.md §4.6 phases 2 and 4). nominalUs is the phase's
// nominal duration before any timing reconstruction.
func (s *Scheduler) rxPhase(kind rxKind, nominalUs uint64) {
	phaseStart := s.Clock.NowUs()
	deadline := phaseStart + nominalUs

	buf := make([]byte, frame.Size)
	for {
		now := s.Clock.NowUs()
		remaining := timeUntilUs(now, deadline, s.Timing.TSlot)
		if remaining == 0 {
			return
		}

		n, ok := s.Radio.ReceiveOnce(buf)
		if !ok {
			wait := time.Duration(remaining) * time.Microsecond
			if s.PollInterval > 0 && s.PollInterval < wait {
				wait = s.PollInterval
			}
			s.sleep(wait)
			continue
		}

		if n != frame.Size {
			s.State.Events.Emit(events.PktRx, events.Fields{"error": "short frame", "len": n})
			continue
		}

		rssi, snr := s.Radio.PacketStatus()
		if s.RawSink != nil {
			s.RawSink.OnRawRx(radioio.RawRxPacket{
				Packet: append([]byte(nil), buf[:n]...),
				RSSI:   rssi, SNR: snr, At: time.Now(),
			})
		}
		f, err := frame.Decode(buf[:n])
		if err != nil {
			s.State.Events.Emit(events.PktRx, events.Fields{"error": err.Error()})
			continue
		}

		s.onFrame(f, rssi, snr)

		remainingUs := s.reconstructRemaining(kind, f.SenderSlot)
		if remainingUs < 0 {
			remainingUs = 0
		}
		deadline = s.Clock.NowUs() + uint64(remainingUs)
	}
}

// reconstructRemaining implements the LoRa-Quake timing reconstruction
// from spec.md §4.6: a freshly received frame's sender slot tells us
// precisely how much of the current RX window is left, correcting for
// drift that accumulated since the phase started.
func (s *Scheduler) reconstructRemaining(kind rxKind, senderSlot uint8) int64 {
	nSlots := int64(s.State.NSlots)
	tSlot := int64(s.Timing.TSlot)
	offset := s.Timing.SlotOffset()
	mySlot := int64(s.State.MySlot)
	ss := int64(senderSlot)

	switch kind {
	case rxBefore:
		k := ((mySlot - ss - 1) % nSlots + nSlots) % nSlots
		if mySlot > ss {
			return k*tSlot + offset
		}
		return k*tSlot + offset + int64(s.Timing.TProcessing)
	default: // rxAfter
		return (nSlots-ss-1)*tSlot + offset
	}
}

// timeUntilUs is spec.md §4.6's time_until(deadline): clamped to
// [0, T_SLOT] so a drifted deadline never hands the radio an oversized or
// negative wait.
func timeUntilUs(now, deadline, tSlot uint64) uint64 {
	if deadline <= now {
		return 0
	}
	rem := deadline - now
	if rem > tSlot {
		rem = tSlot
	}
	return rem
}

// onFrame folds one accepted frame into neighbour, stratum, cycle
// validation and (if addressed to us) forward/gateway state, in the order
// spec.md §5 requires: side effects are sequenced in arrival order within
// a phase.
func (s *Scheduler) onFrame(f frame.Frame, rssi, snr int8) {
	st := s.State

	entry, err := st.Neighbors.Observe(f, rssi, snr)
	if err != nil {
		return
	}
	st.Events.Emit(events.PktRx, events.Fields{"sender": f.SenderID, "rssi": rssi, "snr": snr})

	st.Stratum.OnFrame(f.SenderID, f.Stratum)

	if entry.Hop < st.Hop && entry.Hop != meshconst.HopUnreachable {
		st.Cycle = f.Cycle
		if !st.IsGateway {
			st.Origination.ObserveUpstreamCycle(f.Cycle)
		}
	}

	if f.Mode == frame.DataNone || f.HopDecisionTarget != st.MyID {
		return
	}

	if st.IsGateway {
		st.Gateway.OnDataFrame(f, s.Clock.NowUs())
		return
	}
	_ = relay.OnDataFrame(st.ForwardQueue, st.Events, st.MyID, f)
}

// txPhase decides the single frame this node emits this cycle (forward
// beats own beats header-only, spec.md §4.6's TX content priority), sends
// it, and pads the slot out to T_SLOT.
func (s *Scheduler) txPhase() {
	phaseStart := s.Clock.NowUs()
	s.sleep(time.Duration(s.Timing.TTxDelay) * time.Microsecond)

	f := s.buildOutgoingFrame()
	encoded := f.Encode()
	if !s.Radio.Transmit(encoded) {
		s.State.Events.Emit(events.Status, events.Fields{"tx_failed": true})
	}
	if s.RawSink != nil {
		s.RawSink.OnRawTx(radioio.RawTxPacket{Packet: encoded, At: time.Now()})
	}

	elapsed := s.Clock.NowUs() - phaseStart
	if elapsed < s.Timing.TSlot {
		s.sleep(time.Duration(s.Timing.TSlot-elapsed) * time.Microsecond)
	}
}

// buildOutgoingFrame assembles this cycle's frame. A gateway (hop==0)
// never forwards or originates, so its forward queue and pending payload
// stay empty and it always falls through to the header-only case.
func (s *Scheduler) buildOutgoingFrame() frame.Frame {
	st := s.State

	f := frame.Frame{
		Destination: meshconst.Broadcast,
		Command:     frame.CommandIDNeighbours,
		SenderID:    st.MyID,
		SenderSlot:  st.MySlot,
		Hop:         st.Hop,
		Cycle:       st.Cycle,
		Neighbours:  s.ownNeighbourSummaries(),
		Stratum:     st.Stratum.Stratum,
		TimeSynced:  st.Stratum.Stratum != meshconst.StratumLocal,
	}

	switch {
	case st.ForwardQueue.Len() > 0:
		entry, _ := st.ForwardQueue.Dequeue()
		f.Mode = frame.DataForward
		f.HopDecisionTarget = routing.SelectNextHop(st.Neighbors, st.Hop)
		f.Data = frame.DataSection{
			OriginID:          entry.Origin,
			MessageID:         entry.MessageID,
			HopCount:          entry.HopsSoFar,
			Payload:           entry.Payload,
			Path:              entry.Path,
			OriginTxTimestamp: entry.OriginTxTimestamp,
		}

	case st.PendingOwnPayload != nil:
		var ts uint64
		if epoch, ok := s.Clock.EpochNowUs(); ok && epoch > 0 {
			ts = uint64(epoch)
		}
		f.Mode = frame.DataOwn
		f.HopDecisionTarget = routing.SelectNextHop(st.Neighbors, st.Hop)
		var path [meshconst.MaxPathHops]meshconst.NodeID
		path[0] = st.MyID
		f.Data = frame.DataSection{
			OriginID:          st.MyID,
			MessageID:         st.PendingOwnPayload.MessageID,
			HopCount:          1,
			Payload:           st.PendingOwnPayload.Payload,
			Path:              path,
			OriginTxTimestamp: ts,
		}
		st.PendingOwnPayload = nil
		st.Origination.HasPendingOwnPayload = false

	default:
		f.Mode = frame.DataNone
	}

	return f
}

// ownNeighbourSummaries packs up to MaxFrameNeighbours of this node's own
// neighbour table, hop-ascending, into the outgoing frame's advertised list.
func (s *Scheduler) ownNeighbourSummaries() []frame.NeighbourSummary {
	idx := s.State.Neighbors.Index()
	n := len(idx)
	if n > meshconst.MaxFrameNeighbours {
		n = meshconst.MaxFrameNeighbours
	}
	out := make([]frame.NeighbourSummary, 0, n)
	for i := 0; i < n; i++ {
		e, ok := s.State.Neighbors.Get(idx[i])
		if !ok {
			continue
		}
		out = append(out, frame.NeighbourSummary{ID: e.ID, Slot: e.Slot, IsLocalized: e.IsLocalized, Hop: e.Hop})
	}
	return out
}
