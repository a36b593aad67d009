package scheduler

import (
	"testing"
	"time"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/forwardqueue"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/frame"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/node"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/radioio"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/upstream"
)

type fixedPayload struct{ b []byte }

func (p fixedPayload) Read() []byte { return p.b }

// newTestScheduler wires a FakeRadio/FakeClock pair and makes Sleep advance
// the fake clock instead of blocking, so phase timing math runs without any
// real wall-clock delay.
func newTestScheduler(st *node.State, radio *radioio.FakeRadio) (*Scheduler, *radioio.FakeClock) {
	clock := radioio.NewFakeClock()
	sched := New(radio, clock, fixedPayload{b: []byte("T25H80")}, st)
	sched.Sleep = func(d time.Duration) { clock.Advance(uint64(d.Microseconds())) }
	sched.Timing = Timing{TSlot: 1000, TProcessing: 100, TPacket: 400, TTxDelay: 50, TRxDelay: 50}
	return sched, clock
}

func TestRunCycleHeaderOnlyWhenIdle(t *testing.T) {
	st := node.New(meshconst.GatewayID, true, 0, 4, upstream.Discard, events.Discard)
	radio := radioio.NewFakeRadio()
	sched, _ := newTestScheduler(st, radio)

	sched.RunCycle()

	if len(radio.Sent) != 1 {
		t.Fatalf("sent %d frames, want exactly 1 per cycle", len(radio.Sent))
	}
	f, err := frame.Decode(radio.Sent[0])
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	if f.Mode != frame.DataNone {
		t.Fatalf("idle gateway must send header-only, got mode %v", f.Mode)
	}
	if f.SenderID != meshconst.GatewayID || f.Hop != 0 {
		t.Fatalf("unexpected sender/hop: %+v", f)
	}
}

func TestRunCycleForwardBeatsOwn(t *testing.T) {
	st := node.New(5, false, 2, 4, upstream.Discard, events.Discard)
	st.Hop = 2
	st.PendingOwnPayload = &node.OwnPayload{MessageID: 0x0501, Payload: []byte("X")}
	st.Origination.HasPendingOwnPayload = true
	entry := forwardqueue.Entry{Origin: 7, MessageID: 0x0702, HopsSoFar: 1, Payload: []byte("Y")}
	if err := st.ForwardQueue.Enqueue(entry); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	radio := radioio.NewFakeRadio()
	sched, _ := newTestScheduler(st, radio)
	sched.RunCycle()

	if len(radio.Sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(radio.Sent))
	}
	f, err := frame.Decode(radio.Sent[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Mode != frame.DataForward {
		t.Fatalf("forward queue non-empty must win over own payload, got mode %v", f.Mode)
	}
	if st.PendingOwnPayload == nil {
		t.Fatal("own payload must still be pending after a forward-priority cycle")
	}
}

func TestDisabledNodeResetsInsteadOfScheduling(t *testing.T) {
	st := node.New(5, false, 1, 4, upstream.Discard, events.Discard)
	st.Hop = 3
	st.SetEnabled(false)

	radio := radioio.NewFakeRadio()
	sched, _ := newTestScheduler(st, radio)
	sched.RunCycle()

	if len(radio.Sent) != 0 {
		t.Fatal("a disabled node must not transmit")
	}
	if st.Hop != meshconst.HopUnreachable {
		t.Fatalf("disabled RunCycle must reset hop, got %d", st.Hop)
	}
}

// scenario 2 (partial): a leaf hears a lower-hop neighbour during RX-before
// and adopts a recomputed hop on the following cycle's processing phase.
func TestRxPhaseObservesFrameAndFeedsRouting(t *testing.T) {
	st := node.New(9, false, 3, 4, upstream.Discard, events.Discard)
	radio := radioio.NewFakeRadio()
	sched, _ := newTestScheduler(st, radio)

	gwFrame := frame.Frame{
		SenderID:   meshconst.GatewayID,
		SenderSlot: 0,
		Hop:        0,
		Cycle:      2,
		Stratum:    meshconst.StratumGateway,
		Mode:       frame.DataNone,
	}
	radio.Inbox = append(radio.Inbox, radioio.FakeRx{Buf: gwFrame.Encode(), RSSI: -60, SNR: 8})

	sched.RunCycle()

	if _, ok := st.Neighbors.Get(meshconst.GatewayID); !ok {
		t.Fatal("gateway frame must be observed into the neighbour table")
	}

	sched.RunCycle() // processing phase of the next cycle recomputes hop
	if st.Hop != 1 {
		t.Fatalf("hop = %d, want 1 after hearing the gateway", st.Hop)
	}
}

func TestReconstructRemainingCaseAAndB(t *testing.T) {
	st := node.New(9, false, 3, 8, upstream.Discard, events.Discard)
	sched, _ := newTestScheduler(st, radioio.NewFakeRadio())

	// Case A: my.slot (3) > sender.slot (1).
	got := sched.reconstructRemaining(rxBefore, 1)
	k := int64((3 - 1 - 1 + 8) % 8)
	want := k*int64(sched.Timing.TSlot) + sched.Timing.SlotOffset()
	if got != want {
		t.Fatalf("case A: got %d want %d", got, want)
	}

	// Case B: my.slot (3) <= sender.slot (5).
	got = sched.reconstructRemaining(rxBefore, 5)
	k = int64(((3 - 5 - 1) % 8 + 8) % 8)
	want = k*int64(sched.Timing.TSlot) + sched.Timing.SlotOffset() + int64(sched.Timing.TProcessing)
	if got != want {
		t.Fatalf("case B: got %d want %d", got, want)
	}
}

type recordingRawSink struct {
	rx []radioio.RawRxPacket
	tx []radioio.RawTxPacket
}

func (r *recordingRawSink) OnRawRx(p radioio.RawRxPacket) { r.rx = append(r.rx, p) }
func (r *recordingRawSink) OnRawTx(p radioio.RawTxPacket) { r.tx = append(r.tx, p) }

func TestRawSinkCapturesTxAndRx(t *testing.T) {
	st := node.New(9, false, 3, 4, upstream.Discard, events.Discard)
	radio := radioio.NewFakeRadio()
	sched, _ := newTestScheduler(st, radio)
	raw := &recordingRawSink{}
	sched.RawSink = raw

	gwFrame := frame.Frame{SenderID: meshconst.GatewayID, SenderSlot: 0, Hop: 0, Mode: frame.DataNone}
	radio.Inbox = append(radio.Inbox, radioio.FakeRx{Buf: gwFrame.Encode(), RSSI: -70, SNR: 3})

	sched.RunCycle()

	if len(raw.rx) != 1 {
		t.Fatalf("captured %d raw rx packets, want 1", len(raw.rx))
	}
	if raw.rx[0].RSSI != -70 || raw.rx[0].SNR != 3 {
		t.Fatalf("raw rx quality = %+v", raw.rx[0])
	}
	if len(raw.tx) != 1 {
		t.Fatalf("captured %d raw tx packets, want 1 (one tx per cycle)", len(raw.tx))
	}
}

func TestDriftCorrectionClampsToMaxPPM(t *testing.T) {
	got := DriftCorrectionUs(1_000_000, 1000) // far beyond MaxDriftPPM
	want := DriftCorrectionUs(1_000_000, meshconst.MaxDriftPPM)
	if got != want {
		t.Fatalf("correction must clamp at MaxDriftPPM: got %d want %d", got, want)
	}
}
