package routing

import (
	"testing"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/frame"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/neighbor"
)

func observe(t *testing.T, tbl *neighbor.Table, id meshconst.NodeID, hop uint8, rssi, snr int8, amIListed bool) {
	t.Helper()
	f := frame.Frame{SenderID: id, Hop: hop, Command: frame.CommandIDNeighbours}
	if amIListed {
		f.Neighbours = []frame.NeighbourSummary{{ID: tbl.MyID}}
	}
	if _, err := tbl.Observe(f, rssi, snr); err != nil {
		t.Fatal(err)
	}
}

// scenario 2: hop propagation.
func TestRecomputeHopPropagation(t *testing.T) {
	r1 := neighbor.New(10, nil)
	observe(t, r1, meshconst.GatewayID, 0, -60, 8, false)
	r1.Tick()
	hop := RecomputeHop(r1, events.Discard, meshconst.HopUnreachable)
	if hop != 1 {
		t.Fatalf("R1 hop = %d, want 1", hop)
	}

	r2 := neighbor.New(11, nil)
	observe(t, r2, 10, 1, -60, 8, false)
	r2.Tick()
	hop2 := RecomputeHop(r2, events.Discard, meshconst.HopUnreachable)
	if hop2 != 2 {
		t.Fatalf("R2 hop = %d, want 2", hop2)
	}
}

func TestRecomputeHopUnreachableWhenNoCandidate(t *testing.T) {
	tbl := neighbor.New(5, nil)
	got := RecomputeHop(tbl, events.Discard, 2)
	if got != meshconst.HopUnreachable {
		t.Fatalf("got %d, want HopUnreachable", got)
	}
}

func TestSelectNextHopGoodRSSIBeatsLowerHopWithPoorRSSI(t *testing.T) {
	tbl := neighbor.New(1, nil)
	observe(t, tbl, 2, 1, meshconst.RSSIGood+1, 5, true) // good rssi, hop 1
	observe(t, tbl, 3, 0, meshconst.RSSIGood-10, 5, true) // poor rssi, hop 0 (closer)
	tbl.Tick()

	got := SelectNextHop(tbl, 2)
	if got != 2 {
		t.Fatalf("got %d, want 2 (good RSSI wins over closer-but-poor-RSSI neighbour)", got)
	}
}

func TestSelectNextHopRequiresBidirectional(t *testing.T) {
	tbl := neighbor.New(1, nil)
	observe(t, tbl, 2, 0, -50, 5, false) // not bidirectional
	tbl.Tick()
	if got := SelectNextHop(tbl, 2); got != 0 {
		t.Fatalf("got %d, want 0 (no bidirectional candidate)", got)
	}
}

func TestSelectNextHopTiebreakBySNR(t *testing.T) {
	tbl := neighbor.New(1, nil)
	observe(t, tbl, 2, 1, -70, 5, true)
	observe(t, tbl, 3, 1, -70, 9, true)
	tbl.Tick()
	if got := SelectNextHop(tbl, 2); got != 3 {
		t.Fatalf("got %d, want 3 (higher SNR tiebreak)", got)
	}
}
