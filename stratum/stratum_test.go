package stratum

import (
	"testing"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/meshconst"
)

func TestNewGatewayPinned(t *testing.T) {
	g := NewGateway(events.Discard)
	g.OnFrame(5, meshconst.StratumDirect)
	g.Tick()
	if g.Stratum != meshconst.StratumGateway {
		t.Fatalf("gateway stratum mutated: %v", g.Stratum)
	}
}

func TestDirectFromGateway(t *testing.T) {
	e := New(events.Discard)
	e.OnFrame(meshconst.GatewayID, meshconst.StratumGateway)
	if e.Stratum != meshconst.StratumDirect {
		t.Fatalf("got %v, want Direct", e.Stratum)
	}
	if e.SyncSource != meshconst.GatewayID {
		t.Fatalf("sync source = %d, want gateway", e.SyncSource)
	}
	if e.ValidCounter != meshconst.SyncValidCycles {
		t.Fatalf("counter = %d, want %d", e.ValidCounter, meshconst.SyncValidCycles)
	}
}

func TestIndirectPropagationAndCap(t *testing.T) {
	e := New(events.Discard)
	e.OnFrame(10, meshconst.StratumDirect)
	if e.Stratum != meshconst.StratumIndirect {
		t.Fatalf("got %v, want Indirect", e.Stratum)
	}

	e2 := New(events.Discard)
	e2.OnFrame(10, meshconst.StratumIndirect)
	if e2.Stratum != meshconst.StratumIndirect {
		t.Fatalf("stratum must cap at Indirect, got %v", e2.Stratum)
	}
}

func TestWorseProposalIgnored(t *testing.T) {
	e := New(events.Discard)
	e.OnFrame(meshconst.GatewayID, meshconst.StratumGateway) // Direct
	e.OnFrame(20, meshconst.StratumIndirect)                 // would propose Indirect, worse
	if e.Stratum != meshconst.StratumDirect {
		t.Fatalf("a worse proposal must not override the current stratum, got %v", e.Stratum)
	}
	if e.SyncSource != meshconst.GatewayID {
		t.Fatalf("sync source changed unexpectedly: %d", e.SyncSource)
	}
}

// Tail of the two-relay scenario: R2 loses its sync source and must degrade
// straight to Local once its counter expires, not decay stepwise.
func TestDegradationIsInstantToLocal(t *testing.T) {
	e := New(events.Discard)
	e.OnFrame(10, meshconst.StratumDirect) // Indirect, synced to node 10
	for i := 0; i < meshconst.SyncValidCycles; i++ {
		e.Tick()
	}
	if e.Stratum != meshconst.StratumLocal {
		t.Fatalf("got %v, want Local after counter expiry", e.Stratum)
	}
	if e.SyncSource != 0 {
		t.Fatalf("sync source must clear on degradation, got %d", e.SyncSource)
	}
}

func TestRefreshFromSameSourceDoesNotResetEarly(t *testing.T) {
	e := New(events.Discard)
	e.OnFrame(meshconst.GatewayID, meshconst.StratumGateway)
	e.Tick()
	e.Tick()
	e.OnFrame(meshconst.GatewayID, meshconst.StratumGateway) // refresh before expiry
	if e.ValidCounter != meshconst.SyncValidCycles {
		t.Fatalf("counter not refreshed: %d", e.ValidCounter)
	}
}

func TestResetClearsNonGatewayOnly(t *testing.T) {
	e := New(events.Discard)
	e.OnFrame(meshconst.GatewayID, meshconst.StratumGateway)
	e.Reset()
	if e.Stratum != meshconst.StratumLocal || e.SyncSource != 0 || e.ValidCounter != 0 {
		t.Fatalf("reset left stale state: %+v", e)
	}

	g := NewGateway(events.Discard)
	g.Reset()
	if g.Stratum != meshconst.StratumGateway {
		t.Fatal("reset must never touch the gateway's stratum")
	}
}
