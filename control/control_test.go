package control

import (
	"strings"
	"testing"
	"time"

	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/config"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/events"
	"github.com/naufaldhaffaakbarwicaksono/LoRa-Mesh-TDMA/node"
)

func newTestHandler() (*Handler, *node.State, *config.NodeConfig) {
	st := node.New(5, false, 2, 6, nil, events.Discard)
	cfg := config.Default
	h := &Handler{
		State:  st,
		Config: &cfg,
		Events: events.Discard,
		Delay:  func(d time.Duration, f func()) { f() }, // run synchronously in tests
	}
	return h, st, &cfg
}

func TestStopDisablesScheduler(t *testing.T) {
	h, st, _ := newTestHandler()
	if !st.Enabled() {
		t.Fatal("expected enabled by default")
	}
	if reply := h.Execute("STOP"); reply != "OK stopped" {
		t.Fatalf("reply = %q", reply)
	}
	if st.Enabled() {
		t.Fatal("STOP must disable the scheduler")
	}
}

func TestTdmaOffIsStopAlias(t *testing.T) {
	h, st, _ := newTestHandler()
	h.Execute("TDMA_OFF")
	if st.Enabled() {
		t.Fatal("TDMA_OFF must disable the scheduler")
	}
}

func TestStartWithDelayReenables(t *testing.T) {
	h, st, _ := newTestHandler()
	h.Execute("STOP")
	if reply := h.Execute("START 100"); reply != "OK starting" {
		t.Fatalf("reply = %q", reply)
	}
	if !st.Enabled() {
		t.Fatal("START must re-enable the scheduler")
	}
}

func TestStartBadDelayIsRejected(t *testing.T) {
	h, _, _ := newTestHandler()
	reply := h.Execute("START notanumber")
	if !strings.HasPrefix(reply, "ERR") {
		t.Fatalf("reply = %q, want ERR", reply)
	}
}

func TestPing(t *testing.T) {
	h, _, _ := newTestHandler()
	if reply := h.Execute("PING"); reply != "PONG" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestSetModeUpdatesConfigAndDebugMode(t *testing.T) {
	h, _, cfg := newTestHandler()
	if reply := h.Execute("SET_MODE 2"); reply != "OK" {
		t.Fatalf("reply = %q", reply)
	}
	if cfg.Mode != 2 || !cfg.DebugMode {
		t.Fatalf("cfg = %+v", cfg)
	}
	if reply := h.Execute("SET_MODE 0"); reply != "OK" {
		t.Fatalf("reply = %q", reply)
	}
	if cfg.Mode != 0 || cfg.DebugMode {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestSetModeRejectsOutOfRange(t *testing.T) {
	h, _, _ := newTestHandler()
	reply := h.Execute("SET_MODE 7")
	if !strings.HasPrefix(reply, "ERR") {
		t.Fatalf("reply = %q, want ERR", reply)
	}
}

func TestSetSSIDPassServer(t *testing.T) {
	h, _, cfg := newTestHandler()
	h.Execute("SET_SSID myssid")
	h.Execute("SET_PASS hunter2")
	h.Execute("SET_SERVER 10.0.0.5")
	if cfg.SSID != "myssid" || cfg.Password != "hunter2" || cfg.ServerIP != "10.0.0.5" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestShowReportsConfig(t *testing.T) {
	h, _, _ := newTestHandler()
	h.Execute("SET_SSID abc")
	reply := h.Execute("SHOW")
	if !strings.Contains(reply, `ssid="abc"`) {
		t.Fatalf("reply = %q", reply)
	}
}

func TestResetConfigRestoresDefaultsAndReboots(t *testing.T) {
	h, _, cfg := newTestHandler()
	h.Execute("SET_SSID abc")
	rebooted := false
	h.Reboot = func() { rebooted = true }
	if reply := h.Execute("RESET_CONFIG"); reply != "OK reset" {
		t.Fatalf("reply = %q", reply)
	}
	if cfg.SSID != config.Default.SSID {
		t.Fatalf("cfg.SSID = %q, want default", cfg.SSID)
	}
	if !rebooted {
		t.Fatal("RESET_CONFIG must invoke Reboot")
	}
}

func TestSaveInvokesPersistThenReboot(t *testing.T) {
	h, _, cfg := newTestHandler()
	var persisted config.NodeConfig
	h.Persist = func(c config.NodeConfig) error { persisted = c; return nil }
	rebooted := false
	h.Reboot = func() { rebooted = true }
	h.Execute("SET_SSID saved-ssid")
	if reply := h.Execute("SAVE"); reply != "OK saved" {
		t.Fatalf("reply = %q", reply)
	}
	if persisted.SSID != "saved-ssid" || !rebooted {
		t.Fatalf("persisted = %+v rebooted = %v", persisted, rebooted)
	}
}

func TestStatusReportsCoreFields(t *testing.T) {
	h, _, _ := newTestHandler()
	reply := h.Execute("STATUS")
	if !strings.HasPrefix(reply, "OK node=5") {
		t.Fatalf("reply = %q", reply)
	}
	if !strings.Contains(reply, "stratum=local") {
		t.Fatalf("reply = %q, want stratum=local for a fresh non-gateway node", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	h, _, _ := newTestHandler()
	reply := h.Execute("BOGUS")
	if !strings.HasPrefix(reply, "ERR unknown command") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestEmptyLine(t *testing.T) {
	h, _, _ := newTestHandler()
	if reply := h.Execute("   "); reply != "ERR empty command" {
		t.Fatalf("reply = %q", reply)
	}
}
