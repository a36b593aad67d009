package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg != Default {
		t.Fatalf("got %+v, want Default", cfg)
	}
}

func TestLoadValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	body := `
node_id = 5
is_gateway = false
slot = 2
n_slots = 6
rssi_min = -110
tx_power_dbm = 17

[mqtt]
host = "broker.local"
port = 1883
topic = "mesh"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeID != 5 || cfg.IsGateway || cfg.Slot != 2 || cfg.NSlots != 6 {
		t.Fatalf("unexpected node sizing: %+v", cfg)
	}
	if cfg.RSSIMin != -110 || cfg.TxPowerDBm != 17 {
		t.Fatalf("unexpected radio defaults: %+v", cfg)
	}
	if cfg.MQTT.Host != "broker.local" {
		t.Fatalf("unexpected mqtt config: %+v", cfg.MQTT)
	}
}

func TestSanitizeRejectsOutOfRangeFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	body := `
node_id = 9
rssi_min = 5
tx_power_dbm = 99
slot = 10
n_slots = 6
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RSSIMin != Default.RSSIMin {
		t.Fatalf("out-of-range rssi_min must fall back to default, got %d", cfg.RSSIMin)
	}
	if cfg.TxPowerDBm != Default.TxPowerDBm {
		t.Fatalf("out-of-range tx_power_dbm must fall back to default, got %d", cfg.TxPowerDBm)
	}
	if cfg.Slot != Default.Slot {
		t.Fatalf("slot >= n_slots must fall back to default, got %d", cfg.Slot)
	}
}
