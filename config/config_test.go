package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate, got: %v", err)
	}
}

func TestValidateRejectsEmptyNodeID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeID = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an empty node_id")
	}
}

func TestValidateRejectsClashingPorts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.P2PPort = cfg.RPCPort
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when rpc_port and p2p_port collide")
	}
}

func TestValidateRejectsBadFinalityThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Protocol.FinalityLow = 0.5
	cfg.Protocol.FinalityHigh = 0.4
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when finality_low >= finality_high")
	}
}

func TestValidateRejectsPartialTLS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLS = &TLSConfig{CACert: "ca.pem"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for a partially-set tls config")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeID = "guardian-test"
	path := filepath.Join(t.TempDir(), "config.json")

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NodeID != "guardian-test" {
		t.Errorf("loaded.NodeID = %q, want guardian-test", loaded.NodeID)
	}
	if loaded.Protocol.Bravery != cfg.Protocol.Bravery {
		t.Errorf("loaded.Protocol.Bravery = %v, want %v", loaded.Protocol.Bravery, cfg.Protocol.Bravery)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(&Config{}, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected Load to reject a config failing Validate")
	}
}
