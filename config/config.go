package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// TLSConfig holds paths to the PEM files needed for mTLS.
// When nil or all paths empty, the node falls back to plain TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`   // CA certificate PEM path
	NodeCert string `json:"node_cert"` // node certificate PEM path
	NodeKey  string `json:"node_key"`  // node private key PEM path
}

// SeedPeer identifies a remote node to connect to on startup.
type SeedPeer struct {
	ID   string `json:"id"`   // remote node ID
	Addr string `json:"addr"` // host:port
}

// Protocol holds the betting-strategy engine's tunable constants as an
// explicit, immutable configuration object instead of compile-time
// constants.
type Protocol struct {
	GenesisTime    int64   `json:"genesis_time"`     // unix seconds, slot 0
	BlockTime      int64   `json:"block_time"`       // seconds per slot ("BLKTIME")
	EnterExitDelay int64   `json:"enter_exit_delay"` // guardian-set settling delay, in blocks
	ValidatorRounds int64  `json:"validator_rounds"` // round-robin bet cadence modulus
	FinalityHigh   float64 `json:"finality_high"`    // probability above which a block is final-in
	FinalityLow    float64 `json:"finality_low"`     // probability below which a block is final-out
	Bravery        float64 `json:"bravery"`          // (0,1]; finalization convergence rate
}

// DefaultProtocol returns the constants used by the reference implementation.
func DefaultProtocol() Protocol {
	return Protocol{
		GenesisTime:     0,
		BlockTime:       7,
		EnterExitDelay:  100,
		ValidatorRounds: 5,
		FinalityHigh:    0.99,
		FinalityLow:     0.01,
		Bravery:         0.92,
	}
}

// TestKnobs are per-node testing/byzantine-simulation switches; all zero
// values are inert (normal honest-guardian behavior).
type TestKnobs struct {
	ClockWrong         int64   `json:"clockwrong,omitempty"`           // seconds to skew the local clock by
	CrazyBet           bool    `json:"crazy_bet,omitempty"`             // emit random probabilities instead of bet_at_height's
	DoubleBlockSuicide int64   `json:"double_block_suicide,omitempty"` // height at which to deliberately double-produce
	DoubleBetSuicide   uint64  `json:"double_bet_suicide,omitempty"`   // seq at which to deliberately double-bet
	MinGasPrice        uint64  `json:"min_gas_price,omitempty"`
	JoinAtBlock        int64   `json:"join_at_block,omitempty"`
}

// Config holds all node configuration.
type Config struct {
	NodeID       string     `json:"node_id"`
	DataDir      string     `json:"data_dir"`
	RPCPort      int        `json:"rpc_port"`
	P2PPort      int        `json:"p2p_port"`
	ChainID      string     `json:"chain_id"`
	Protocol     Protocol   `json:"protocol"`
	Test         TestKnobs  `json:"test,omitempty"`
	SeedPeers    []SeedPeer `json:"seed_peers,omitempty"`
	TLS          *TLSConfig `json:"tls,omitempty"`
	RPCAuthToken string     `json:"rpc_auth_token,omitempty"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:   "guardian0",
		DataDir:  "./data",
		RPCPort:  8545,
		P2PPort:  30303,
		ChainID:  "guardian-dev",
		Protocol: DefaultProtocol(),
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.ChainID == "" {
		return fmt.Errorf("chain_id must not be empty")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port must be 1-65535, got %d", c.RPCPort)
	}
	if c.P2PPort <= 0 || c.P2PPort > 65535 {
		return fmt.Errorf("p2p_port must be 1-65535, got %d", c.P2PPort)
	}
	if c.RPCPort == c.P2PPort {
		return fmt.Errorf("rpc_port and p2p_port must not be the same (%d)", c.RPCPort)
	}
	if c.Protocol.BlockTime <= 0 {
		return fmt.Errorf("protocol.block_time must be positive")
	}
	if c.Protocol.EnterExitDelay <= 0 {
		return fmt.Errorf("protocol.enter_exit_delay must be positive")
	}
	if c.Protocol.ValidatorRounds <= 0 {
		return fmt.Errorf("protocol.validator_rounds must be positive")
	}
	if c.Protocol.Bravery <= 0 || c.Protocol.Bravery > 1 {
		return fmt.Errorf("protocol.bravery must be in (0, 1], got %v", c.Protocol.Bravery)
	}
	if c.Protocol.FinalityLow <= 0 || c.Protocol.FinalityHigh >= 1 || c.Protocol.FinalityLow >= c.Protocol.FinalityHigh {
		return fmt.Errorf("protocol.finality_low/finality_high must satisfy 0 < low < high < 1")
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
