package guardian

import (
	"log"
	"strconv"
	"time"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/crypto"
	"github.com/tolelom/guardian/events"
	"github.com/tolelom/guardian/network"
	"github.com/tolelom/guardian/storage"
)

// Node is the top-level guardian process: a network.Node driven by an
// Engine, ticking on a fixed interval. This is a single-threaded, message-
// or-tick driven model — every action happens either inside a handler
// invoked from readLoop or inside Tick invoked from the ticker below.
type Node struct {
	Engine *Engine
	Net    *network.Node
	db     storage.DB

	cfg      *config.Config
	tickStop chan struct{}
}

// NewNode assembles a full guardian process from configuration, an already
// opened database, the node's signing key, and the external collaborators
// (Casper contract client, state transition function), wiring config → db →
// domain state → network → handlers in that order.
func NewNode(cfg *config.Config, db storage.DB, priv crypto.PrivateKey, casper CasperClient, st StateTransition, emitter *events.Emitter) (*Node, error) {
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}

	ownAddress := priv.Public().Address()
	reg := NewRegistry(ownAddress)
	chain := NewChainStore(db, "chain", st, cfg.Protocol)
	tracker := NewTxTracker(db, "tx")
	strat := DefaultBettingStrategy{Bravery: cfg.Protocol.Bravery}

	netNode := network.NewNode(cfg.NodeID, fmtAddr(cfg.P2PPort), tlsCfg)
	engine := NewEngine(netNode, chain, reg, tracker, casper, st, strat, cfg.Protocol, cfg.Test, priv, emitter)

	return &Node{Engine: engine, Net: netNode, db: db, cfg: cfg, tickStop: make(chan struct{})}, nil
}

func fmtAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

// Start connects to every configured seed peer, then starts listening for
// inbound connections and begins the tick loop.
func (n *Node) Start() error {
	if err := n.Net.Start(); err != nil {
		return err
	}
	for _, seed := range n.cfg.SeedPeers {
		if err := n.Net.AddPeer(seed.ID, seed.Addr); err != nil {
			log.Printf("[guardian] connect to seed %s (%s): %v", seed.ID, seed.Addr, err)
		}
	}
	go n.tickLoop()
	return nil
}

// Stop halts the tick loop and shuts down networking.
func (n *Node) Stop() {
	close(n.tickStop)
	n.Net.Stop()
}

func (n *Node) tickLoop() {
	interval := time.Duration(n.cfg.Protocol.BlockTime) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-n.tickStop:
			return
		case <-ticker.C:
			n.Engine.Tick()
		}
	}
}

// Join submits this node's own Casper join transaction if it has not
// already done so at an earlier block: a new guardian must announce itself
// before it appears in anyone's registry.
func (n *Node) Join(validationCode string) error {
	joined, err := n.Engine.Chain.Cursors.JoinedAtBlock()
	if err != nil {
		return err
	}
	if joined >= 0 {
		return nil
	}
	nonce, err := n.Engine.Chain.Cursors.LastNonce()
	if err != nil {
		return err
	}
	tx, err := n.Engine.Casper.Join(validationCode, n.Engine.Registry.OwnAddress, nonce)
	if err != nil {
		return err
	}
	if err := n.Engine.Chain.Cursors.SetLastNonce(nonce + 1); err != nil {
		return err
	}
	n.Engine.broadcastTransaction(tx)
	height, err := n.Engine.Chain.Blocks.Len()
	if err != nil {
		return err
	}
	return n.Engine.Chain.Cursors.SetJoinedAtBlock(height)
}
