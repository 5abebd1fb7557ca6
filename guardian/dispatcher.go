package guardian

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/crypto"
	"github.com/tolelom/guardian/events"
	"github.com/tolelom/guardian/network"
)

// Engine wires every guardian component to the network.Node's
// message-handler registry: it is a single-threaded, message-or-tick-driven
// dispatcher with no internal suspension points — every handler runs to
// completion synchronously before the next message is read.
type Engine struct {
	Net      *network.Node
	Chain    *ChainStore
	Registry *Registry
	Tracker  *TxTracker
	Casper   CasperClient
	State    StateTransition
	Strategy BettingStrategy
	Protocol config.Protocol
	Test     config.TestKnobs
	PrivKey  crypto.PrivateKey
	Events   *events.Emitter
}

// NewEngine assembles an Engine from its already-constructed collaborators
// and registers its message handlers on net.
func NewEngine(net *network.Node, chain *ChainStore, reg *Registry, tracker *TxTracker, casper CasperClient, st StateTransition, strat BettingStrategy, protocol config.Protocol, test config.TestKnobs, priv crypto.PrivateKey, emitter *events.Emitter) *Engine {
	e := &Engine{
		Net: net, Chain: chain, Registry: reg, Tracker: tracker,
		Casper: casper, State: st, Strategy: strat,
		Protocol: protocol, Test: test, PrivKey: priv, Events: emitter,
	}
	reg.SetNonceSource(func() (uint64, error) {
		n, err := chain.Cursors.LastNonce()
		if err != nil {
			return 0, err
		}
		if err := chain.Cursors.SetLastNonce(n + 1); err != nil {
			return 0, err
		}
		return n, nil
	})
	e.registerHandlers()
	return e
}

func (e *Engine) registerHandlers() {
	e.Net.Handle(network.MsgBlock, e.handleBlock)
	e.Net.Handle(network.MsgBet, e.handleBet)
	e.Net.Handle(network.MsgBetRequest, e.handleBetRequest)
	e.Net.Handle(network.MsgTransaction, e.handleTransaction)
	e.Net.Handle(network.MsgGetBlock, e.handleGetBlock)
	e.Net.Handle(network.MsgGetBlocks, e.handleGetBlocks)
	e.Net.Handle(network.MsgList, e.handleList)
	e.Net.Handle(network.MsgFaucet, e.handleFaucet)
}

func (e *Engine) pubKeyLookup(address string) (crypto.PublicKey, bool) {
	return e.Registry.PubKeyFor(address)
}

func (e *Engine) handleBlock(peer *network.Peer, msg network.Message) {
	var blk Block
	if err := json.Unmarshal(msg.Payload, &blk); err != nil {
		log.Printf("[guardian] malformed block from %s: %v", peer.ID, err)
		return
	}
	res, err := e.Chain.ReceiveBlock(&blk, e.Casper, e.Registry, e.Tracker, e.pubKeyLookup, time.Now())
	if err != nil {
		log.Printf("[guardian] receive block %d: %v", blk.Number, err)
		return
	}
	if res.Duplicate {
		return
	}
	if res.NeedGetblocks {
		e.sendGetblocks()
	}
	if res.SlashBlocksTx != nil {
		e.Events.Emit(events.Event{Type: events.EventSlashingBlocks, TxID: res.SlashBlocksTx.ID, BlockHeight: int64(blk.Number)})
		e.broadcastTransaction(res.SlashBlocksTx)
	}
	if !res.Accepted {
		return
	}
	e.Events.Emit(events.Event{Type: events.EventBlockReceived, BlockHeight: int64(blk.Number)})
	if res.ShouldRebroadcast {
		e.Net.Broadcast(msg)
	}
	if res.ShouldBet {
		e.produceBet()
	}
}

func (e *Engine) handleBet(peer *network.Peer, msg network.Message) {
	var bet Bet
	if err := json.Unmarshal(msg.Payload, &bet); err != nil {
		log.Printf("[guardian] malformed bet from %s: %v", peer.ID, err)
		return
	}
	res, err := ReceiveBet(e.Registry, e.Casper, &bet, e.Registry.OwnAddress)
	if err != nil {
		log.Printf("[guardian] receive bet (guardian %d seq %d): %v", bet.Index, bet.Seq, err)
		return
	}
	if res.SlashBetsTx != nil {
		e.Events.Emit(events.Event{Type: events.EventSlashingBets, TxID: res.SlashBetsTx.ID})
		e.broadcastTransaction(res.SlashBetsTx)
	}
	if res.UnknownGuardian || res.Duplicate {
		return
	}
	e.Events.Emit(events.Event{Type: events.EventBetReceived})
	if res.ShouldRebroadcast {
		e.Net.Broadcast(msg)
	}
	if res.NeedBetRequest {
		e.sendBetRequest(bet.Index, uint64(e.Registry.HighestBetProcessed[bet.Index]+1))
	}
}

// betRequestPayload is the wire payload for a BET_REQUEST: which
// guardian's bet chain is missing a seq, and which seq.
type betRequestPayload struct {
	Index uint32 `json:"index"`
	Seq   uint64 `json:"seq"`
}

func (e *Engine) sendBetRequest(index uint32, seq uint64) {
	data, _ := json.Marshal(betRequestPayload{Index: index, Seq: seq})
	e.Net.SendToOne(network.Message{Type: network.MsgBetRequest, Payload: data})
}

func (e *Engine) handleBetRequest(peer *network.Peer, msg network.Message) {
	var req betRequestPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		log.Printf("[guardian] malformed bet_request from %s: %v", peer.ID, err)
		return
	}
	chain, ok := e.Registry.Bets[req.Index]
	if !ok {
		return
	}
	b, ok := chain[req.Seq]
	if !ok {
		return
	}
	data, _ := json.Marshal(b)
	if err := peer.Send(network.Message{Type: network.MsgBet, Payload: data}); err != nil {
		log.Printf("[guardian] reply bet_request to %s: %v", peer.ID, err)
	}
}

func (e *Engine) handleTransaction(peer *network.Peer, msg network.Message) {
	var tx Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		log.Printf("[guardian] malformed transaction from %s: %v", peer.ID, err)
		return
	}
	if status, err := e.Tracker.Status(tx.ID); err == nil && status != "" {
		return // already tracked
	}
	if err := e.Tracker.Submit(&tx); err != nil {
		log.Printf("[guardian] submit transaction %s: %v", tx.ID, err)
		return
	}
	e.Net.Broadcast(msg)
}

// getblockHashLen is the minimum length at which a getblockPayload.Key is
// treated as a block hash rather than a decimal height.
const getblockHashLen = 32

type getblockPayload struct {
	Key string `json:"key"`
}

// handleGetBlock answers a single-block request keyed either by height
// (Key shorter than a hash) or by block hash.
func (e *Engine) handleGetBlock(peer *network.Peer, msg network.Message) {
	var req getblockPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return
	}
	var blk *Block
	var ok bool
	var err error
	if len(req.Key) < getblockHashLen {
		height, perr := strconv.ParseUint(req.Key, 10, 64)
		if perr != nil {
			return
		}
		blk, ok, err = e.Chain.Blocks.At(int64(height))
	} else {
		blk, ok, err = e.Chain.BlockByHash(req.Key)
	}
	if err != nil || !ok {
		return
	}
	data, _ := json.Marshal(blk)
	if err := peer.Send(network.Message{Type: network.MsgBlock, Payload: data}); err != nil {
		log.Printf("[guardian] reply getblock to %s: %v", peer.ID, err)
	}
}

type getblocksPayload struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

func (e *Engine) handleGetBlocks(peer *network.Peer, msg network.Message) {
	var req getblocksPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return
	}
	n, err := e.Chain.Blocks.Len()
	if err != nil {
		return
	}
	to := req.To
	if uint64(n) < to {
		to = uint64(n)
	}
	for h := req.From; h < to; h++ {
		blk, ok, err := e.Chain.Blocks.At(int64(h))
		if err != nil || !ok {
			continue
		}
		data, _ := json.Marshal(blk)
		if err := peer.Send(network.Message{Type: network.MsgBlock, Payload: data}); err != nil {
			log.Printf("[guardian] reply getblocks to %s: %v", peer.ID, err)
			return
		}
	}
}

// getblocksWindow bounds a single GETBLOCKS request to at most this many
// direct-sent BLOCK replies.
const getblocksWindow = 30

func (e *Engine) sendGetblocks() {
	maxFinalized, err := e.Chain.Cursors.MaxFinalizedHeight()
	if err != nil {
		return
	}
	from := maxFinalized + 1
	if from < 0 {
		from = 0
	}
	data, _ := json.Marshal(getblocksPayload{From: uint64(from), To: uint64(from) + getblocksWindow})
	e.Net.SendToOne(network.Message{Type: network.MsgGetBlocks, Payload: data})
}

// handleList unwraps a LIST envelope — a batch of messages a peer gathered
// on our behalf while we were out of sync — and redispatches each contained
// message as if it had arrived on its own, saving one round trip per item.
func (e *Engine) handleList(peer *network.Peer, msg network.Message) {
	var batch []network.Message
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		log.Printf("[guardian] malformed list from %s: %v", peer.ID, err)
		return
	}
	for _, m := range batch {
		e.Net.Dispatch(peer, m)
	}
}

type faucetPayload struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// handleFaucet accepts a development-network funding request. If this
// node's own balance can cover twice the requested amount (leaving room
// for its own gas and future requests), it funds the request directly;
// otherwise it forwards the request to a peer rather than drain itself.
func (e *Engine) handleFaucet(peer *network.Peer, msg network.Message) {
	var req faucetPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return
	}
	state, err := e.State.StateAt(0)
	if err != nil {
		return
	}
	if e.State.Balance(state, e.Registry.OwnAddress) < 2*req.Amount {
		data, _ := json.Marshal(req)
		e.Net.SendToOne(network.Message{Type: network.MsgFaucet, Payload: data})
		return
	}
	nonce, err := e.Chain.Cursors.LastNonce()
	if err != nil {
		return
	}
	if err := e.Chain.Cursors.SetLastNonce(nonce + 1); err != nil {
		return
	}
	payload, _ := json.Marshal(req)
	tx := NewTransaction(TxTransfer, e.Registry.OwnAddress, nonce, 21000, 0, payload)
	tx.Sign(e.PrivKey)
	e.broadcastTransaction(tx)
}

func (e *Engine) broadcastTransaction(tx *Transaction) {
	data, _ := json.Marshal(tx)
	e.Net.Broadcast(network.Message{Type: network.MsgTransaction, Payload: data})
	_ = e.Tracker.Submit(tx)
}

// produceBet runs Mkbet and, if it yields a new bet, feeds it back through
// ReceiveBet (so this node's own opinion of itself advances exactly like a
// peer's would) and broadcasts it.
func (e *Engine) produceBet() {
	bet, err := Mkbet(e.Chain, e.Registry, e.Strategy, e.PrivKey, e.Protocol, e.Test, time.Now())
	if err != nil {
		if err != ErrNotInducted {
			log.Printf("[guardian] mkbet: %v", err)
		}
		return
	}
	if bet == nil {
		return
	}
	if _, err := ReceiveBet(e.Registry, e.Casper, bet, e.Registry.OwnAddress); err != nil {
		log.Printf("[guardian] self-feedback bet: %v", err)
	}
	data, _ := json.Marshal(bet)
	e.Net.Broadcast(network.Message{Type: network.MsgBet, Payload: data})
}

// produceBlock runs MakeBlock and, if it is this node's turn, feeds the
// result back through ReceiveBlock and broadcasts it.
func (e *Engine) produceBlock() {
	blk, err := MakeBlock(e.Chain, e.Registry, e.Tracker, e.Casper, e.State, e.Protocol, e.Test, e.PrivKey, time.Now())
	if err != nil {
		if err != ErrNotInducted {
			log.Printf("[guardian] make_block: %v", err)
		}
		return
	}
	if blk == nil {
		return
	}
	if _, err := e.Chain.ReceiveBlock(blk, e.Casper, e.Registry, e.Tracker, e.pubKeyLookup, time.Now()); err != nil {
		log.Printf("[guardian] self-feedback block: %v", err)
	}
	data, _ := json.Marshal(blk)
	e.Net.Broadcast(network.Message{Type: network.MsgBlock, Payload: data})
}

// Tick drives every periodic, non-message-triggered action: finality and
// state-root recomputation, block production (when scheduled), bet
// production, and the transaction tracker's inclusion sweep. It is the engine's only other entry point
// besides the message handlers.
func (e *Engine) Tick() {
	if err := e.Chain.RecalcFinality(e.Registry, e.Protocol); err != nil {
		log.Printf("[guardian] recalc_finality: %v", err)
	}
	if err := e.Chain.RecalcStateRoots(e.State); err != nil {
		log.Printf("[guardian] recalc_state_roots: %v", err)
	}
	e.produceBlock()
	e.produceBet()
	if err := e.Tracker.Sweep(e.Chain, e.State); err != nil {
		log.Printf("[guardian] tx tracker sweep: %v", err)
	}
}
