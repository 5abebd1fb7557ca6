package guardian

import (
	"encoding/json"
	"testing"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/events"
	"github.com/tolelom/guardian/network"
)

func newTestEngine(t *testing.T) (*Engine, *ChainStore, *Registry, *StateCasperClient) {
	t.Helper()
	cs, casper, st := newTestChainStore(t)
	priv, pub, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	casper.Induct("me", pub.Hex(), 0, 1000)
	reg := NewRegistry("me")
	if err := reg.UpdateGuardianSet(casper, nil); err != nil {
		t.Fatalf("UpdateGuardianSet: %v", err)
	}
	tracker := NewTxTracker(newMemDBForTest(t), "tx")
	net := network.NewNode("me", "127.0.0.1:0", nil)
	emitter := events.NewEmitter()
	e := NewEngine(net, cs, reg, tracker, casper, st, DefaultBettingStrategy{Bravery: 0.5}, config.DefaultProtocol(), config.TestKnobs{}, priv, emitter)
	return e, cs, reg, casper
}

func TestEngineHandleTransactionSubmitsToTracker(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	tx := NewTransaction(TxTransfer, "alice", 0, 21000, 1, nil)
	tx.ID = "tx-1"
	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatal(err)
	}

	e.handleTransaction(nil, network.Message{Type: network.MsgTransaction, Payload: data})

	status, err := e.Tracker.Status("tx-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != "pending" {
		t.Errorf("Status = %q, want pending", status)
	}
}

func TestEngineHandleTransactionIgnoresAlreadyTracked(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	tx := NewTransaction(TxTransfer, "alice", 0, 21000, 1, nil)
	tx.ID = "tx-1"
	if err := e.Tracker.Submit(tx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.Tracker.IndexInBlock(tx, "some-block", 0, 0); err != nil {
		t.Fatalf("IndexInBlock: %v", err)
	}

	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatal(err)
	}
	e.handleTransaction(nil, network.Message{Type: network.MsgTransaction, Payload: data})

	status, err := e.Tracker.Status("tx-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != "unconfirmed" {
		t.Errorf("Status = %q, want unconfirmed (re-delivery must not reset it to pending)", status)
	}
}

func TestEngineHandleBlockEmitsEventOnAcceptance(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	priv2, _, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	blk := NewBlock(0, zeroHashForTest, "proposer-a", nil)
	blk.Sign(priv2)

	var received []events.Event
	e.Events.Subscribe(events.EventBlockReceived, func(ev events.Event) {
		received = append(received, ev)
	})

	data, err := json.Marshal(blk)
	if err != nil {
		t.Fatal(err)
	}
	e.handleBlock(nil, network.Message{Type: network.MsgBlock, Payload: data})

	if len(received) != 1 {
		t.Fatalf("got %d block_received events, want 1", len(received))
	}
	if received[0].BlockHeight != 0 {
		t.Errorf("BlockHeight = %d, want 0", received[0].BlockHeight)
	}
}

func TestEngineHandleBetDispatchesToRegistry(t *testing.T) {
	e, _, reg, _ := newTestEngine(t)
	b := &Bet{Index: 0, MaxHeight: 0, Probs: []Prob{EncodeProb(0.6)}, PrevHash: zeroHashForTest, Seq: 0}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}

	var received []events.Event
	e.Events.Subscribe(events.EventBetReceived, func(ev events.Event) {
		received = append(received, ev)
	})

	e.handleBet(nil, network.Message{Type: network.MsgBet, Payload: data})

	if len(received) != 1 {
		t.Fatalf("got %d bet_received events, want 1", len(received))
	}
	if reg.HighestBetProcessed[0] != 0 {
		t.Errorf("HighestBetProcessed[0] = %d, want 0", reg.HighestBetProcessed[0])
	}
}

func TestEngineTickProducesScheduledBlock(t *testing.T) {
	e, cs, _, _ := newTestEngine(t)
	if err := cs.Cursors.SetNextBlockToProduce(0, true); err != nil {
		t.Fatalf("SetNextBlockToProduce: %v", err)
	}

	e.Tick()

	n, err := cs.Blocks.Len()
	if err != nil {
		t.Fatalf("Blocks.Len: %v", err)
	}
	if n != 1 {
		t.Errorf("Blocks.Len() = %d, want 1 after Tick produced the scheduled block", n)
	}
}
