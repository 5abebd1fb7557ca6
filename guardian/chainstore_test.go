package guardian

import (
	"testing"
	"time"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/crypto"
	"github.com/tolelom/guardian/internal/testutil"
)

func newTestChainStore(t *testing.T) (*ChainStore, *StateCasperClient, StateTransition) {
	t.Helper()
	db := testutil.NewMemDB()
	st := NewDeterministicStateTransition()
	protocol := config.DefaultProtocol()
	cs := NewChainStore(db, "chain", st, protocol)
	casper := NewStateCasperClient()
	return cs, casper, st
}

func noLookup(address string) (crypto.PublicKey, bool) { return nil, false }

func TestReceiveBlockAcceptsAndDedups(t *testing.T) {
	cs, casper, _ := newTestChainStore(t)
	reg := NewRegistry("nobody")
	priv, _, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	blk := NewBlock(0, zeroHashForTest, "proposer-a", nil)
	blk.Sign(priv)

	tracker := newTestTracker(t)
	res, err := cs.ReceiveBlock(blk, casper, reg, tracker, noLookup, time.Now())
	if err != nil {
		t.Fatalf("ReceiveBlock: %v", err)
	}
	if !res.Accepted {
		t.Fatal("expected Accepted on first receipt")
	}

	res2, err := cs.ReceiveBlock(blk, casper, reg, tracker, noLookup, time.Now())
	if err != nil {
		t.Fatalf("ReceiveBlock (dup): %v", err)
	}
	if !res2.Duplicate {
		t.Error("expected Duplicate on second receipt of the same block")
	}
}

func TestReceiveBlockRejectsInvalidSignature(t *testing.T) {
	cs, casper, _ := newTestChainStore(t)
	reg := NewRegistry("nobody")
	priv, _, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	_, otherPub, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	blk := NewBlock(0, zeroHashForTest, "proposer-a", nil)
	blk.Sign(priv)

	lookup := func(address string) (crypto.PublicKey, bool) { return otherPub, true }
	res, err := cs.ReceiveBlock(blk, casper, reg, newTestTracker(t), lookup, time.Now())
	if err != nil {
		t.Fatalf("ReceiveBlock: %v", err)
	}
	if res.Accepted {
		t.Error("block with a signature that does not verify against the looked-up key should not be accepted")
	}
}

func TestReceiveBlockDetectsDoubleBlock(t *testing.T) {
	cs, casper, _ := newTestChainStore(t)
	reg := NewRegistry("nobody")
	priv, _, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	tracker := newTestTracker(t)
	first := NewBlock(0, zeroHashForTest, "proposer-a", nil)
	first.Sign(priv)
	if _, err := cs.ReceiveBlock(first, casper, reg, tracker, noLookup, time.Now()); err != nil {
		t.Fatalf("ReceiveBlock (first): %v", err)
	}

	second := NewBlock(0, zeroHashForTest, "proposer-a", []*Transaction{NewTransaction(TxTransfer, "x", 0, 1, 1, nil)})
	second.Sign(priv)
	res, err := cs.ReceiveBlock(second, casper, reg, tracker, noLookup, time.Now())
	if err != nil {
		t.Fatalf("ReceiveBlock (second): %v", err)
	}
	if res.SlashBlocksTx == nil {
		t.Fatal("expected a SlashBlocksTx for two different blocks at the same height from the same proposer")
	}
	if res.SlashBlocksTx.Type != TxSlashBlocks {
		t.Errorf("SlashBlocksTx.Type = %v, want TxSlashBlocks", res.SlashBlocksTx.Type)
	}
}

func TestReceiveBlockDetectsSyncGap(t *testing.T) {
	cs, casper, _ := newTestChainStore(t)
	reg := NewRegistry("nobody")
	priv, _, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	farAhead := NewBlock(uint64(cs.protocol.EnterExitDelay+10), zeroHashForTest, "proposer-a", nil)
	farAhead.Sign(priv)

	res, err := cs.ReceiveBlock(farAhead, casper, reg, newTestTracker(t), noLookup, time.Now())
	if err != nil {
		t.Fatalf("ReceiveBlock: %v", err)
	}
	if !res.NeedGetblocks {
		t.Error("expected NeedGetblocks when a block arrives far ahead of the known tip")
	}
	if res.Accepted {
		t.Error("a deferred sync-gap block should not be accepted")
	}
	n, err := cs.Blocks.Len()
	if err != nil {
		t.Fatalf("Blocks.Len: %v", err)
	}
	if n != 0 {
		t.Errorf("Blocks.Len() = %d, want 0 (arrays must not grow out to a deferred block's claimed height)", n)
	}
}
