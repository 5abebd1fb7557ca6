package guardian

import (
	"testing"
	"time"

	"github.com/tolelom/guardian/config"
)

func TestMkbetRequiresInduction(t *testing.T) {
	cs, _, _ := newTestChainStore(t)
	reg := NewRegistry("nobody")
	priv, _, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	_, err = Mkbet(cs, reg, DefaultBettingStrategy{Bravery: 0.5}, priv, config.DefaultProtocol(), config.TestKnobs{}, time.Now())
	if err != ErrNotInducted {
		t.Errorf("Mkbet without induction: got %v, want ErrNotInducted", err)
	}
}

func TestMkbetRateLimited(t *testing.T) {
	cs, casper, _ := newTestChainStore(t)
	priv, pub, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	casper.Induct("me", pub.Hex(), 0, 1000)
	reg := NewRegistry("me")
	if err := reg.UpdateGuardianSet(casper, nil); err != nil {
		t.Fatalf("UpdateGuardianSet: %v", err)
	}
	tracker := newTestTracker(t)
	blk := NewBlock(0, zeroHashForTest, "someone", nil)
	blk.Sign(priv)
	if _, err := cs.ReceiveBlock(blk, casper, reg, tracker, noLookup, time.Now()); err != nil {
		t.Fatalf("ReceiveBlock: %v", err)
	}

	now := time.Now()
	first, err := Mkbet(cs, reg, DefaultBettingStrategy{Bravery: 0.5}, priv, config.DefaultProtocol(), config.TestKnobs{}, now)
	if err != nil {
		t.Fatalf("Mkbet (first): %v", err)
	}
	if first == nil {
		t.Fatal("expected a bet on first call")
	}

	second, err := Mkbet(cs, reg, DefaultBettingStrategy{Bravery: 0.5}, priv, config.DefaultProtocol(), config.TestKnobs{}, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Mkbet (second): %v", err)
	}
	if second != nil {
		t.Error("expected nil bet within the rate-limit window")
	}

	// A fresh block must land before mkbet has anything new to report.
	blk2 := NewBlock(1, blk.Hash, "someone", nil)
	blk2.Sign(priv)
	if _, err := cs.ReceiveBlock(blk2, casper, reg, tracker, noLookup, time.Now()); err != nil {
		t.Fatalf("ReceiveBlock (2): %v", err)
	}

	third, err := Mkbet(cs, reg, DefaultBettingStrategy{Bravery: 0.5}, priv, config.DefaultProtocol(), config.TestKnobs{}, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("Mkbet (third): %v", err)
	}
	if third == nil {
		t.Error("expected a new bet once the rate limit window has elapsed")
	}
	if third != nil && third.Seq != first.Seq+1 {
		t.Errorf("third bet Seq = %d, want %d", third.Seq, first.Seq+1)
	}
}

func TestMkbetDoubleBetSuicideReusesSeq(t *testing.T) {
	cs, casper, _ := newTestChainStore(t)
	priv, pub, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	casper.Induct("me", pub.Hex(), 0, 1000)
	reg := NewRegistry("me")
	if err := reg.UpdateGuardianSet(casper, nil); err != nil {
		t.Fatalf("UpdateGuardianSet: %v", err)
	}
	tracker := newTestTracker(t)
	blk := NewBlock(0, zeroHashForTest, "someone", nil)
	blk.Sign(priv)
	if _, err := cs.ReceiveBlock(blk, casper, reg, tracker, noLookup, time.Now()); err != nil {
		t.Fatalf("ReceiveBlock: %v", err)
	}

	// A zero knob is inert, so the knob is armed for seq 1.
	if err := cs.Cursors.SetOwnSeq(1); err != nil {
		t.Fatalf("SetOwnSeq: %v", err)
	}
	test := config.TestKnobs{DoubleBetSuicide: 1}
	now := time.Now()
	first, err := Mkbet(cs, reg, DefaultBettingStrategy{Bravery: 0.5}, priv, config.DefaultProtocol(), test, now)
	if err != nil {
		t.Fatalf("Mkbet (first): %v", err)
	}
	if first.Seq != 1 {
		t.Fatalf("first bet Seq = %d, want 1", first.Seq)
	}

	// A fresh block must land before mkbet has anything new to report.
	blk2 := NewBlock(1, blk.Hash, "someone", nil)
	blk2.Sign(priv)
	if _, err := cs.ReceiveBlock(blk2, casper, reg, tracker, noLookup, time.Now()); err != nil {
		t.Fatalf("ReceiveBlock (2): %v", err)
	}

	second, err := Mkbet(cs, reg, DefaultBettingStrategy{Bravery: 0.5}, priv, config.DefaultProtocol(), test, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("Mkbet (second): %v", err)
	}
	if second.Seq != 1 {
		t.Errorf("second bet Seq = %d, want 1 (suicide mode must not advance the seq cursor)", second.Seq)
	}
	if second.Hash() == first.Hash() {
		t.Error("double-bet-suicide bets at the same seq should differ in content across calls (the second one also covers the newly received block 1)")
	}
}
