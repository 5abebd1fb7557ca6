package guardian

import "testing"

func TestAddProposersSetsNextBlockToProduceForOwnSlot(t *testing.T) {
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
	_ = priv

	if err := AddProposers(cs, casper, reg); err != nil {
		t.Fatalf("AddProposers: %v", err)
	}

	height, ok, err := cs.Cursors.NextBlockToProduce()
	if err != nil {
		t.Fatalf("NextBlockToProduce: %v", err)
	}
	// A single guardian is scheduled every slot, so it must own the very
	// first one the schedule reaches.
	if !ok {
		t.Fatal("expected a scheduled slot for the sole guardian")
	}
	if height != 0 {
		t.Errorf("NextBlockToProduce height = %d, want 0", height)
	}
}

func TestAddProposersExtendsScheduleLength(t *testing.T) {
	cs, casper, _ := newTestChainStore(t)
	casper.Induct("a", "deadbeef", 0, 1000)
	casper.Induct("b", "cafebabe", 0, 1000)
	reg := NewRegistry("c") // not a guardian: no own slot should ever match
	if err := reg.UpdateGuardianSet(casper, nil); err != nil {
		t.Fatalf("UpdateGuardianSet: %v", err)
	}

	if err := AddProposers(cs, casper, reg); err != nil {
		t.Fatalf("AddProposers: %v", err)
	}

	n, err := cs.Proposers.Len()
	if err != nil {
		t.Fatalf("Proposers.Len: %v", err)
	}
	want := cs.protocol.EnterExitDelay - 1
	if n != want {
		t.Errorf("Proposers.Len() = %d, want %d (schedule reaches max_finalized_height + ENTER_EXIT_DELAY - 1 inclusive, so max_finalized_height=-1 yields ENTER_EXIT_DELAY-1 entries)", n, want)
	}

	if _, ok, err := cs.Cursors.NextBlockToProduce(); err != nil {
		t.Fatalf("NextBlockToProduce: %v", err)
	} else if ok {
		t.Error("a non-guardian node should never get a scheduled slot")
	}
}
