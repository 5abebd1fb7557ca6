package guardian

import "testing"

func newTestRegistryWithGuardian(t *testing.T, index uint32, deposit uint64) (*Registry, *StateCasperClient) {
	t.Helper()
	casper := NewStateCasperClient()
	casper.Induct("addr", "deadbeef", 0, deposit)
	reg := NewRegistry("nobody")
	if err := reg.UpdateGuardianSet(casper, nil); err != nil {
		t.Fatalf("UpdateGuardianSet: %v", err)
	}
	return reg, casper
}

func TestReceiveBetUnknownGuardianIsDropped(t *testing.T) {
	reg, casper := newTestRegistryWithGuardian(t, 0, 1000)
	b := &Bet{Index: 99, MaxHeight: 1, Seq: 0, PrevHash: zeroHashForTest}
	res, err := ReceiveBet(reg, casper, b, "nobody")
	if err != nil {
		t.Fatalf("ReceiveBet: %v", err)
	}
	if !res.UnknownGuardian {
		t.Error("expected UnknownGuardian")
	}
}

func TestReceiveBetAppliesContiguousPrefixAndFlagsGap(t *testing.T) {
	reg, casper := newTestRegistryWithGuardian(t, 0, 1000)

	seq0 := &Bet{Index: 0, MaxHeight: 0, Probs: []Prob{EncodeProb(0.6)}, PrevHash: zeroHashForTest, Seq: 0}
	seq2 := &Bet{Index: 0, MaxHeight: 2, Probs: []Prob{EncodeProb(0.7)}, PrevHash: "whatever", Seq: 2}

	res0, err := ReceiveBet(reg, casper, seq0, "nobody")
	if err != nil {
		t.Fatalf("ReceiveBet seq0: %v", err)
	}
	if len(res0.Applied) != 1 || res0.Applied[0] != 0 {
		t.Errorf("Applied = %v, want [0]", res0.Applied)
	}
	if res0.NeedBetRequest {
		t.Error("no gap should exist yet")
	}

	res2, err := ReceiveBet(reg, casper, seq2, "nobody")
	if err != nil {
		t.Fatalf("ReceiveBet seq2: %v", err)
	}
	if len(res2.Applied) != 0 {
		t.Errorf("seq 2 should not apply while seq 1 is missing, got Applied=%v", res2.Applied)
	}
	if !res2.NeedBetRequest {
		t.Error("expected NeedBetRequest since seq 1 is missing")
	}

	seq1 := &Bet{Index: 0, MaxHeight: 1, Probs: []Prob{EncodeProb(0.65)}, PrevHash: seq0.Hash(), Seq: 1}
	res1, err := ReceiveBet(reg, casper, seq1, "nobody")
	if err != nil {
		t.Fatalf("ReceiveBet seq1: %v", err)
	}
	if len(res1.Applied) != 2 {
		t.Fatalf("Applied = %v, want seq 1 and 2 to both apply now that the gap is filled", res1.Applied)
	}
	if reg.HighestBetProcessed[0] != 2 {
		t.Errorf("HighestBetProcessed = %d, want 2", reg.HighestBetProcessed[0])
	}
}

func TestReceiveBetDetectsDuplicateWithoutSlashingIdenticalContent(t *testing.T) {
	reg, casper := newTestRegistryWithGuardian(t, 0, 1000)
	b := &Bet{Index: 0, MaxHeight: 0, Probs: []Prob{EncodeProb(0.6)}, PrevHash: zeroHashForTest, Seq: 0}
	if _, err := ReceiveBet(reg, casper, b, "nobody"); err != nil {
		t.Fatalf("first ReceiveBet: %v", err)
	}
	res, err := ReceiveBet(reg, casper, b, "nobody")
	if err != nil {
		t.Fatalf("second ReceiveBet: %v", err)
	}
	if !res.Duplicate {
		t.Error("expected Duplicate")
	}
	if res.SlashBetsTx != nil {
		t.Error("identical re-delivery of the same bet should not be slashed")
	}
}

func TestReceiveBetSlashesDoubleBet(t *testing.T) {
	reg, casper := newTestRegistryWithGuardian(t, 0, 1000)
	first := &Bet{Index: 0, MaxHeight: 0, Probs: []Prob{EncodeProb(0.6)}, PrevHash: zeroHashForTest, Seq: 0}
	second := &Bet{Index: 0, MaxHeight: 0, Probs: []Prob{EncodeProb(0.1)}, PrevHash: zeroHashForTest, Seq: 0}

	if _, err := ReceiveBet(reg, casper, first, "nobody"); err != nil {
		t.Fatalf("first ReceiveBet: %v", err)
	}
	res, err := ReceiveBet(reg, casper, second, "nobody")
	if err != nil {
		t.Fatalf("second ReceiveBet: %v", err)
	}
	if !res.Duplicate {
		t.Error("expected Duplicate (same index+seq)")
	}
	if res.SlashBetsTx == nil {
		t.Fatal("expected a SlashBetsTx for conflicting content at the same seq")
	}
	if res.SlashBetsTx.Type != TxSlashBets {
		t.Errorf("SlashBetsTx.Type = %v, want TxSlashBets", res.SlashBetsTx.Type)
	}
}
