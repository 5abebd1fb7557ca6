package guardian

import "testing"

func TestDefaultBettingStrategyNudgesTowardExtreme(t *testing.T) {
	s := DefaultBettingStrategy{Bravery: 0.5}
	if got := s.ProbAt(0.8); got <= 0.8 || got >= 1.0 {
		t.Errorf("ProbAt(0.8) = %v, want strictly between 0.8 and 1.0", got)
	}
	if got := s.ProbAt(0.2); got >= 0.2 || got <= 0.0 {
		t.Errorf("ProbAt(0.2) = %v, want strictly between 0.0 and 0.2", got)
	}
	if got := s.ProbAt(0.5); got != 0.5 {
		t.Errorf("ProbAt(0.5) = %v, want 0.5 unchanged", got)
	}
}

func TestDefaultBettingStrategyZeroBraveryNeverNudges(t *testing.T) {
	s := DefaultBettingStrategy{Bravery: 0}
	for _, p := range []float64{0.1, 0.4, 0.6, 0.9} {
		if got := s.ProbAt(p); got != p {
			t.Errorf("ProbAt(%v) with zero bravery = %v, want unchanged", p, got)
		}
	}
}

func newOpinionWithProb(index uint32, deposit uint64, h uint64, p float64) *Opinion {
	op := NewOpinion("deadbeef", index, 0, deposit)
	op.extend(h + 1)
	op.Probs[h] = OptProb{Value: EncodeProb(p), Ok: true}
	op.BlockHashes[h] = OptHash{Value: "hash-for-test", Ok: true}
	return op
}

func TestWeightedOpinionProbWeightsByDeposit(t *testing.T) {
	reg := NewRegistry("me")
	reg.Opinions[0] = newOpinionWithProb(0, 300, 5, 0.9)
	reg.Opinions[1] = newOpinionWithProb(1, 100, 5, 0.1)

	got := WeightedOpinionProb(reg, 5, false)
	// Opinions hold byte-encoded probabilities, so the weights apply to the
	// decoded values.
	want := (300*EncodeProb(0.9).Float() + 100*EncodeProb(0.1).Float()) / 400
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("WeightedOpinionProb = %v, want %v", got, want)
	}
}

func TestWeightedOpinionProbDefaultsToHalfWhenNoOpinions(t *testing.T) {
	reg := NewRegistry("me")
	if got := WeightedOpinionProb(reg, 5, false); got != 0.5 {
		t.Errorf("WeightedOpinionProb on empty registry = %v, want 0.5", got)
	}
}

func TestWeightedOpinionProbExcludesWithdrawnGuardians(t *testing.T) {
	reg := NewRegistry("me")
	withdrawn := newOpinionWithProb(0, 1000, 5, 0.99)
	withdrawn.Withdrawn = true
	withdrawn.WithdrawalHeight = 3
	reg.Opinions[0] = withdrawn
	reg.Opinions[1] = newOpinionWithProb(1, 100, 5, 0.1)

	got := WeightedOpinionProb(reg, 5, false)
	if want := EncodeProb(0.1).Float(); got != want {
		t.Errorf("WeightedOpinionProb = %v, want %v (withdrawn guardian excluded)", got, want)
	}
}

func TestWeightedOpinionHashPicksPlurality(t *testing.T) {
	reg := NewRegistry("me")
	reg.Opinions[0] = newOpinionWithProb(0, 500, 5, 0.9)
	op1 := newOpinionWithProb(1, 100, 5, 0.9)
	op1.BlockHashes[5] = OptHash{Value: "minority-hash", Ok: true}
	reg.Opinions[1] = op1

	hash, ok := WeightedOpinionHash(reg, 5, false)
	if !ok {
		t.Fatal("expected a plurality hash")
	}
	if hash != "hash-for-test" {
		t.Errorf("WeightedOpinionHash = %q, want the higher-deposit guardian's hash", hash)
	}
}
