package guardian

// BettingStrategy computes this node's own probability for a height given
// the deposit-weighted average of other guardians' current opinions there.
// The reference default strategy is reproduced here as
// DefaultBettingStrategy: converge toward the crowd, but lean bravely
// toward whichever side of 0.5 it already favors.
type BettingStrategy interface {
	ProbAt(weightedAvg float64) float64
}

// DefaultBettingStrategy pushes the crowd's weighted average a further
// fraction of the remaining distance toward the nearest extreme.
type DefaultBettingStrategy struct {
	Bravery float64 // (0,1]; 0 never nudges, 1 jumps straight to the extreme
}

// ProbAt implements BettingStrategy.
func (s DefaultBettingStrategy) ProbAt(weightedAvg float64) float64 {
	switch {
	case weightedAvg > 0.5:
		return weightedAvg + (1-weightedAvg)*s.Bravery
	case weightedAvg < 0.5:
		return weightedAvg - weightedAvg*s.Bravery
	default:
		return weightedAvg
	}
}

// WeightedOpinionProb computes the deposit-weighted average probability the
// current guardian set assigns to height h, reading each guardian's
// Opinion.Probs (or StateRootProbs, when stateRoot is true). Guardians that
// withdrew at or before h, or that never expressed an opinion at h, are
// excluded from both the sum and the weight total.
func WeightedOpinionProb(reg *Registry, h uint64, stateRoot bool) float64 {
	var totalWeight, weightedSum float64
	for _, op := range reg.Opinions {
		if op.Withdrawn && op.WithdrawalHeight <= h {
			continue
		}
		arr := op.Probs
		if stateRoot {
			arr = op.StateRootProbs
		}
		if h >= uint64(len(arr)) || !arr[h].Ok {
			continue
		}
		w := float64(op.DepositSize)
		if w == 0 {
			w = 1
		}
		totalWeight += w
		weightedSum += w * arr[h].Value.Float()
	}
	if totalWeight == 0 {
		return 0.5
	}
	return weightedSum / totalWeight
}

// WeightedOpinionHash returns the deposit-weighted plurality block hash the
// current guardian set names at height h, used to decide which candidate
// actually finalizes once WeightedOpinionProb clears FINALITY_HIGH.
func WeightedOpinionHash(reg *Registry, h uint64, stateRoot bool) (string, bool) {
	weights := make(map[string]float64)
	for _, op := range reg.Opinions {
		if op.Withdrawn && op.WithdrawalHeight <= h {
			continue
		}
		arr := op.BlockHashes
		if stateRoot {
			arr = op.StateRoots
		}
		if h >= uint64(len(arr)) || !arr[h].Ok {
			continue
		}
		w := float64(op.DepositSize)
		if w == 0 {
			w = 1
		}
		weights[arr[h].Value] += w
	}
	var best string
	var bestWeight float64
	found := false
	for hash, w := range weights {
		if !found || w > bestWeight {
			best, bestWeight, found = hash, w, true
		}
	}
	return best, found
}
