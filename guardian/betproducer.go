package guardian

import (
	"errors"
	"math/rand"
	"time"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/crypto"
)

// ErrNotInducted is returned by Mkbet when this node has no guardian index
// yet (it has not been seen in the guardian registry).
var ErrNotInducted = errors.New("guardian: not yet inducted, cannot bet")

// betInterval rate-limits bet production to once per this many seconds.
const betInterval = 2 * time.Second

// Mkbet builds, signs, and records this node's next bet, walking backward
// from the current chain tip and assigning each height a probability via
// strat, until it reaches a height whose probability has already settled
// past the finalization thresholds or the bet's lower bound (blockstart, see
// below). It returns (nil, nil) if the rate limit has not yet elapsed, or if
// nothing new has been discovered since the last bet was emitted.
func Mkbet(cs *ChainStore, reg *Registry, strat BettingStrategy, priv crypto.PrivateKey, protocol config.Protocol, test config.TestKnobs, now time.Time) (*Bet, error) {
	if reg.OwnIndex < 0 {
		return nil, ErrNotInducted
	}

	lastMade, err := cs.Cursors.LastBetMade()
	if err != nil {
		return nil, err
	}
	if now.Unix()-lastMade < int64(betInterval.Seconds()) {
		return nil, nil
	}

	// Nothing discovered since the last emission: no fresh opinion to
	// report, so stay silent rather than re-sign the same bet.
	recentMin, hasRecent, err := cs.Recent.Min()
	if err != nil {
		return nil, err
	}
	if !hasRecent {
		return nil, nil
	}
	blockstart := recentMin
	if reg.InductionHeight > blockstart {
		blockstart = reg.InductionHeight
	}

	tipLen, err := cs.Blocks.Len()
	if err != nil {
		return nil, err
	}
	if tipLen == 0 {
		return nil, nil
	}
	maxHeight := tipLen - 1

	var probs, stateRootProbs []Prob
	var blockHashes, stateRoots []string

	for h := maxHeight; h >= 0; h-- {
		p := strat.ProbAt(WeightedOpinionProb(reg, uint64(h), false))
		srP := strat.ProbAt(WeightedOpinionProb(reg, uint64(h), true))
		if test.CrazyBet {
			p = rand.Float64()
			srP = rand.Float64()
		}
		probs = append(probs, EncodeProb(p))
		stateRootProbs = append(stateRootProbs, EncodeProb(srP))

		blk, ok, err := cs.Blocks.At(int64(h))
		if err != nil {
			return nil, err
		}
		if ok {
			blockHashes = append(blockHashes, blk.Hash)
		} else {
			blockHashes = append(blockHashes, config.ZeroHash)
		}

		root, ok, err := cs.StateRoots.At(int64(h))
		if err != nil {
			return nil, err
		}
		if ok {
			stateRoots = append(stateRoots, root)
		} else {
			stateRoots = append(stateRoots, config.ZeroHash)
		}

		// Once a height's probability has already settled past the
		// finalization thresholds, everything below it is also settled;
		// stop walking further back. Never walk below blockstart either.
		if p >= protocol.FinalityHigh || p <= protocol.FinalityLow {
			break
		}
		if uint64(h) <= blockstart {
			break
		}
	}

	prevHash, err := cs.Cursors.OwnPrevHash()
	if err != nil {
		return nil, err
	}
	seq, err := cs.Cursors.OwnSeq()
	if err != nil {
		return nil, err
	}

	bet := &Bet{
		Index:          uint32(reg.OwnIndex),
		MaxHeight:      uint64(maxHeight),
		Probs:          probs,
		BlockHashes:    blockHashes,
		StateRoots:     stateRoots,
		StateRootProbs: stateRootProbs,
		PrevHash:       prevHash,
		Seq:            seq,
	}
	bet.Sign(priv)

	// A double-bet byzantine test: deliberately hold the seq cursor back so
	// the *next* mkbet call reuses this seq with different content.
	if test.DoubleBetSuicide != 0 && seq == test.DoubleBetSuicide {
		if err := cs.Cursors.SetLastBetMade(now.Unix()); err != nil {
			return nil, err
		}
		if err := cs.Recent.Clear(); err != nil {
			return nil, err
		}
		return bet, nil
	}

	if err := cs.Cursors.SetOwnPrevHash(bet.Hash()); err != nil {
		return nil, err
	}
	if err := cs.Cursors.SetOwnSeq(seq + 1); err != nil {
		return nil, err
	}
	if err := cs.Cursors.SetLastBetMade(now.Unix()); err != nil {
		return nil, err
	}
	if err := cs.Recent.Clear(); err != nil {
		return nil, err
	}
	return bet, nil
}
