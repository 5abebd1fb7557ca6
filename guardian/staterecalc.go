package guardian

import "github.com/tolelom/guardian/config"

// MaxRecalc bounds a routine, same-tick state-root recomputation: at most
// this many heights are replayed before yielding back to the caller.
const MaxRecalc = 9

// MaxLongRecalc is the outer bound used when the recompute cursor has
// fallen far behind (an opinion flip forced a rewind to an earlier
// checkpoint) — a wider catch-up window is allowed, but still capped, so a
// single tick can never block on an unbounded replay.
const MaxLongRecalc = 14

// RecalcStateRoots replays blocks from Cursors.CalcStateRootsFrom forward
// through st, writing each resulting state root into StateRoots and
// advancing the cursor up to the chain tip. The replay window is MaxRecalc
// heights normally, widening to MaxLongRecalc once the cursor has fallen
// 20 or more blocks behind the tip (a rewind from an opinion flip), so a
// single call still can't block on an unbounded catch-up. Any height beyond
// the replay window but still behind the tip gets its state root zeroed out
// rather than left stale, since a later recalc will overwrite it anyway.
func (cs *ChainStore) RecalcStateRoots(st StateTransition) error {
	from, err := cs.Cursors.CalcStateRootsFrom()
	if err != nil {
		return err
	}
	blocksLen, err := cs.Blocks.Len()
	if err != nil {
		return err
	}
	tip := uint64(blocksLen)
	if from >= tip {
		return nil
	}

	limit := uint64(MaxRecalc)
	if int64(from) <= int64(tip)-20 {
		limit = MaxLongRecalc
	}
	end := from + limit
	if end > tip {
		end = tip
	}

	state, err := st.StateAt(from)
	if err != nil {
		return err
	}
	for h := from; h < end; h++ {
		blk, ok, err := cs.Blocks.At(int64(h))
		if err != nil {
			return err
		}
		var next State
		if ok {
			next, err = st.ApplyBlock(state, blk)
		} else {
			next, err = st.ApplyBlock(state, nil)
		}
		if err != nil {
			return err
		}
		if err := cs.StateRoots.Set(int64(h), next.Root(), true); err != nil {
			return err
		}
		state = next
	}
	for h := end; h < tip; h++ {
		if err := cs.StateRoots.Set(int64(h), config.ZeroHash, true); err != nil {
			return err
		}
	}
	return cs.Cursors.SetCalcStateRootsFrom(end)
}

// RewindStateRootsTo forces the next RecalcStateRoots call to start replay
// from height h — used when an opinion's sign around 0.5 flips and earlier
// state roots must be recomputed from the new branch.
func (cs *ChainStore) RewindStateRootsTo(h uint64) error {
	cur, err := cs.Cursors.CalcStateRootsFrom()
	if err != nil {
		return err
	}
	if h >= cur {
		return nil
	}
	return cs.Cursors.SetCalcStateRootsFrom(h)
}

// sideOf reports which side of 0.5 a probability sits on; ties count as the
// "low" side so they compare unequal to either genuine extreme.
func sideOf(p float64) bool { return p > 0.5 }

// RecalcFinality re-derives the weighted-crowd probability at each height
// from CalcFinalityFrom forward, at most MaxRecalc+1 heights per call (with
// no MaxLongRecalc widening).
// Once a height's probability clears FINALITY_HIGH or falls
// below FINALITY_LOW, its plurality block/state-root hash is locked into
// FinalizedHashes and MaxFinalizedHeight advances. If a height's recorded
// side of 0.5 flips from what was last stored there — a late bet changed the
// crowd's mind about an already-processed height — RewindStateRootsTo is
// called so state roots downstream of it are recomputed against the new
// branch.
func (cs *ChainStore) RecalcFinality(reg *Registry, protocol config.Protocol) error {
	from, err := cs.Cursors.CalcFinalityFrom()
	if err != nil {
		return err
	}
	tipLen, err := cs.Blocks.Len()
	if err != nil {
		return err
	}
	if tipLen == 0 {
		return nil
	}
	end := from + MaxRecalc
	if end > uint64(tipLen-1) {
		end = uint64(tipLen - 1)
	}
	if end < from {
		return nil
	}

	maxFinalized, err := cs.Cursors.MaxFinalizedHeight()
	if err != nil {
		return err
	}

	for h := from; h <= end; h++ {
		prevEncoded, hadPrev, err := cs.Probs.At(int64(h))
		if err != nil {
			return err
		}
		newProb := WeightedOpinionProb(reg, h, false)
		if hadPrev && sideOf(prevEncoded.Float()) != sideOf(newProb) {
			if err := cs.RewindStateRootsTo(h); err != nil {
				return err
			}
		}
		if err := cs.Probs.Set(int64(h), EncodeProb(newProb), true); err != nil {
			return err
		}

		_, hasFinal, err := cs.FinalizedHashes.At(int64(h))
		if err != nil {
			return err
		}
		if hasFinal {
			continue
		}
		if newProb < protocol.FinalityHigh && newProb > protocol.FinalityLow {
			continue
		}
		hash, ok := WeightedOpinionHash(reg, h, false)
		if !ok {
			continue
		}
		if err := cs.FinalizedHashes.Set(int64(h), hash, true); err != nil {
			return err
		}
		if int64(h) == maxFinalized+1 {
			maxFinalized = int64(h)
			if err := cs.Cursors.SetMaxFinalizedHeight(maxFinalized); err != nil {
				return err
			}
		}
	}
	return cs.Cursors.SetCalcFinalityFrom(end + 1)
}
