package guardian

import "github.com/tolelom/guardian/config"

// AddProposers scans backwards from the last index of FinalizedHashes for the
// first state root that is already known, then
// extend the proposer schedule forward from there to
// max_finalized_height + ENTER_EXIT_DELAY - 1. If any newly-appended slot
// names this node, next_block_to_produce is set and the scan stops.
func AddProposers(cs *ChainStore, casper CasperClient, reg *Registry) error {
	finalizedLen, err := cs.FinalizedHashes.Len()
	if err != nil {
		return err
	}

	// Scan backwards for the first height with a known (non-zero) state root.
	from := finalizedLen - 1
	for from >= 0 {
		root, ok, err := cs.StateRoots.At(from)
		if err != nil {
			return err
		}
		if ok && root != config.ZeroHash {
			break
		}
		from--
	}
	if from < 0 {
		from = 0
	}
	state, err := cs.stateTransition.StateAt(uint64(from))
	if err != nil {
		return err
	}

	maxFinalized, err := cs.Cursors.MaxFinalizedHeight()
	if err != nil {
		return err
	}
	rawTarget := maxFinalized + cs.protocol.EnterExitDelay - 1
	if rawTarget < 0 {
		rawTarget = 0
	}
	target := uint64(rawTarget)

	proposersLen, err := cs.Proposers.Len()
	if err != nil {
		return err
	}

	guardianCount := uint32(len(reg.Opinions))
	for h := uint64(proposersLen); h <= target; h++ {
		idx := cs.stateTransition.GuardianIndexAt(state, h, guardianCount)
		if err := cs.Proposers.Append(idx, true); err != nil {
			return err
		}
		if reg.OwnIndex >= 0 && idx == uint32(reg.OwnIndex) {
			if err := cs.Cursors.SetNextBlockToProduce(h, true); err != nil {
				return err
			}
			return nil
		}
	}
	return nil
}
