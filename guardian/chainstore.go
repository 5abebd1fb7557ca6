package guardian

import (
	"time"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/crypto"
	"github.com/tolelom/guardian/storage"
)

// getblocksInterval rate-limits GETBLOCKS requests triggered by sync gaps.
const getblocksInterval = 5 * time.Second

// ChainStore is the height-indexed array of candidate blocks plus their
// aggregate finalization probabilities, state roots and finalized hashes.
// Each height holds the first valid block the node received for it; a
// later, different block at an occupied height is not stored.
type ChainStore struct {
	Blocks          *storage.OrderedSequence[*Block]
	StateRoots      *storage.OrderedSequence[string]
	FinalizedHashes *storage.OrderedSequence[string]
	Probs           *storage.OrderedSequence[Prob]
	Proposers       *storage.OrderedSequence[uint32]

	// Recent is the set of heights discovered since the bet producer last
	// emitted, gating whether there is anything fresh to bet on.
	Recent *RecentBlocks

	// seenBlocks dedups ReceiveBlock by content hash regardless of height.
	seenBlocks *storage.KeyedMap[bool]
	// receiptTimes records when each block hash was first received; nothing
	// in this package reads it back.
	receiptTimes *storage.KeyedMap[int64]

	Cursors *Cursors

	stateTransition StateTransition
	protocol        config.Protocol
}

// NewChainStore constructs a ChainStore over db, namespaced so multiple
// collections can share one underlying database.
func NewChainStore(db storage.DB, ns string, st StateTransition, protocol config.Protocol) *ChainStore {
	return &ChainStore{
		Blocks:          storage.NewOrderedSequence[*Block](db, ns+":blocks", blockCodec{}),
		StateRoots:      storage.NewOrderedSequence[string](db, ns+":stateroots", hashCodec{}),
		FinalizedHashes: storage.NewOrderedSequence[string](db, ns+":finalized", hashCodec{}),
		Probs:           storage.NewOrderedSequence[Prob](db, ns+":probs", probCodec{}),
		Proposers:       storage.NewOrderedSequence[uint32](db, ns+":proposers", u32Codec{}),
		Recent:          NewRecentBlocks(db, ns+":recent"),
		seenBlocks:      storage.NewKeyedMap[bool](db, ns+":seen", boolCodec{}),
		receiptTimes:    storage.NewKeyedMap[int64](db, ns+":receipts", int64Codec{}),
		Cursors:         NewCursors(db, ns+":cursors"),
		stateTransition: st,
		protocol:        protocol,
	}
}

// ReceiveBlockResult reports what ReceiveBlock decided, leaving the actual
// network/betting side effects to the dispatcher: ChainStore never calls
// out on its own.
type ReceiveBlockResult struct {
	Accepted          bool
	Duplicate         bool
	NeedGetblocks     bool // sync gap detected and rate limit allows asking
	SlashBlocksTx     *Transaction
	ShouldRebroadcast bool
	ShouldBet         bool // (my_index mod VALIDATOR_ROUNDS) == (block.number mod VALIDATOR_ROUNDS)
}

// ReceiveBlock runs dedup, sync-gap deferral, validity check, array growth,
// guardian registry refresh, double-block slashing, receipt tracking,
// unconfirmed transaction indexing, and the decision of whether this node
// should now produce a bet.
func (cs *ChainStore) ReceiveBlock(block *Block, casper CasperClient, reg *Registry, tracker *TxTracker, proposerPub PublicKeyLookup, now time.Time) (*ReceiveBlockResult, error) {
	res := &ReceiveBlockResult{}

	// Step 1: dedup by content hash.
	seen, err := cs.seenBlocks.Contains(block.Hash)
	if err != nil {
		return nil, err
	}
	if seen {
		res.Duplicate = true
		return res, nil
	}
	if err := cs.seenBlocks.Set(block.Hash, true); err != nil {
		return nil, err
	}

	// Step 2: sync guard — a block this far past what state-root
	// recomputation has settled means we're missing blocks in between; ask
	// for them (rate limited) and defer everything else about this one,
	// without growing the arrays out to its (possibly bogus) height.
	calcFrom, err := cs.Cursors.CalcStateRootsFrom()
	if err != nil {
		return nil, err
	}
	if block.Number >= calcFrom+uint64(cs.protocol.EnterExitDelay)-1 {
		last, err := cs.Cursors.LastTimeSentGetblocks()
		if err != nil {
			return nil, err
		}
		if now.Unix()-last > int64(getblocksInterval.Seconds()) {
			res.NeedGetblocks = true
			if err := cs.Cursors.SetLastTimeSentGetblocks(now.Unix()); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	// Step 3: verify the block's own hash/signature before trusting it.
	if pub, ok := proposerPub(block.Proposer); ok {
		if err := block.Verify(pub); err != nil {
			return res, nil // invalid signature: silently drop
		}
	}

	// Step 4: grow the height-indexed arrays up to block.Number+1.
	if err := cs.Blocks.Grow(int64(block.Number) + 1); err != nil {
		return nil, err
	}
	if err := cs.StateRoots.Grow(int64(block.Number) + 1); err != nil {
		return nil, err
	}
	if err := cs.FinalizedHashes.Grow(int64(block.Number) + 1); err != nil {
		return nil, err
	}
	if err := cs.Probs.Grow(int64(block.Number) + 1); err != nil {
		return nil, err
	}

	// Step 5: refresh the guardian registry — new inductions/withdrawals
	// may have landed in this block.
	if err := reg.UpdateGuardianSet(casper, cs); err != nil {
		return nil, err
	}

	// Step 6: double-block detection — a different block already occupies
	// this height's finalized-candidate slot for the same proposer.
	existing, ok, err := cs.Blocks.At(int64(block.Number))
	if err != nil {
		return nil, err
	}
	if ok && existing.Hash != block.Hash && existing.Proposer == block.Proposer {
		nonce, err := cs.Cursors.LastNonce()
		if err != nil {
			return nil, err
		}
		tx, err := casper.SlashBlocks([]byte(existing.signingBody()), []byte(block.signingBody()), reg.OwnAddress, nonce)
		if err != nil {
			return nil, err
		}
		if err := cs.Cursors.SetLastNonce(nonce + 1); err != nil {
			return nil, err
		}
		res.SlashBlocksTx = tx
	}
	if !ok {
		if err := cs.Blocks.Set(int64(block.Number), block, true); err != nil {
			return nil, err
		}
	}

	// Step 7: track receipt time, and mark this height recently discovered
	// for the bet producer's emission gate.
	if err := cs.receiptTimes.Set(block.Hash, now.Unix()); err != nil {
		return nil, err
	}
	if err := cs.Recent.Add(block.Number); err != nil {
		return nil, err
	}

	// Step 8: index every contained transaction into the unconfirmed
	// index, unless it has already finalized under some other block.
	for i, tx := range block.Txs {
		status, err := tracker.Status(tx.ID)
		if err != nil {
			return nil, err
		}
		if status == "finalized" {
			continue
		}
		if err := tracker.IndexInBlock(tx, block.Hash, 0, i); err != nil {
			return nil, err
		}
	}

	res.Accepted = true
	res.ShouldRebroadcast = true

	// Step 9: round-robin bet cadence — only a fraction of guardians bet on
	// every block, chosen deterministically by (index mod VALIDATOR_ROUNDS).
	if reg.OwnIndex >= 0 {
		rounds := uint64(cs.protocol.ValidatorRounds)
		if rounds > 0 && uint64(reg.OwnIndex)%rounds == block.Number%rounds {
			res.ShouldBet = true
		}
	}

	return res, nil
}

// BlockByHash linear-scans the height-indexed array for a block matching
// hash; ok is false if no stored block matches.
func (cs *ChainStore) BlockByHash(hash string) (*Block, bool, error) {
	n, err := cs.Blocks.Len()
	if err != nil {
		return nil, false, err
	}
	for i := int64(0); i < n; i++ {
		blk, ok, err := cs.Blocks.At(i)
		if err != nil {
			return nil, false, err
		}
		if ok && blk.Hash == hash {
			return blk, true, nil
		}
	}
	return nil, false, nil
}

// PublicKeyLookup resolves a guardian address to its public key, supplied
// by the caller (the registry only stores addresses/validation codes, not
// raw keys — key material is the wallet/Casper layer's job).
type PublicKeyLookup func(address string) (pub crypto.PublicKey, ok bool)
