package guardian

import (
	"math/rand"
	"time"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/crypto"
)

// MakeBlock runs when this node's scheduled proposer slot arrives: it
// assembles a block from the pending transaction pool plus every
// guardian bet received since the last block, sign it, and advance the
// produce cursor. Returns (nil, nil) if it is not yet this node's turn, or
// if this height was already produced (unless a double-block test is
// armed for exactly this height).
func MakeBlock(cs *ChainStore, reg *Registry, tracker *TxTracker, casper CasperClient, st StateTransition, protocol config.Protocol, test config.TestKnobs, priv crypto.PrivateKey, now time.Time) (*Block, error) {
	if reg.OwnIndex < 0 {
		return nil, ErrNotInducted
	}

	height, scheduled, err := cs.Cursors.NextBlockToProduce()
	if err != nil {
		return nil, err
	}
	if !scheduled {
		return nil, nil
	}
	if now.Unix() < protocol.GenesisTime+protocol.BlockTime*int64(height) {
		return nil, nil // this height's slot has not started yet
	}

	lastProduced, err := cs.Cursors.LastBlockProduced()
	if err != nil {
		return nil, err
	}
	suicide := test.DoubleBlockSuicide != 0 && test.DoubleBlockSuicide == int64(height)
	if int64(height) <= lastProduced && !suicide {
		return nil, nil
	}

	state, err := st.StateAt(height)
	if err != nil {
		return nil, err
	}

	pending, err := tracker.Pending()
	if err != nil {
		return nil, err
	}
	var txs []*Transaction
	for _, tx := range pending {
		if ShouldIIncludeTransaction(st, state, tx, test.MinGasPrice) {
			txs = append(txs, tx)
		}
	}

	wrapped, err := wrapRecentBets(reg, casper)
	if err != nil {
		return nil, err
	}
	txs = append(txs, wrapped...)

	prevHash := config.ZeroHash
	if height > 0 {
		if prev, ok, err := cs.Blocks.At(int64(height) - 1); err != nil {
			return nil, err
		} else if ok {
			prevHash = prev.Hash
		}
	}

	blk := NewBlock(height, prevHash, reg.OwnAddress, txs)
	blk.Timestamp = now.Unix()
	blk.Sign(priv)

	if suicide {
		// Byzantine test mode: return the block without advancing
		// LastBlockProduced, so the next call proposes a second, different
		// block at the same height.
		return blk, nil
	}

	if err := cs.Cursors.SetLastBlockProduced(int64(height)); err != nil {
		return nil, err
	}
	return blk, nil
}

// wrapRecentBets packages every guardian's bets newer than the last one
// already wrapped into SubmitBet transactions, in random order so no single
// guardian's bet always lands first in the block.
func wrapRecentBets(reg *Registry, casper CasperClient) ([]*Transaction, error) {
	var out []*Transaction
	for idx, chain := range reg.Bets {
		last := reg.LastBetWrapped[idx]
		highest := reg.HighestBetProcessed[idx]
		for seq := last + 1; seq <= highest; seq++ {
			b, ok := chain[uint64(seq)]
			if !ok {
				continue
			}
			nonce, err := reg.nonceFor(reg.OwnAddress)
			if err != nil {
				return nil, err
			}
			tx, err := casper.SubmitBet(b, reg.OwnAddress, nonce)
			if err != nil {
				return nil, err
			}
			out = append(out, tx)
		}
		reg.LastBetWrapped[idx] = highest
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}
