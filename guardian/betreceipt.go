package guardian

import "log"

// ReceiveBetResult reports what ReceiveBet decided, leaving network side
// effects (rebroadcast, BET_REQUEST) to the dispatcher.
type ReceiveBetResult struct {
	UnknownGuardian   bool
	Duplicate         bool
	SlashBetsTx       *Transaction
	Applied           []uint64 // seqs newly applied to the guardian's opinion
	NeedBetRequest    bool     // a gap remains after applying the contiguous prefix
	ShouldRebroadcast bool
}

// ReceiveBet drops bets from guardians the registry doesn't know about,
// detects and slashes double bets (two different bets at
// the same (guardian, seq)), then advance that guardian's Opinion by every
// contiguous bet available starting at HighestBetProcessed+1. If a gap
// remains after that advance, the caller should ask for the missing bet.
func ReceiveBet(reg *Registry, casper CasperClient, b *Bet, ownAddress string) (*ReceiveBetResult, error) {
	res := &ReceiveBetResult{}

	chain, ok := reg.Bets[b.Index]
	if !ok {
		res.UnknownGuardian = true
		return res, nil
	}

	if existing, dup := chain[b.Seq]; dup {
		res.Duplicate = true
		if existing.Hash() != b.Hash() {
			nonce, err := reg.nonceFor(ownAddress)
			if err != nil {
				return nil, err
			}
			tx, err := casper.SlashBets([]byte(existing.signingBody()), []byte(b.signingBody()), ownAddress, nonce)
			if err != nil {
				return nil, err
			}
			res.SlashBetsTx = tx
		}
		return res, nil
	}
	chain[b.Seq] = b
	res.ShouldRebroadcast = true

	op, ok := reg.Opinions[b.Index]
	if !ok {
		return res, nil
	}
	highest := reg.HighestBetProcessed[b.Index]
	next := uint64(highest + 1)
	for {
		nb, ok := chain[next]
		if !ok {
			break
		}
		if nb.Seq != op.Seq {
			log.Printf("[opinion] guardian %d: bet seq %d, expected %d", b.Index, nb.Seq, op.Seq)
		}
		if nb.PrevHash != op.PrevHash {
			log.Printf("[opinion] guardian %d: bet seq %d prevhash %s, expected %s", b.Index, nb.Seq, nb.PrevHash, op.PrevHash)
		}
		if err := op.ProcessBet(nb); err != nil {
			return res, err
		}
		reg.HighestBetProcessed[b.Index] = int64(next)
		res.Applied = append(res.Applied, next)
		next++
	}
	if next <= b.Seq {
		res.NeedBetRequest = true
	}
	return res, nil
}

// nonceFor draws the next nonce for a transaction this registry originates
// itself (a slashing report), via the source the node wiring installed.
func (r *Registry) nonceFor(address string) (uint64, error) {
	if r.nonceSource == nil {
		return 0, nil
	}
	return r.nonceSource()
}
