package guardian

import "github.com/tolelom/guardian/crypto"

// Registry tracks guardian induction/withdrawal as observed through Casper
// reads, and owns the per-guardian bet chains and opinions derived from
// them.
type Registry struct {
	Opinions            map[uint32]*Opinion
	Bets                map[uint32]map[uint64]*Bet
	HighestBetProcessed map[uint32]int64 // -1 sentinel: no bet applied yet
	LastBetWrapped      map[uint32]int64 // -1 sentinel: highest seq already wrapped into a block
	Addresses           map[uint32]string // guardian index -> on-chain address
	seenCounter         map[uint32]uint64

	OwnAddress      string
	OwnIndex        int32 // -1 until this node is inducted
	InductionHeight uint64

	nonceSource NonceSource
}

// NonceSource returns the next nonce to use for a transaction this node
// originates, and advances the underlying counter. Node wiring backs this
// with the same Cursors.LastNonce/SetLastNonce pair ChainStore uses, since
// both draw from one account's transaction sequence.
type NonceSource func() (uint64, error)

// SetNonceSource wires the registry's own-address transaction nonce
// counter, used when it needs to originate a slashing report itself.
func (r *Registry) SetNonceSource(src NonceSource) {
	r.nonceSource = src
}

// NewRegistry creates an empty Registry for a node whose own address is
// ownAddress (used to detect self-induction).
func NewRegistry(ownAddress string) *Registry {
	return &Registry{
		Opinions:            make(map[uint32]*Opinion),
		Bets:                make(map[uint32]map[uint64]*Bet),
		HighestBetProcessed: make(map[uint32]int64),
		LastBetWrapped:      make(map[uint32]int64),
		Addresses:           make(map[uint32]string),
		seenCounter:         make(map[uint32]uint64),
		OwnAddress:          ownAddress,
		OwnIndex:            -1,
	}
}

// UpdateGuardianSet scans every index up to Casper's next-guardian-index
// counter; any index whose on-chain counter
// hasn't been observed before is a newly-inducted guardian, so create its
// Opinion and bet chain. If the new guardian's address is our own, record
// our index and induction height and extend the proposer schedule.
func (r *Registry) UpdateGuardianSet(casper CasperClient, cs *ChainStore) error {
	next, err := casper.GetNextGuardianIndex()
	if err != nil {
		return err
	}
	for i := uint32(0); i < next; i++ {
		counter, err := casper.GetGuardianCounter(i)
		if err != nil {
			return err
		}
		if seen, ok := r.seenCounter[i]; ok && seen == counter {
			continue
		}
		r.seenCounter[i] = counter

		valCode, err := casper.GetGuardianValidationCode(i)
		if err != nil {
			return err
		}
		inductionHeight, err := casper.GetGuardianInductionHeight(i)
		if err != nil {
			return err
		}
		deposit, err := casper.GetGuardianDeposit(i)
		if err != nil {
			return err
		}
		r.Opinions[i] = NewOpinion(valCode, i, inductionHeight, deposit)
		r.Bets[i] = make(map[uint64]*Bet)
		r.HighestBetProcessed[i] = -1
		r.LastBetWrapped[i] = -1

		addr, err := casper.GetGuardianAddress(i)
		if err != nil {
			return err
		}
		r.Addresses[i] = addr
		if addr == r.OwnAddress {
			r.OwnIndex = int32(i)
			r.InductionHeight = inductionHeight
			if cs != nil {
				if err := AddProposers(cs, casper, r); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// PubKeyFor resolves a guardian's on-chain address to the ed25519 public
// key encoded in its validation code. Real Casper validation code is
// arbitrary EVM bytecode; this engine's stand-in treats it as a
// hex-encoded public key, which is all ReceiveBlock/ReceiveBet need to
// verify a signature.
func (r *Registry) PubKeyFor(address string) (crypto.PublicKey, bool) {
	for idx, addr := range r.Addresses {
		if addr != address {
			continue
		}
		op, ok := r.Opinions[idx]
		if !ok {
			return nil, false
		}
		pub, err := crypto.PubKeyFromHex(op.ValidationCode)
		if err != nil {
			return nil, false
		}
		return pub, true
	}
	return nil, false
}
