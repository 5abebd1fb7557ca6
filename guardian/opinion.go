package guardian

import (
	"errors"
	"math"

	"github.com/tolelom/guardian/config"
)

// ErrBetAfterWithdrawal is the fatal slashing-trigger condition: a bet
// arrived for a guardian whose opinion already recorded withdrawal. This
// should never happen against an honest network; if it is ever observed
// locally it indicates a broken invariant upstream and the node must stop.
var ErrBetAfterWithdrawal = errors.New("guardian: bet received after withdrawal")

// OptHash is a height-indexed slot that may be a hole ("unknown"),
// distinguishable from the legitimate zero hash.
type OptHash struct {
	Value string
	Ok    bool
}

// OptProb is the Prob equivalent of OptHash.
type OptProb struct {
	Value Prob
	Ok    bool
}

// Opinion is the engine's reduced view of one guardian's latest position,
// built by replaying that guardian's bet chain. Arrays are indexed upwards
// by absolute height; index 0 is height 0.
type Opinion struct {
	ValidationCode string
	Index          uint32

	BlockHashes    []OptHash
	StateRoots     []OptHash
	Probs          []OptProb
	StateRootProbs []OptProb

	PrevHash string // hash of the last bet applied
	Seq      uint64 // expected next seq

	InductionHeight  uint64
	WithdrawalHeight uint64 // math.MaxUint64 until set
	Withdrawn        bool
	DepositSize      uint64
}

// NewOpinion creates a fresh Opinion for a newly-inducted guardian.
func NewOpinion(validationCode string, index uint32, inductionHeight uint64, depositSize uint64) *Opinion {
	return &Opinion{
		ValidationCode:   validationCode,
		Index:            index,
		PrevHash:         config.ZeroHash,
		Seq:              0,
		InductionHeight:  inductionHeight,
		WithdrawalHeight: math.MaxUint64,
		DepositSize:      depositSize,
	}
}

func (o *Opinion) extend(n uint64) {
	for uint64(len(o.BlockHashes)) < n {
		o.BlockHashes = append(o.BlockHashes, OptHash{})
		o.StateRoots = append(o.StateRoots, OptHash{})
		o.Probs = append(o.Probs, OptProb{})
		o.StateRootProbs = append(o.StateRootProbs, OptProb{})
	}
}

// ProcessBet applies bet B to this opinion via a seven-step protocol.
func (o *Opinion) ProcessBet(b *Bet) error {
	// Step 1: sequence mismatch is logged by the caller (ReceiveBet), not
	// fatal here — ReceiveBet buffers bets and replays them in seq order.
	// Step 2: prevhash mismatch is likewise logged by ReceiveBet.

	// Step 3: withdrawn guardians may never bet again.
	if o.Withdrawn {
		return ErrBetAfterWithdrawal
	}

	// Step 4.
	o.Seq = b.Seq + 1
	o.PrevHash = b.Hash()

	// Step 5: withdrawal bet.
	if b.IsWithdrawal() {
		o.Withdrawn = true
		o.WithdrawalHeight = o.maxHeightSoFar()
		return nil
	}

	// Step 6: extend arrays with holes up to MaxHeight+1.
	o.extend(b.MaxHeight + 1)

	// Step 7: overwrite — later bets always supersede earlier entries at
	// the same height.
	for i := 0; i < len(b.Probs); i++ {
		h := b.MaxHeight - uint64(i)
		o.Probs[h] = OptProb{Value: b.Probs[i], Ok: true}
	}
	for i := 0; i < len(b.BlockHashes); i++ {
		h := b.MaxHeight - uint64(i)
		o.BlockHashes[h] = OptHash{Value: b.BlockHashes[i], Ok: true}
	}
	for i := 0; i < len(b.StateRoots); i++ {
		h := b.MaxHeight - uint64(i)
		o.StateRoots[h] = OptHash{Value: b.StateRoots[i], Ok: true}
	}
	for i := 0; i < len(b.StateRootProbs); i++ {
		h := b.MaxHeight - uint64(i)
		o.StateRootProbs[h] = OptProb{Value: b.StateRootProbs[i], Ok: true}
	}
	return nil
}

func (o *Opinion) maxHeightSoFar() uint64 {
	if len(o.BlockHashes) == 0 {
		return 0
	}
	return uint64(len(o.BlockHashes)) - 1
}
