package guardian

import (
	"encoding/json"
	"math"

	"github.com/tolelom/guardian/crypto"
)

// WithdrawalHeight is the sentinel MaxHeight value that signals a
// guardian's voluntary withdrawal (the original's 2**256-1 collapses to
// math.MaxUint64 — block heights fit comfortably in 64 bits here).
const WithdrawalHeight = math.MaxUint64

// Bet is a guardian's signed, sequenced probability vector. The
// four payload arrays are indexed downwards from MaxHeight: index 0 covers
// MaxHeight, index 1 covers MaxHeight-1, and so on.
type Bet struct {
	Index          uint32  `json:"index"`
	MaxHeight      uint64  `json:"max_height"`
	Probs          []Prob  `json:"probs"`
	BlockHashes    []string `json:"blockhashes"`
	StateRoots     []string `json:"stateroots"`
	StateRootProbs []Prob  `json:"stateroot_probs"`
	PrevHash       string  `json:"prevhash"`
	Seq            uint64  `json:"seq"`
	Sig            string  `json:"sig"`
}

// IsWithdrawal reports whether this bet signals voluntary withdrawal.
func (b *Bet) IsWithdrawal() bool {
	return b.MaxHeight == WithdrawalHeight
}

// signingBody returns the canonical encoding of everything but the
// signature: hash and signature are both computed over this body, never
// over the struct that includes Sig.
func (b *Bet) signingBody() []byte {
	cp := *b
	cp.Sig = ""
	data, _ := json.Marshal(cp)
	return data
}

// Hash returns the canonical content hash of the bet (excludes Sig).
func (b *Bet) Hash() string {
	return crypto.Hash(b.signingBody())
}

// Sign signs the bet with priv and sets Sig.
func (b *Bet) Sign(priv crypto.PrivateKey) {
	b.Sig = crypto.Sign(priv, b.signingBody())
}

// Verify checks the bet's signature against pub.
func (b *Bet) Verify(pub crypto.PublicKey) error {
	return crypto.Verify(pub, b.signingBody(), b.Sig)
}
