package guardian

import (
	"encoding/json"
	"errors"

	"github.com/tolelom/guardian/crypto"
)

var errMismatchedHash = errors.New("guardian: block hash does not match its contents")

// Block is the chain object the betting engine votes on. It is
// intentionally thin: the state transition function that actually applies
// a block's transactions is an external EVM collaborator, reached here
// through the StateTransition interface.
type Block struct {
	Number    uint64         `json:"number"`
	PrevHash  string         `json:"prev_hash"`
	Proposer  string         `json:"proposer"`
	Txs       []*Transaction `json:"txs"`
	Timestamp int64          `json:"timestamp"`
	Hash      string         `json:"hash"`
	Sig       string         `json:"sig"`
}

// NewBlock builds an unsigned, unhashed block at number with the given
// previous hash, proposer address, and transactions.
func NewBlock(number uint64, prevHash, proposer string, txs []*Transaction) *Block {
	return &Block{Number: number, PrevHash: prevHash, Proposer: proposer, Txs: txs}
}

func (b *Block) signingBody() []byte {
	cp := *b
	cp.Hash = ""
	cp.Sig = ""
	data, _ := json.Marshal(cp)
	return data
}

// ComputeHash returns the block's content hash (excludes Hash and Sig).
func (b *Block) ComputeHash() string {
	return crypto.Hash(b.signingBody())
}

// Sign computes the hash, stores it, and signs the block.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.Hash = b.ComputeHash()
	b.Sig = crypto.Sign(priv, b.signingBody())
}

// Verify checks the stored hash and signature against pub.
func (b *Block) Verify(pub crypto.PublicKey) error {
	if b.Hash != b.ComputeHash() {
		return errMismatchedHash
	}
	return crypto.Verify(pub, b.signingBody(), b.Sig)
}
