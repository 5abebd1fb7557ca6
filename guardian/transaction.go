package guardian

import (
	"encoding/json"

	"github.com/tolelom/guardian/crypto"
)

// TxType distinguishes ordinary value transfers from the Casper calls the
// engine submits on a guardian's behalf (join, submitBet, slashBlocks,
// slashBets, withdraw).
type TxType string

const (
	TxTransfer     TxType = "transfer"
	TxJoin         TxType = "casper_join"
	TxSubmitBet    TxType = "casper_submit_bet"
	TxSlashBlocks  TxType = "casper_slash_blocks"
	TxSlashBets    TxType = "casper_slash_bets"
	TxWithdraw     TxType = "casper_withdraw"
)

// Transaction is the engine's generic transaction envelope. Data carries
// the ABI-shaped payload for Casper calls, or an application payload for
// transfers; the EVM that actually interprets Data is an external
// collaborator.
type Transaction struct {
	ID        string `json:"id"`
	Type      TxType `json:"type"`
	From      string `json:"from"`
	Nonce     uint64 `json:"nonce"`
	Gas       uint64 `json:"gas"`
	GasPrice  uint64 `json:"gas_price"`
	Data      []byte `json:"data"`
	Sig       string `json:"sig"`
}

func (tx *Transaction) signingBody() []byte {
	cp := *tx
	cp.ID = ""
	cp.Sig = ""
	data, _ := json.Marshal(cp)
	return data
}

// Hash returns the transaction's content hash.
func (tx *Transaction) Hash() string {
	return crypto.Hash(tx.signingBody())
}

// Sign computes the hash, stores it as ID, and signs the body.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	tx.ID = tx.Hash()
	tx.Sig = crypto.Sign(priv, tx.signingBody())
}

// Verify checks the transaction's signature and ID against pub.
func (tx *Transaction) Verify(pub crypto.PublicKey) error {
	if tx.ID != tx.Hash() {
		return errMismatchedHash
	}
	return crypto.Verify(pub, tx.signingBody(), tx.Sig)
}

// NewTransaction builds an unsigned transaction.
func NewTransaction(typ TxType, from string, nonce, gas, gasPrice uint64, data []byte) *Transaction {
	return &Transaction{Type: typ, From: from, Nonce: nonce, Gas: gas, GasPrice: gasPrice, Data: data}
}
