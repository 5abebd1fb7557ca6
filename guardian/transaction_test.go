package guardian

import "testing"

func TestTransactionSignVerify(t *testing.T) {
	priv, pub, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx := NewTransaction(TxTransfer, "from-addr", 0, 21000, 1, []byte("payload"))
	tx.Sign(priv)
	if tx.ID == "" {
		t.Fatal("Sign did not set ID")
	}
	if err := tx.Verify(pub); err != nil {
		t.Errorf("Verify of a validly signed transaction failed: %v", err)
	}
}

func TestTransactionVerifyRejectsTamperedID(t *testing.T) {
	priv, pub, err := newTestKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx := NewTransaction(TxTransfer, "from-addr", 0, 21000, 1, []byte("payload"))
	tx.Sign(priv)
	tx.ID = "not-the-real-hash"
	if err := tx.Verify(pub); err == nil {
		t.Error("Verify should reject a transaction whose ID no longer matches its hash")
	}
}

func TestTransactionHashStableAcrossNonceOnly(t *testing.T) {
	tx1 := NewTransaction(TxTransfer, "from-addr", 0, 21000, 1, []byte("payload"))
	tx2 := NewTransaction(TxTransfer, "from-addr", 1, 21000, 1, []byte("payload"))
	if tx1.Hash() == tx2.Hash() {
		t.Error("transactions with different nonces should hash differently")
	}
}
