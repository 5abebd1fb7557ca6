package guardian

import (
	"testing"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/crypto"
	"github.com/tolelom/guardian/internal/testutil"
	"github.com/tolelom/guardian/storage"
)

const zeroHashForTest = config.ZeroHash

func newTestKeyPair() (crypto.PrivateKey, crypto.PublicKey, error) {
	return crypto.GenerateKeyPair()
}

func newMemDBForTest(t *testing.T) storage.DB {
	t.Helper()
	return testutil.NewMemDB()
}
