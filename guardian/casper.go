package guardian

import "fmt"

// CasperClient is the opaque external collaborator: the on-chain
// deposit/slashing contract. The engine only consumes its read methods and
// submits encoded write calls as transactions; it never inspects contract
// internals.
type CasperClient interface {
	// Reads.
	GetGuardianSignups() (uint32, error)
	GetNextGuardianIndex() (uint32, error)
	GetGuardianCounter(i uint32) (uint64, error)
	GetGuardianInductionHeight(i uint32) (uint64, error)
	GetGuardianAddress(i uint32) (string, error)
	GetGuardianValidationCode(i uint32) (string, error)
	GetGuardianDeposit(i uint32) (uint64, error)
	GetGuardianSeq(i uint32) (uint64, error)

	// Writes, returned as an encoded-but-unsigned Transaction ready for
	// the caller to sign and submit to the tx pool.
	Join(validationCode string, from string, nonce uint64) (*Transaction, error)
	SubmitBet(b *Bet, from string, nonce uint64) (*Transaction, error)
	SlashBlocks(header1, header2 []byte, from string, nonce uint64) (*Transaction, error)
	SlashBets(bet1, bet2 []byte, from string, nonce uint64) (*Transaction, error)
	Withdraw(formerIndex uint32, from string, nonce uint64) (*Transaction, error)
}

// guardianRecord is one row of StateCasperClient's simplified on-chain
// guardian table.
type guardianRecord struct {
	counter         uint64
	inductionHeight uint64
	address         string
	validationCode  string
	deposit         uint64
	seq             uint64
}

// StateCasperClient is a small, runnable Casper stand-in: guardian
// state lives in an in-memory table that Induct fills and the Get* reads
// expose (Join/Withdraw/SubmitBet only build transactions and leave the
// table unchanged), supplying enough of
// the contract's observable behavior to exercise and test the rest of the
// engine. A real Casper ABI binding is out of scope here.
type StateCasperClient struct {
	guardians []guardianRecord
	signups   uint32
}

// NewStateCasperClient creates an empty Casper stand-in.
func NewStateCasperClient() *StateCasperClient {
	return &StateCasperClient{}
}

// Induct registers a new guardian directly (test/bootstrap helper — an
// honest network learns about inductions by replaying Join transactions
// that already landed on-chain; this sidesteps that for setup code).
func (c *StateCasperClient) Induct(address, validationCode string, inductionHeight, deposit uint64) uint32 {
	idx := uint32(len(c.guardians))
	c.guardians = append(c.guardians, guardianRecord{
		counter:         uint64(idx) + 1,
		inductionHeight: inductionHeight,
		address:         address,
		validationCode:  validationCode,
		deposit:         deposit,
	})
	c.signups++
	return idx
}

func (c *StateCasperClient) GetGuardianSignups() (uint32, error) { return c.signups, nil }

func (c *StateCasperClient) GetNextGuardianIndex() (uint32, error) {
	return uint32(len(c.guardians)), nil
}

func (c *StateCasperClient) get(i uint32) (*guardianRecord, error) {
	if int(i) >= len(c.guardians) {
		return nil, fmt.Errorf("casper: no guardian at index %d", i)
	}
	return &c.guardians[i], nil
}

func (c *StateCasperClient) GetGuardianCounter(i uint32) (uint64, error) {
	g, err := c.get(i)
	if err != nil {
		return 0, err
	}
	return g.counter, nil
}

func (c *StateCasperClient) GetGuardianInductionHeight(i uint32) (uint64, error) {
	g, err := c.get(i)
	if err != nil {
		return 0, err
	}
	return g.inductionHeight, nil
}

func (c *StateCasperClient) GetGuardianAddress(i uint32) (string, error) {
	g, err := c.get(i)
	if err != nil {
		return "", err
	}
	return g.address, nil
}

func (c *StateCasperClient) GetGuardianValidationCode(i uint32) (string, error) {
	g, err := c.get(i)
	if err != nil {
		return "", err
	}
	return g.validationCode, nil
}

func (c *StateCasperClient) GetGuardianDeposit(i uint32) (uint64, error) {
	g, err := c.get(i)
	if err != nil {
		return 0, err
	}
	return g.deposit, nil
}

func (c *StateCasperClient) GetGuardianSeq(i uint32) (uint64, error) {
	g, err := c.get(i)
	if err != nil {
		return 0, err
	}
	return g.seq, nil
}

func (c *StateCasperClient) Join(validationCode string, from string, nonce uint64) (*Transaction, error) {
	return NewTransaction(TxJoin, from, nonce, 200000, 0, []byte(validationCode)), nil
}

func (c *StateCasperClient) SubmitBet(b *Bet, from string, nonce uint64) (*Transaction, error) {
	gas := uint64(200000 + 6600*len(b.Probs) + 10000*(len(b.BlockHashes)+len(b.StateRoots)))
	data := []byte(b.Hash())
	return NewTransaction(TxSubmitBet, from, nonce, gas, 0, data), nil
}

func (c *StateCasperClient) SlashBlocks(header1, header2 []byte, from string, nonce uint64) (*Transaction, error) {
	data := append(append([]byte{}, header1...), header2...)
	return NewTransaction(TxSlashBlocks, from, nonce, 300000, 0, data), nil
}

func (c *StateCasperClient) SlashBets(bet1, bet2 []byte, from string, nonce uint64) (*Transaction, error) {
	data := append(append([]byte{}, bet1...), bet2...)
	return NewTransaction(TxSlashBets, from, nonce, 300000, 0, data), nil
}

func (c *StateCasperClient) Withdraw(formerIndex uint32, from string, nonce uint64) (*Transaction, error) {
	data := []byte(fmt.Sprintf("%d", formerIndex))
	return NewTransaction(TxWithdraw, from, nonce, 100000, 0, data), nil
}
