package guardian

import (
	"encoding/binary"
	"errors"

	"github.com/tolelom/guardian/config"
	"github.com/tolelom/guardian/storage"
)

// Cursors holds the handful of scalar values the chain store must persist
// across restarts alongside its arrays, resolved here as one typed struct
// over a single scalar KV namespace rather than loose globals.
type Cursors struct {
	db storage.DB
	ns string
}

// NewCursors constructs a Cursors view over db under namespace ns.
func NewCursors(db storage.DB, ns string) *Cursors {
	return &Cursors{db: db, ns: ns}
}

func (c *Cursors) key(name string) []byte { return []byte(c.ns + ":" + name) }

func (c *Cursors) getUint64(name string, def uint64) (uint64, error) {
	raw, err := c.db.Get(c.key(name))
	if errors.Is(err, storage.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (c *Cursors) setUint64(name string, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return c.db.Set(c.key(name), buf[:])
}

func (c *Cursors) getInt64(name string, def int64) (int64, error) {
	v, err := c.getUint64(name, uint64(def))
	return int64(v), err
}

func (c *Cursors) setInt64(name string, v int64) error {
	return c.setUint64(name, uint64(v))
}

func (c *Cursors) getString(name, def string) (string, error) {
	raw, err := c.db.Get(c.key(name))
	if errors.Is(err, storage.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (c *Cursors) setString(name, v string) error {
	return c.db.Set(c.key(name), []byte(v))
}

// CalcStateRootsFrom is the lowest height recalc_state_roots must recompute
// from on its next invocation.
func (c *Cursors) CalcStateRootsFrom() (uint64, error) { return c.getUint64("calc_state_roots_from", 0) }
func (c *Cursors) SetCalcStateRootsFrom(h uint64) error { return c.setUint64("calc_state_roots_from", h) }

// CalcFinalityFrom is the lowest height recalc_finality must recompute from
// on its next invocation, mirroring CalcStateRootsFrom.
func (c *Cursors) CalcFinalityFrom() (uint64, error)  { return c.getUint64("calc_finality_from", 0) }
func (c *Cursors) SetCalcFinalityFrom(h uint64) error { return c.setUint64("calc_finality_from", h) }

// MaxFinalizedHeight is the highest height with a known finalized hash, -1
// if nothing has finalized yet (height 0 is a real, distinct height and must
// not read as already finalized before anything has).
func (c *Cursors) MaxFinalizedHeight() (int64, error) { return c.getInt64("max_finalized_height", -1) }
func (c *Cursors) SetMaxFinalizedHeight(h int64) error { return c.setInt64("max_finalized_height", h) }

// NextBlockToProduce is this node's next scheduled proposer slot, absent
// (ok=false) until the proposer schedule reaches it.
func (c *Cursors) NextBlockToProduce() (h uint64, ok bool, err error) {
	raw, err := c.db.Get(c.key("next_block_to_produce"))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

func (c *Cursors) SetNextBlockToProduce(h uint64, ok bool) error {
	if !ok {
		return c.db.Delete(c.key("next_block_to_produce"))
	}
	return c.setUint64("next_block_to_produce", h)
}

// LastBlockProduced is the highest height this node has produced a block
// for, used to prevent accidental double-production.
func (c *Cursors) LastBlockProduced() (int64, error) { return c.getInt64("last_block_produced", -1) }
func (c *Cursors) SetLastBlockProduced(h int64) error { return c.setInt64("last_block_produced", h) }

// OwnPrevHash/OwnSeq track this node's own bet chain tip.
func (c *Cursors) OwnPrevHash() (string, error) { return c.getString("own_prev_hash", config.ZeroHash) }
func (c *Cursors) SetOwnPrevHash(h string) error { return c.setString("own_prev_hash", h) }
func (c *Cursors) OwnSeq() (uint64, error)       { return c.getUint64("own_seq", 0) }
func (c *Cursors) SetOwnSeq(seq uint64) error    { return c.setUint64("own_seq", seq) }

// LastBetMade is the unix-second timestamp of this node's last mkbet call,
// used to rate-limit betting to once per betInterval.
func (c *Cursors) LastBetMade() (int64, error) { return c.getInt64("last_bet_made", 0) }
func (c *Cursors) SetLastBetMade(t int64) error { return c.setInt64("last_bet_made", t) }

// LastTimeSentGetblocks rate-limits sync-gap GETBLOCKS requests.
func (c *Cursors) LastTimeSentGetblocks() (int64, error) { return c.getInt64("last_getblocks", 0) }
func (c *Cursors) SetLastTimeSentGetblocks(t int64) error { return c.setInt64("last_getblocks", t) }

// LastNonce is the next nonce to use for this node's own submitted
// transactions (joins, bet submissions, slashing reports, withdrawals).
func (c *Cursors) LastNonce() (uint64, error) { return c.getUint64("last_nonce", 0) }
func (c *Cursors) SetLastNonce(n uint64) error { return c.setUint64("last_nonce", n) }

// JoinedAtBlock records the height at which this node submitted its own
// Casper join transaction, -1 if it never has.
func (c *Cursors) JoinedAtBlock() (int64, error) { return c.getInt64("joined_at_block", -1) }
func (c *Cursors) SetJoinedAtBlock(h int64) error { return c.setInt64("joined_at_block", h) }

// FormerIndex is this node's guardian index before a withdrawal completed,
// -1 if it has never withdrawn (needed to submit Withdraw after the
// enter/exit delay settles).
func (c *Cursors) FormerIndex() (int32, error) {
	v, err := c.getInt64("former_index", -1)
	return int32(v), err
}
func (c *Cursors) SetFormerIndex(i int32) error { return c.setInt64("former_index", int64(i)) }
