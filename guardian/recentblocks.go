package guardian

import (
	"strconv"

	"github.com/tolelom/guardian/storage"
)

// RecentBlocks tracks heights newly observed since the bet producer last
// emitted a bet — the set Mkbet checks to decide there is anything fresh to
// bet on at all, and clears once it has. Mirrors the original's
// recently_discovered_blocks.
type RecentBlocks struct {
	m *storage.KeyedMap[bool]
}

// NewRecentBlocks constructs a RecentBlocks set over db under namespace ns.
func NewRecentBlocks(db storage.DB, ns string) *RecentBlocks {
	return &RecentBlocks{m: storage.NewKeyedMap[bool](db, ns, boolCodec{})}
}

func recentKey(h uint64) string { return strconv.FormatUint(h, 10) }

// Add records height h as recently discovered.
func (r *RecentBlocks) Add(h uint64) error {
	return r.m.Set(recentKey(h), true)
}

// Len reports how many heights are currently recorded.
func (r *RecentBlocks) Len() (int, error) {
	keys, err := r.m.Keys()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Min returns the lowest recorded height; ok is false if the set is empty.
func (r *RecentBlocks) Min() (h uint64, ok bool, err error) {
	keys, err := r.m.Keys()
	if err != nil {
		return 0, false, err
	}
	for i, k := range keys {
		v, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			return 0, false, perr
		}
		if i == 0 || v < h {
			h = v
		}
	}
	return h, len(keys) > 0, nil
}

// Clear empties the set, called once a bet emission has covered everything
// in it.
func (r *RecentBlocks) Clear() error {
	keys, err := r.m.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := r.m.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
