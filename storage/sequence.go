package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an index falls outside [0, Len()) after
// negative-index normalization.
var ErrOutOfRange = errors.New("storage: index out of range")

// Codec encodes and decodes a single element of an OrderedSequence or
// KeyedMap. Decode never receives a hole marker or an OrderedSequence's
// value tag; At filters holes out and strips the tag first.
type Codec[T any] interface {
	Encode(T) []byte
	Decode([]byte) (T, error)
}

// nilSentinel is a one-byte marker written for a hole. Every real element
// is stored as valueTag followed by its codec's encoding, so a stored
// element is never the lone sentinel byte, whatever the codec produces.
// Holes are otherwise indistinguishable from a genuine zero-value/zero-hash
// entry.
const nilSentinel = 0xff

// valueTag prefixes every non-hole element an OrderedSequence stores.
const valueTag = 0x01

// OrderedSequence is a durable array over a DB that grows at its end, indexed from
// zero with support for negative (Python-style) indices. Length is tracked
// under "{ns}:__len__"; elements live under "{ns}:{i}".
type OrderedSequence[T any] struct {
	db    DB
	ns    string
	codec Codec[T]
}

// NewOrderedSequence constructs a sequence over db under namespace ns.
func NewOrderedSequence[T any](db DB, ns string, codec Codec[T]) *OrderedSequence[T] {
	return &OrderedSequence[T]{db: db, ns: ns, codec: codec}
}

func (s *OrderedSequence[T]) lenKey() []byte { return []byte(s.ns + ":__len__") }

func (s *OrderedSequence[T]) elemKey(i int64) []byte {
	return []byte(fmt.Sprintf("%s:%d", s.ns, i))
}

// Len returns the current length, 0 if the sequence has never been written.
func (s *OrderedSequence[T]) Len() (int64, error) {
	data, err := s.db.Get(s.lenKey())
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

func (s *OrderedSequence[T]) setLen(n int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return s.db.Set(s.lenKey(), buf[:])
}

// normalize resolves a possibly-negative index against length, returning
// ErrOutOfRange if it falls outside [0, n).
func normalize(i, n int64) (int64, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, ErrOutOfRange
	}
	return i, nil
}

// At returns the element at index i (negative indices count from the end),
// or the zero value and ok=false if the slot is a hole.
func (s *OrderedSequence[T]) At(i int64) (val T, ok bool, err error) {
	n, err := s.Len()
	if err != nil {
		return val, false, err
	}
	idx, err := normalize(i, n)
	if err != nil {
		return val, false, err
	}
	raw, err := s.db.Get(s.elemKey(idx))
	if errors.Is(err, ErrNotFound) {
		return val, false, nil
	}
	if err != nil {
		return val, false, err
	}
	if len(raw) == 1 && raw[0] == nilSentinel {
		return val, false, nil
	}
	v, err := s.codec.Decode(raw[1:])
	if err != nil {
		return val, false, err
	}
	return v, true, nil
}

// Set writes index i, growing the sequence with holes if i == Len().
// i must be in [0, Len()].
func (s *OrderedSequence[T]) Set(i int64, val T, ok bool) error {
	n, err := s.Len()
	if err != nil {
		return err
	}
	if i < 0 {
		i += n
	}
	if i < 0 || i > n {
		return ErrOutOfRange
	}
	if err := s.put(i, val, ok); err != nil {
		return err
	}
	if i == n {
		return s.setLen(n + 1)
	}
	return nil
}

func (s *OrderedSequence[T]) put(i int64, val T, ok bool) error {
	if !ok {
		return s.db.Set(s.elemKey(i), []byte{nilSentinel})
	}
	return s.db.Set(s.elemKey(i), append([]byte{valueTag}, s.codec.Encode(val)...))
}

// Append adds a value (or a hole, if ok is false) at the end.
func (s *OrderedSequence[T]) Append(val T, ok bool) error {
	n, err := s.Len()
	if err != nil {
		return err
	}
	if err := s.put(n, val, ok); err != nil {
		return err
	}
	return s.setLen(n + 1)
}

// Grow extends the sequence to length n with holes, a no-op if already ≥ n.
func (s *OrderedSequence[T]) Grow(n int64) error {
	cur, err := s.Len()
	if err != nil {
		return err
	}
	var zero T
	for i := cur; i < n; i++ {
		if err := s.put(i, zero, false); err != nil {
			return err
		}
	}
	if n > cur {
		return s.setLen(n)
	}
	return nil
}

// Slice returns elements [from, to) in order; holes decode to ok=false.
func (s *OrderedSequence[T]) Slice(from, to int64) ([]T, []bool, error) {
	n, err := s.Len()
	if err != nil {
		return nil, nil, err
	}
	if from < 0 || to > n || from > to {
		return nil, nil, ErrOutOfRange
	}
	vals := make([]T, 0, to-from)
	oks := make([]bool, 0, to-from)
	for i := from; i < to; i++ {
		v, ok, err := s.At(i)
		if err != nil {
			return nil, nil, err
		}
		vals = append(vals, v)
		oks = append(oks, ok)
	}
	return vals, oks, nil
}
