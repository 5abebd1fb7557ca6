package storage

import "errors"

// KeyedMap is a durable string-keyed map over a DB with a companion
// insertion-order sequence, mirroring the original's LDBDict: deletion
// rewrites the key index so it stays dense (no holes in the key list
// itself, unlike element slots in OrderedSequence).
type KeyedMap[T any] struct {
	db    DB
	ns    string
	codec Codec[T]
	keys  *OrderedSequence[string]
}

// stringCodec is the codec used for the companion key sequence.
type stringCodec struct{}

func (stringCodec) Encode(s string) []byte { return []byte(s) }
func (stringCodec) Decode(b []byte) (string, error) { return string(b), nil }

// NewKeyedMap constructs a map over db under namespace ns.
func NewKeyedMap[T any](db DB, ns string, codec Codec[T]) *KeyedMap[T] {
	return &KeyedMap[T]{
		db:    db,
		ns:    ns,
		codec: codec,
		keys:  NewOrderedSequence[string](db, ns+":__keys__", stringCodec{}),
	}
}

func (m *KeyedMap[T]) valueKey(key string) []byte { return []byte(m.ns + ":val:" + key) }

// Contains reports whether key has an entry.
func (m *KeyedMap[T]) Contains(key string) (bool, error) {
	_, err := m.db.Get(m.valueKey(key))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the value for key, ok=false if absent.
func (m *KeyedMap[T]) Get(key string) (val T, ok bool, err error) {
	raw, err := m.db.Get(m.valueKey(key))
	if errors.Is(err, ErrNotFound) {
		return val, false, nil
	}
	if err != nil {
		return val, false, err
	}
	v, err := m.codec.Decode(raw)
	if err != nil {
		return val, false, err
	}
	return v, true, nil
}

// Set inserts or overwrites key. The key index only grows on first insert.
func (m *KeyedMap[T]) Set(key string, val T) error {
	has, err := m.Contains(key)
	if err != nil {
		return err
	}
	if err := m.db.Set(m.valueKey(key), m.codec.Encode(val)); err != nil {
		return err
	}
	if !has {
		return m.keys.Append(key, true)
	}
	return nil
}

// Delete removes key, rewriting the key index so it stays dense.
func (m *KeyedMap[T]) Delete(key string) error {
	has, err := m.Contains(key)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	if err := m.db.Delete(m.valueKey(key)); err != nil {
		return err
	}
	n, err := m.keys.Len()
	if err != nil {
		return err
	}
	kept := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		k, ok, err := m.keys.At(i)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if k == key {
			continue
		}
		kept = append(kept, k)
	}
	newKeys := NewOrderedSequence[string](m.db, m.ns+":__keys__", stringCodec{})
	if err := m.db.Delete([]byte(m.ns + ":__keys__:__len__")); err != nil {
		return err
	}
	for _, k := range kept {
		if err := newKeys.Append(k, true); err != nil {
			return err
		}
	}
	m.keys = newKeys
	return nil
}

// Keys returns all keys in insertion order.
func (m *KeyedMap[T]) Keys() ([]string, error) {
	n, err := m.keys.Len()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		k, ok, err := m.keys.At(i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// Values returns all values in key insertion order.
func (m *KeyedMap[T]) Values() ([]T, error) {
	keys, err := m.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		v, ok, err := m.Get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Items returns keys and values together, in insertion order.
func (m *KeyedMap[T]) Items() ([]string, []T, error) {
	keys, err := m.Keys()
	if err != nil {
		return nil, nil, err
	}
	vals := make([]T, 0, len(keys))
	for _, k := range keys {
		v, _, err := m.Get(k)
		if err != nil {
			return nil, nil, err
		}
		vals = append(vals, v)
	}
	return keys, vals, nil
}
