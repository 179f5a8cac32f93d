package storage

import "sort"

// Overlay stages writes and deletes on top of a base database without
// touching it. Commit flushes the staged mutations; discarding the overlay
// leaves the base untouched. This is how a multi-step operation becomes an
// all-or-nothing unit: run every mutation against an overlay and commit only
// when the whole sequence validated.
type Overlay struct {
	base    Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay creates an empty overlay on top of base.
func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	o.writes[string(key)] = buf
	delete(o.deletes, string(key))
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if _, gone := o.deletes[string(key)]; gone {
		return nil, ErrKeyNotFound
	}
	if value, ok := o.writes[string(key)]; ok {
		buf := make([]byte, len(value))
		copy(buf, value)
		return buf, nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	if _, gone := o.deletes[string(key)]; gone {
		return false, nil
	}
	if _, ok := o.writes[string(key)]; ok {
		return true, nil
	}
	return o.base.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	err := o.base.Iterate(prefix, func(key, value []byte) bool {
		merged[string(key)] = value
		return true
	})
	if err != nil {
		return err
	}
	for k, v := range o.writes {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			merged[k] = v
		}
	}
	for k := range o.deletes {
		delete(merged, k)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			return nil
		}
	}
	return nil
}

// Close satisfies the Database interface. The overlay does not own the base
// connection, so closing it is a no-op.
func (o *Overlay) Close() {}

// Commit flushes all staged mutations to the base database. On error the
// base may hold a partial flush; callers using a transactional backend
// should treat a Commit failure as fatal.
func (o *Overlay) Commit() error {
	for k := range o.deletes {
		if err := o.base.Delete([]byte(k)); err != nil {
			return err
		}
	}
	for k, v := range o.writes {
		if err := o.base.Put([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}
