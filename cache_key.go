package lazyorm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	cacheKeyMultiplier = 37
	cacheKeySeed       = 17
)

// CacheKey is an ordered fingerprint of a query: statement id, row bounds,
// bound SQL, every bound argument in order and the environment id.
// Two keys are equal iff every component is equal and in the same order.
type CacheKey struct {
	hashcode uint64
	checksum uint64
	count    int
	parts    []string
}

// NewCacheKey returns a key holding the given components in order.
func NewCacheKey(components ...any) CacheKey {
	k := CacheKey{hashcode: cacheKeySeed}
	for _, c := range components {
		k.Update(c)
	}
	return k
}

// Update appends one component. It is meant for building a key;
// once a key is handed out it is only read.
func (k *CacheKey) Update(component any) {
	if k.count == 0 && k.hashcode == 0 {
		k.hashcode = cacheKeySeed
	}
	part := canonical(component)
	base := xxhash.Sum64String(part)

	k.count++
	k.checksum += base
	k.hashcode = cacheKeyMultiplier*k.hashcode + base*uint64(k.count)
	// Copies of k may share parts; never append into their backing array.
	k.parts = append(k.parts[:len(k.parts):len(k.parts)], part)
}

// UpdateAll appends every component in order.
func (k *CacheKey) UpdateAll(components ...any) {
	for _, c := range components {
		k.Update(c)
	}
}

// Count is the number of components.
func (k CacheKey) Count() int { return k.count }

// Hash is the order-sensitive hash of all components.
func (k CacheKey) Hash() uint64 { return k.hashcode }

// IsZero reports whether the key has no components.
func (k CacheKey) IsZero() bool { return k.count == 0 }

// Equal reports whether k and o hold the same components in the same order.
func (k CacheKey) Equal(o CacheKey) bool {
	if k.hashcode != o.hashcode || k.checksum != o.checksum || k.count != o.count {
		return false
	}
	for i := range k.parts {
		if k.parts[i] != o.parts[i] {
			return false
		}
	}
	return true
}

// Clone returns a key that can be updated without affecting k.
func (k CacheKey) Clone() CacheKey {
	c := k
	c.parts = append([]string(nil), k.parts...)
	return c
}

// String is the canonical form of the key; the local cache is keyed by it.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(k.hashcode, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(k.checksum, 10))
	for _, p := range k.parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// canonical renders a component with its dynamic type so that 1 and "1" differ.
func canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return "string=" + strconv.Quote(x)
	case []byte:
		return "[]byte=" + strconv.Quote(string(x))
	}
	return fmt.Sprintf("%T=%#v", v, v)
}
