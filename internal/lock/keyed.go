// Package lock provides per-key mutual exclusion for ledger critical sections.
package lock

import (
	"fmt"
	"sort"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed hands out one mutex per key. Entries exist only while held or awaited.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Acquire locks every key in sorted order and returns a release func that
// unlocks them in reverse. Duplicate keys are locked once.
func (k *Keyed) Acquire(keys ...string) (release func()) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	uniq := sorted[:0]
	for i, key := range sorted {
		if i == 0 || key != sorted[i-1] {
			uniq = append(uniq, key)
		}
	}

	held := make([]*entry, 0, len(uniq))
	for _, key := range uniq {
		e := k.ref(key)
		e.mu.Lock()
		held = append(held, e)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			k.unref(uniq[i], held[i])
		}
	}
}

func (k *Keyed) ref(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) unref(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Size reports how many keys are currently held or awaited.
func (k *Keyed) Size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Key helpers. Account keys are zero padded so lexical order matches id order.
func AccountKey(id int64) string    { return fmt.Sprintf("account:%020d", id) }
func OwnerKey(id int64) string      { return fmt.Sprintf("owner:%020d", id) }
func LoanKey(id int64) string       { return fmt.Sprintf("loan:%020d", id) }
func InvestmentKey(id int64) string { return fmt.Sprintf("investment:%020d", id) }
func AlertKey(id int64) string      { return fmt.Sprintf("alert:%020d", id) }
