// Package network ranks the ledgers a balance can live on.
package network

import "sort"

// Unranked is returned for networks missing from the table. Balances on
// unranked networks are never displayed.
const Unranked = -99

// Known network names. Lookups are exact and case-sensitive.
const (
	Osmosis  = "Osmosis"
	Ethereum = "Ethereum"
	Arbitrum = "Arbitrum"
	Zilliqa  = "Zilliqa"
	Neo      = "Neo"
)

var defaultPriorities = map[string]int{
	Osmosis:  100,
	Ethereum: 50,
	Arbitrum: 30,
	Zilliqa:  20,
	Neo:      20,
}

// Table is an immutable mapping from network name to display priority.
type Table struct {
	priorities map[string]int
}

// NewTable copies priorities into a new Table. Entries equal to Unranked are
// ignored so that a configured value can never be confused with the sentinel.
func NewTable(priorities map[string]int) *Table {
	t := &Table{priorities: make(map[string]int, len(priorities))}
	for name, p := range priorities {
		if p == Unranked {
			continue
		}
		t.priorities[name] = p
	}
	return t
}

// Default returns the built-in priority table
func Default() *Table {
	return NewTable(defaultPriorities)
}

// Priority returns the configured priority for name, or Unranked.
func (t *Table) Priority(name string) int {
	if t == nil {
		return Unranked
	}
	if p, ok := t.priorities[name]; ok {
		return p
	}
	return Unranked
}

// Ranked reports whether name has a configured priority
func (t *Table) Ranked(name string) bool {
	return t.Priority(name) != Unranked
}

// Networks lists known networks, highest priority first, then by name.
func (t *Table) Networks() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.priorities))
	for name := range t.priorities {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := t.priorities[names[i]], t.priorities[names[j]]
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}
