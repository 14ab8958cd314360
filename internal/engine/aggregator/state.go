package aggregator

import (
	"cmp"
	"errors"
	"net/netip"
	"slices"

	"IXScan/internal/model"
)

var ErrFinalized = errors.New("aggregate state is finalized")

// State holds, per route server ASN, the set of member ASNs and the set of prefixes seen.
// It is owned by a single goroutine and is not safe for concurrent use.
type State struct {
	members   map[model.ASN]map[model.ASN]struct{}
	prefixes  map[model.ASN]map[netip.Prefix]struct{}
	finalized bool
}

// NewState returns an empty state in the collecting phase.
func NewState() *State {
	return &State{
		members:  make(map[model.ASN]map[model.ASN]struct{}),
		prefixes: make(map[model.ASN]map[netip.Prefix]struct{}),
	}
}

// Add merges one observation. Adding the same observation twice is a no-op.
func (s *State) Add(o model.Observation) error {
	if s.finalized {
		return ErrFinalized
	}
	m, ok := s.members[o.RouteServer]
	if !ok {
		m = make(map[model.ASN]struct{})
		s.members[o.RouteServer] = m
	}
	m[o.Member] = struct{}{}

	p, ok := s.prefixes[o.RouteServer]
	if !ok {
		p = make(map[netip.Prefix]struct{})
		s.prefixes[o.RouteServer] = p
	}
	p[o.Prefix] = struct{}{}
	return nil
}

// Finalize ends the collecting phase; further Adds fail.
func (s *State) Finalize() {
	s.finalized = true
}

func (s *State) Finalized() bool {
	return s.finalized
}

// MemberCount returns the number of distinct members seen for rs.
func (s *State) MemberCount(rs model.ASN) int {
	return len(s.members[rs])
}

// PrefixCounts returns the number of distinct IPv4 and IPv6 prefixes seen for rs.
func (s *State) PrefixCounts(rs model.ASN) (v4, v6 int) {
	for p := range s.prefixes[rs] {
		if p.Addr().Is4() {
			v4++
		} else {
			v6++
		}
	}
	return v4, v6
}

// Members returns the sorted member ASNs of rs.
func (s *State) Members(rs model.ASN) []model.ASN {
	out := make([]model.ASN, 0, len(s.members[rs]))
	for m := range s.members[rs] {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Prefixes returns the prefixes of rs, IPv4 before IPv6, in address order.
func (s *State) Prefixes(rs model.ASN) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(s.prefixes[rs]))
	for p := range s.prefixes[rs] {
		out = append(out, p)
	}
	slices.SortFunc(out, comparePrefix)
	return out
}

func comparePrefix(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return cmp.Compare(a.Bits(), b.Bits())
}
