// Package routeserver holds the immutable table of monitored route server ASNs.
package routeserver

import (
	"errors"
	"fmt"

	"IXScan/internal/config"
	"IXScan/internal/model"
)

var (
	ErrDuplicateASN = errors.New("duplicate route server ASN")
	ErrInvalidEntry = errors.New("invalid route server entry")
)

// Defaults is the built-in list of monitored exchange route servers.
var Defaults = []model.RouteServer{
	{ASN: 6695, Name: "DE-CIX Frankfurt"},
	{ASN: 6777, Name: "AMS-IX"},
	{ASN: 51706, Name: "France-IX Paris"},
	{ASN: 34307, Name: "NL-ix"},
	{ASN: 37195, Name: "NapAfrica"},
	{ASN: 8714, Name: "LINX"},
	{ASN: 33108, Name: "SIX"},
	{ASN: 50952, Name: "DATAIX"},
	{ASN: 8631, Name: "MSK-IX Moscow"},
	{ASN: 61968, Name: "MIX-IT"},
	{ASN: 4635, Name: "HKIX"},
	{ASN: 32184, Name: "Any2"},
	{ASN: 13538, Name: "NYIIX"},
	{ASN: 11670, Name: "TorIX"},
	{ASN: 49869, Name: "PiterIX"},
	{ASN: 52005, Name: "Netnod"},
	{ASN: 31210, Name: "DTEL-IX"},
	{ASN: 63034, Name: "DE-CIX New York"},
	{ASN: 42476, Name: "SwissIX"},
	{ASN: 47200, Name: "NIC.CZ"},
	{ASN: 26162, Name: "IX.br"},
}

// Table is a read-only set of monitored route servers. It is safe for concurrent use.
type Table struct {
	entries []model.RouteServer
	index   map[model.ASN]int
}

// NewTable builds a table, keeping declaration order. Duplicate ASNs are rejected.
func NewTable(entries []model.RouteServer) (*Table, error) {
	t := &Table{
		entries: make([]model.RouteServer, 0, len(entries)),
		index:   make(map[model.ASN]int, len(entries)),
	}
	for _, e := range entries {
		if e.ASN == 0 || e.Name == "" {
			return nil, fmt.Errorf("%w: asn=%d name=%q", ErrInvalidEntry, e.ASN, e.Name)
		}
		if i, ok := t.index[e.ASN]; ok {
			return nil, fmt.Errorf("%w: %d (%q and %q)", ErrDuplicateASN, e.ASN, t.entries[i].Name, e.Name)
		}
		t.index[e.ASN] = len(t.entries)
		t.entries = append(t.entries, e)
	}
	return t, nil
}

// FromConfig builds the table from the configured definitions, falling back to Defaults.
func FromConfig(defs []config.RouteServerDef) (*Table, error) {
	if len(defs) == 0 {
		return NewTable(Defaults)
	}
	entries := make([]model.RouteServer, len(defs))
	for i, d := range defs {
		entries[i] = model.RouteServer{ASN: model.ASN(d.ASN), Name: d.Name}
	}
	return NewTable(entries)
}

// Contains reports whether asn is a monitored route server.
func (t *Table) Contains(asn model.ASN) bool {
	_, ok := t.index[asn]
	return ok
}

// Label returns the exchange name of asn.
func (t *Table) Label(asn model.ASN) (string, bool) {
	i, ok := t.index[asn]
	if !ok {
		return "", false
	}
	return t.entries[i].Name, true
}

// All returns the entries in declaration order. The slice must not be modified.
func (t *Table) All() []model.RouteServer {
	return t.entries
}

// Len returns the number of monitored route servers.
func (t *Table) Len() int {
	return len(t.entries)
}
