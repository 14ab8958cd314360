package model

import (
	"fmt"
	"net/netip"
	"time"
)

// ASN is a 32-bit autonomous system number.
type ASN uint32

func (a ASN) String() string {
	return fmt.Sprintf("AS%d", uint32(a))
}

// SegmentType identifies the kind of an AS_PATH segment.
type SegmentType uint8

const (
	SegmentSet SegmentType = iota + 1
	SegmentSequence
	SegmentConfedSequence
	SegmentConfedSet
)

func (t SegmentType) String() string {
	switch t {
	case SegmentSet:
		return "AS_SET"
	case SegmentSequence:
		return "AS_SEQUENCE"
	case SegmentConfedSequence:
		return "AS_CONFED_SEQUENCE"
	case SegmentConfedSet:
		return "AS_CONFED_SET"
	default:
		return fmt.Sprintf("SEGMENT(%d)", uint8(t))
	}
}

// PathSegment is one segment of a raw AS path.
type PathSegment struct {
	Type SegmentType
	ASNs []ASN
}

// ASPath is a raw, segmented AS path as carried in the AS_PATH attribute.
type ASPath struct {
	Segments []PathSegment
}

// Sequence builds an ASPath made of a single AS_SEQUENCE segment.
func Sequence(asns ...ASN) *ASPath {
	return &ASPath{Segments: []PathSegment{{Type: SegmentSequence, ASNs: asns}}}
}

// Record is a single route entry (one prefix as seen from one peer) of a RIB dump.
type Record struct {
	Collector string
	PeerASN   ASN
	PeerIP    netip.Addr
	// Path is nil when the entry carried no AS_PATH attribute.
	Path   *ASPath
	Prefix netip.Prefix
}

// Observation is a (member, route server, prefix) triple extracted from one path.
type Observation struct {
	Member      ASN
	RouteServer ASN
	Prefix      netip.Prefix
}

// RouteServer is a monitored route server ASN together with the exchange it belongs to.
type RouteServer struct {
	ASN  ASN
	Name string
}

// DataSource describes one RIB dump published by a route collector.
type DataSource struct {
	Collector string
	Project   string
	URL       string
	RoughSize int64
	Timestamp time.Time
}

// SourceFailure records a data source that could not be read to completion.
type SourceFailure struct {
	Source DataSource
	Err    string
}
