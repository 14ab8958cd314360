package model

import (
	"net/netip"
	"time"
)

// ReportRow is the summary of a single monitored route server.
type ReportRow struct {
	Name         string `json:"name"`
	ASN          ASN    `json:"asn"`
	Members      int    `json:"members"`
	IPv4Prefixes int    `json:"ipv4_prefixes"`
	IPv6Prefixes int    `json:"ipv6_prefixes"`
}

// Stats holds the processing counters of a run.
type Stats struct {
	Records          uint64 `json:"records"`
	MissingPaths     uint64 `json:"missing_paths"`
	AmbiguousPaths   uint64 `json:"ambiguous_paths"`
	Observations     uint64 `json:"observations"`
	SourcesCompleted int    `json:"sources_completed"`
}

// RouteServerDetail holds the finalized, sorted member and prefix sets of one route server.
type RouteServerDetail struct {
	ASN      ASN
	Members  []ASN
	Prefixes []netip.Prefix
}

// Report is the final result of a scan, handed to every writer.
type Report struct {
	Snapshot    time.Time
	GeneratedAt time.Time
	Rows        []ReportRow
	Sources     int
	Failures    []SourceFailure
	Stats       Stats
	// Details is ordered like Rows.
	Details []RouteServerDetail
}
