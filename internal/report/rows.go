package report

import (
	"time"

	"IXScan/internal/model"
)

// summaryRow is the flattened form of a report row stored by the database writers.
type summaryRow struct {
	Snapshot      time.Time
	GeneratedAt   time.Time
	Name          string
	ASN           uint32
	Members       uint64
	IPv4Prefixes  uint64
	IPv6Prefixes  uint64
	Sources       uint32
	FailedSources uint32
}

func summaryRows(rep *model.Report) []summaryRow {
	out := make([]summaryRow, len(rep.Rows))
	for i, r := range rep.Rows {
		out[i] = summaryRow{
			Snapshot:      rep.Snapshot,
			GeneratedAt:   rep.GeneratedAt,
			Name:          r.Name,
			ASN:           uint32(r.ASN),
			Members:       uint64(r.Members),
			IPv4Prefixes:  uint64(r.IPv4Prefixes),
			IPv6Prefixes:  uint64(r.IPv6Prefixes),
			Sources:       uint32(rep.Sources),
			FailedSources: uint32(len(rep.Failures)),
		}
	}
	return out
}
