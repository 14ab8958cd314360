// Package report turns the finalized aggregate into per route server rows and
// delivers them to the configured writers.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"IXScan/internal/engine/manager"
	"IXScan/internal/model"
	"IXScan/internal/routeserver"
)

// dirTimestampFormat names per-snapshot output directories.
const dirTimestampFormat = "2006-01-02_15-04-05"

// Build produces one row per monitored route server, observed or not, ordered by
// descending member count. Ties keep the declaration order of the table.
func Build(snapshot time.Time, table *routeserver.Table, res *manager.Result) *model.Report {
	all := table.All()
	rows := make([]model.ReportRow, len(all))
	details := make([]model.RouteServerDetail, len(all))
	for i, rs := range all {
		v4, v6 := res.State.PrefixCounts(rs.ASN)
		rows[i] = model.ReportRow{
			Name:         rs.Name,
			ASN:          rs.ASN,
			Members:      res.State.MemberCount(rs.ASN),
			IPv4Prefixes: v4,
			IPv6Prefixes: v6,
		}
		details[i] = model.RouteServerDetail{
			ASN:      rs.ASN,
			Members:  res.State.Members(rs.ASN),
			Prefixes: res.State.Prefixes(rs.ASN),
		}
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rows[order[a]].Members > rows[order[b]].Members
	})

	rep := &model.Report{
		Snapshot:    snapshot.UTC(),
		GeneratedAt: time.Now().UTC(),
		Rows:        make([]model.ReportRow, len(rows)),
		Details:     make([]model.RouteServerDetail, len(rows)),
		Sources:     res.Sources,
		Failures:    res.Failures,
		Stats:       res.Stats,
	}
	for i, j := range order {
		rep.Rows[i] = rows[j]
		rep.Details[i] = details[j]
	}
	return rep
}

// Deliver hands the report to every writer in order. A failing writer does not
// stop the others; all failures are returned joined.
func Deliver(ctx context.Context, writers []model.Writer, rep *model.Report) error {
	var errs []error
	for _, w := range writers {
		if err := w.Write(ctx, rep); err != nil {
			zap.S().Errorf("Writer '%s' failed: %v", w.Name(), err)
			errs = append(errs, fmt.Errorf("writer %s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all writers, logging failures.
func Close(writers []model.Writer) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			zap.S().Warnf("Error closing writer '%s': %v", w.Name(), err)
		}
	}
}

func snapshotDir(rep *model.Report) string {
	return rep.Snapshot.Format(dirTimestampFormat)
}
