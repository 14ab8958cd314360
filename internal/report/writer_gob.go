package report

import (
	"context"
	"encoding/gob"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"IXScan/internal/config"
	"IXScan/internal/factory"
	"IXScan/internal/model"
)

func init() {
	factory.RegisterWriter("gob", func(def config.WriterDef) (model.Writer, error) {
		if def.RootPath == "" {
			return nil, fmt.Errorf("gob writer needs a root_path")
		}
		return NewGobWriter(def.RootPath), nil
	})
}

// RouteServerDump is the gob-encoded detail of one route server.
type RouteServerDump struct {
	ASN      model.ASN
	Name     string
	Members  []model.ASN
	Prefixes []netip.Prefix
}

// SummaryData holds the metadata for a dump, internal to the writer.
type SummaryData struct {
	Snapshot     string `json:"snapshot"`
	RouteServers int    `json:"route_servers"`
	Observed     int    `json:"observed"`
	Sources      int    `json:"sources"`
	Failed       int    `json:"failed"`
	Timestamp    string `json:"timestamp"`
}

// GobWriter dumps the member and prefix sets of every observed route server to disk
// in gob format, one rs_<asn>.dat file each, plus a summary.json.
type GobWriter struct {
	rootPath string
}

// NewGobWriter creates a new detail writer below rootPath.
func NewGobWriter(rootPath string) *GobWriter {
	return &GobWriter{rootPath: rootPath}
}

func (w *GobWriter) Name() string {
	return "gob"
}

func (w *GobWriter) Write(_ context.Context, rep *model.Report) error {
	dir := filepath.Join(w.rootPath, snapshotDir(rep))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	observed := 0
	for i, d := range rep.Details {
		if len(d.Members) == 0 {
			continue
		}
		observed++
		dump := RouteServerDump{
			ASN:      d.ASN,
			Name:     rep.Rows[i].Name,
			Members:  d.Members,
			Prefixes: d.Prefixes,
		}
		if err := writeGob(filepath.Join(dir, fmt.Sprintf("rs_%d.dat", d.ASN)), dump); err != nil {
			return err
		}
	}

	summary := SummaryData{
		Snapshot:     rep.Snapshot.Format("2006-01-02T15:04:05Z07:00"),
		RouteServers: len(rep.Rows),
		Observed:     observed,
		Sources:      rep.Sources,
		Failed:       len(rep.Failures),
		Timestamp:    rep.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	summaryFile, err := os.Create(filepath.Join(dir, "summary.json"))
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	enc := json.NewEncoder(summaryFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return nil
}

func (w *GobWriter) Close() error {
	return nil
}

func writeGob(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dump file '%s': %w", path, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(v); err != nil {
		return fmt.Errorf("failed to encode dump to gob for file '%s': %w", path, err)
	}
	return nil
}
