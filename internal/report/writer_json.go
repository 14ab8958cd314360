package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"IXScan/internal/config"
	"IXScan/internal/factory"
	"IXScan/internal/model"
)

func init() {
	factory.RegisterWriter("json", func(def config.WriterDef) (model.Writer, error) {
		if def.RootPath == "" {
			return nil, fmt.Errorf("json writer needs a root_path")
		}
		return NewJSONWriter(def.RootPath), nil
	})
}

type jsonFailure struct {
	Collector string `json:"collector"`
	URL       string `json:"url"`
	Error     string `json:"error"`
}

type jsonReport struct {
	Snapshot    time.Time         `json:"snapshot"`
	GeneratedAt time.Time         `json:"generated_at"`
	Sources     int               `json:"sources"`
	Failures    []jsonFailure     `json:"failures"`
	Stats       model.Stats       `json:"stats"`
	Rows        []model.ReportRow `json:"route_servers"`
}

// JSONWriter writes the report to <root>/<snapshot>/report.json.
type JSONWriter struct {
	rootPath string
}

// NewJSONWriter creates a JSON writer below rootPath.
func NewJSONWriter(rootPath string) *JSONWriter {
	return &JSONWriter{rootPath: rootPath}
}

func (w *JSONWriter) Name() string {
	return "json"
}

func (w *JSONWriter) Write(_ context.Context, rep *model.Report) error {
	dir := filepath.Join(w.rootPath, snapshotDir(rep))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	doc := jsonReport{
		Snapshot:    rep.Snapshot,
		GeneratedAt: rep.GeneratedAt,
		Sources:     rep.Sources,
		Failures:    make([]jsonFailure, 0, len(rep.Failures)),
		Stats:       rep.Stats,
		Rows:        rep.Rows,
	}
	for _, f := range rep.Failures {
		doc.Failures = append(doc.Failures, jsonFailure{Collector: f.Source.Collector, URL: f.Source.URL, Error: f.Err})
	}

	file, err := os.Create(filepath.Join(dir, "report.json"))
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report to json: %w", err)
	}
	return nil
}

func (w *JSONWriter) Close() error {
	return nil
}
