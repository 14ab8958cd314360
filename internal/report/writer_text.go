package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"IXScan/internal/config"
	"IXScan/internal/factory"
	"IXScan/internal/model"
)

func init() {
	factory.RegisterWriter("text", func(def config.WriterDef) (model.Writer, error) {
		if def.Path == "" || def.Path == "-" {
			return NewTextWriter(os.Stdout), nil
		}
		f, err := os.Create(def.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create report file: %w", err)
		}
		w := NewTextWriter(f)
		w.closer = f
		return w, nil
	})
}

// TextWriter renders the report as a plain-text table.
type TextWriter struct {
	out    io.Writer
	closer io.Closer
}

// NewTextWriter creates a text writer rendering to out.
func NewTextWriter(out io.Writer) *TextWriter {
	return &TextWriter{out: out}
}

func (w *TextWriter) Name() string {
	return "text"
}

// Write renders the rows, then a summary line and the list of failed sources.
// The output only depends on the report content, not on when it was generated.
func (w *TextWriter) Write(_ context.Context, rep *model.Report) error {
	table := tablewriter.NewWriter(w.out)
	table.SetHeader([]string{"IX", "RS ASN", "re-appending members", "IPv4 prefixes involved", "IPv6 prefixes involved"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, row := range rep.Rows {
		table.Append([]string{
			row.Name,
			strconv.FormatUint(uint64(row.ASN), 10),
			strconv.Itoa(row.Members),
			strconv.Itoa(row.IPv4Prefixes),
			strconv.Itoa(row.IPv6Prefixes),
		})
	}
	table.Render()

	s := rep.Stats
	if _, err := fmt.Fprintf(w.out,
		"\nSnapshot %s: %d of %d sources completed, %d records read, %d skipped (%d missing path, %d ambiguous path), %d observations.\n",
		rep.Snapshot.Format("2006-01-02 15:04:05 MST"), s.SourcesCompleted, rep.Sources, s.Records,
		s.MissingPaths+s.AmbiguousPaths, s.MissingPaths, s.AmbiguousPaths, s.Observations); err != nil {
		return fmt.Errorf("failed to write report summary: %w", err)
	}

	if len(rep.Failures) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w.out, "WARNING: %d of %d sources failed, results are partial:\n", len(rep.Failures), rep.Sources); err != nil {
		return fmt.Errorf("failed to write failure list: %w", err)
	}
	for _, f := range rep.Failures {
		if _, err := fmt.Fprintf(w.out, "  - %s (%s): %s\n", f.Source.Collector, f.Source.URL, f.Err); err != nil {
			return fmt.Errorf("failed to write failure list: %w", err)
		}
	}
	return nil
}

func (w *TextWriter) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
