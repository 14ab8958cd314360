package report

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"IXScan/internal/config"
	"IXScan/internal/factory"
	"IXScan/internal/model"
)

func init() {
	factory.RegisterWriter("nats", func(def config.WriterDef) (model.Writer, error) {
		return NewNATSWriter(def.NATS)
	})
}

// NATSWriter publishes the report, protobuf encoded as a google.protobuf.Struct, to a NATS subject.
type NATSWriter struct {
	nc      *nats.Conn
	subject string
}

// NewNATSWriter connects to the NATS server.
func NewNATSWriter(cfg config.NATSConfig) (*NATSWriter, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats writer needs a subject")
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("ix-scan"))
	if err != nil {
		return nil, err
	}
	zap.S().Infof("Connected to NATS server at %s", url)
	return &NATSWriter{nc: nc, subject: cfg.Subject}, nil
}

func (w *NATSWriter) Name() string {
	return "nats"
}

// Write serializes the report and publishes it, waiting for the server to acknowledge the flush.
func (w *NATSWriter) Write(ctx context.Context, rep *model.Report) error {
	data, err := encodeReport(rep)
	if err != nil {
		return err
	}
	if err := w.nc.Publish(w.subject, data); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	if err := w.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (w *NATSWriter) Close() error {
	if w.nc == nil {
		return nil
	}
	return w.nc.Drain()
}

func encodeReport(rep *model.Report) ([]byte, error) {
	st, err := reportStruct(rep)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

func reportStruct(rep *model.Report) (*structpb.Struct, error) {
	rows := make([]any, len(rep.Rows))
	for i, r := range rep.Rows {
		rows[i] = map[string]any{
			"name":          r.Name,
			"asn":           uint32(r.ASN),
			"members":       r.Members,
			"ipv4_prefixes": r.IPv4Prefixes,
			"ipv6_prefixes": r.IPv6Prefixes,
		}
	}
	failures := make([]any, len(rep.Failures))
	for i, f := range rep.Failures {
		failures[i] = map[string]any{
			"collector": f.Source.Collector,
			"url":       f.Source.URL,
			"error":     f.Err,
		}
	}
	st, err := structpb.NewStruct(map[string]any{
		"snapshot":      rep.Snapshot.Format(time.RFC3339),
		"generated_at":  rep.GeneratedAt.Format(time.RFC3339),
		"sources":       rep.Sources,
		"failures":      failures,
		"records":       rep.Stats.Records,
		"observations":  rep.Stats.Observations,
		"route_servers": rows,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build report struct: %w", err)
	}
	return st, nil
}
