package broker

import (
	"context"
	"time"

	"IXScan/internal/config"
	"IXScan/internal/model"
)

// Static serves the sources listed in the config instead of asking a broker.
type Static struct {
	sources []config.SourceDef
}

func NewStatic(defs []config.SourceDef) *Static {
	return &Static{sources: defs}
}

// Sources returns the configured sources stamped with ts, largest first.
func (s *Static) Sources(_ context.Context, ts time.Time) ([]model.DataSource, error) {
	out := make([]model.DataSource, len(s.sources))
	for i, def := range s.sources {
		out[i] = model.DataSource{
			Collector: def.Collector,
			Project:   def.Project,
			URL:       def.URL,
			RoughSize: def.RoughSize,
			Timestamp: ts.UTC(),
		}
	}
	SortBySize(out)
	return out, nil
}

// FromConfig picks the static index when sources are configured, the broker otherwise.
func FromConfig(cfg *config.Config) model.Index {
	if len(cfg.Sources) > 0 {
		return NewStatic(cfg.Sources)
	}
	return NewClient(cfg)
}
