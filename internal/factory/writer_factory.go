package factory

import (
	"fmt"

	"go.uber.org/zap"

	"IXScan/internal/config"
	"IXScan/internal/model"
)

// DefaultWriter is the writer type that always runs, first, even when not configured.
const DefaultWriter = "text"

// WriterFactory defines a function that creates a writer from its config entry.
type WriterFactory func(def config.WriterDef) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered reports whether a writer type is known.
func Registered(name string) bool {
	_, ok := registry[name]
	return ok
}

// Create builds the enabled writers of the config. The default writer comes first.
// On error, writers created so far are closed.
func Create(cfg *config.Config) ([]model.Writer, error) {
	defs := make([]config.WriterDef, 0, len(cfg.Writers)+1)
	hasDefault := false
	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		if def.Type == DefaultWriter {
			if hasDefault {
				continue
			}
			hasDefault = true
			defs = append([]config.WriterDef{def}, defs...)
			continue
		}
		defs = append(defs, def)
	}
	if !hasDefault {
		defs = append([]config.WriterDef{{Type: DefaultWriter, Enabled: true}}, defs...)
	}

	writers := make([]model.Writer, 0, len(defs))
	for _, def := range defs {
		factory, ok := registry[def.Type]
		if !ok {
			closeAll(writers)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}
		w, err := factory(def)
		if err != nil {
			closeAll(writers)
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		zap.S().Debugf("Created writer '%s'.", def.Type)
		writers = append(writers, w)
	}
	return writers, nil
}

func closeAll(writers []model.Writer) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			zap.S().Warnf("Error closing writer '%s': %v", w.Name(), err)
		}
	}
}
