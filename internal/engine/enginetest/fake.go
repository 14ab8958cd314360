// Package enginetest provides in-memory record sources for pipeline tests.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"sync"

	"IXScan/internal/model"
)

var ErrInjected = errors.New("injected failure")

// Source is the scripted content of one data source.
type Source struct {
	Records []*model.Record
	// OpenErr fails Open.
	OpenErr error
	// FailAfter, when positive, fails Next after that many records.
	FailAfter int
	// Panic makes Next panic after all records were returned.
	Panic bool
}

// Opener serves scripted sources keyed by URL. It is safe for concurrent use.
type Opener struct {
	Sources map[string]Source

	mu     sync.Mutex
	opened []string
	closed int
}

// Open implements model.StreamOpener.
func (o *Opener) Open(ctx context.Context, src model.DataSource) (model.RecordStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := o.Sources[src.URL]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", src.URL)
	}
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	o.mu.Lock()
	o.opened = append(o.opened, src.URL)
	o.mu.Unlock()
	return &stream{src: s, opener: o}, nil
}

// Opened returns the URLs opened so far.
func (o *Opener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

// Closed returns how many streams were closed.
func (o *Opener) Closed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type stream struct {
	src    Source
	pos    int
	opener *Opener
}

func (s *stream) Next() (*model.Record, error) {
	if s.src.FailAfter > 0 && s.pos >= s.src.FailAfter {
		return nil, ErrInjected
	}
	if s.pos >= len(s.src.Records) {
		if s.src.Panic {
			panic("corrupt record")
		}
		return nil, io.EOF
	}
	r := s.src.Records[s.pos]
	s.pos++
	return r, nil
}

func (s *stream) Close() error {
	s.opener.mu.Lock()
	s.opener.closed++
	s.opener.mu.Unlock()
	return nil
}

// Record builds a record with a single AS_SEQUENCE path.
func Record(prefix string, path ...model.ASN) *model.Record {
	return &model.Record{
		Path:   model.Sequence(path...),
		Prefix: netip.MustParsePrefix(prefix),
	}
}
