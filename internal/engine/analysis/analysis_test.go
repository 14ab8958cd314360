package analysis

import (
	"math/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IXScan/internal/model"
)

type asnSet map[model.ASN]struct{}

func (s asnSet) Contains(asn model.ASN) bool {
	_, ok := s[asn]
	return ok
}

func set(asns ...model.ASN) asnSet {
	s := make(asnSet, len(asns))
	for _, a := range asns {
		s[a] = struct{}{}
	}
	return s
}

func TestNormalize(t *testing.T) {
	testCases := map[string]struct {
		raw    *model.ASPath
		want   []model.ASN
		reason SkipReason
	}{
		"missing path": {
			raw:    nil,
			want:   []model.ASN{},
			reason: SkipMissingPath,
		},
		"empty path": {
			raw:  &model.ASPath{},
			want: []model.ASN{},
		},
		"plain sequence": {
			raw:  model.Sequence(10, 20, 30),
			want: []model.ASN{10, 20, 30},
		},
		"prepending": {
			raw:  model.Sequence(10, 10, 10, 20, 30, 30),
			want: []model.ASN{10, 20, 30},
		},
		"non-adjacent repeat kept": {
			raw:  model.Sequence(10, 20, 10),
			want: []model.ASN{10, 20, 10},
		},
		"prepending across segments": {
			raw: &model.ASPath{Segments: []model.PathSegment{
				{Type: model.SegmentSequence, ASNs: []model.ASN{10, 20}},
				{Type: model.SegmentSequence, ASNs: []model.ASN{20, 20, 30}},
			}},
			want: []model.ASN{10, 20, 30},
		},
		"as set": {
			raw: &model.ASPath{Segments: []model.PathSegment{
				{Type: model.SegmentSequence, ASNs: []model.ASN{10, 20}},
				{Type: model.SegmentSet, ASNs: []model.ASN{30, 40}},
			}},
			want:   []model.ASN{},
			reason: SkipAmbiguousPath,
		},
		"confederation": {
			raw: &model.ASPath{Segments: []model.PathSegment{
				{Type: model.SegmentConfedSequence, ASNs: []model.ASN{65000}},
				{Type: model.SegmentSequence, ASNs: []model.ASN{10}},
			}},
			want:   []model.ASN{},
			reason: SkipAmbiguousPath,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, reason := Normalize(nil, tc.raw)
			assert.Equal(t, tc.reason, reason)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalize_NoAdjacentDuplicatesAndIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	buf := make([]model.ASN, 0, 64)
	for i := 0; i < 500; i++ {
		raw := &model.ASPath{}
		for s := 0; s < 1+r.Intn(3); s++ {
			seg := model.PathSegment{Type: model.SegmentSequence}
			for n := 0; n < r.Intn(8); n++ {
				seg.ASNs = append(seg.ASNs, model.ASN(1+r.Intn(4)))
			}
			raw.Segments = append(raw.Segments, seg)
		}

		got, reason := Normalize(buf, raw)
		require.Equal(t, NotSkipped, reason)
		for j := 1; j < len(got); j++ {
			require.NotEqual(t, got[j-1], got[j], "adjacent duplicate in %v", got)
		}

		first := append([]model.ASN(nil), got...)
		again, reason := Normalize(nil, model.Sequence(first...))
		require.Equal(t, NotSkipped, reason)
		if len(first) == 0 {
			require.Empty(t, again)
		} else {
			require.Equal(t, first, again)
		}
	}
}

func TestExtract(t *testing.T) {
	pfx := netip.MustParsePrefix("10.0.0.0/24")

	t.Run("single match", func(t *testing.T) {
		got := Extract(nil, []model.ASN{100, 200, 300, 400}, pfx, set(300))
		assert.Equal(t, []model.Observation{{Member: 200, RouteServer: 300, Prefix: pfx}}, got)
	})

	t.Run("index zero is never a target", func(t *testing.T) {
		got := Extract(nil, []model.ASN{300, 200}, pfx, set(300))
		assert.Empty(t, got)
	})

	t.Run("short paths", func(t *testing.T) {
		assert.Empty(t, Extract(nil, nil, pfx, set(300)))
		assert.Empty(t, Extract(nil, []model.ASN{300}, pfx, set(300)))
	})

	t.Run("every occurrence reported", func(t *testing.T) {
		got := Extract(nil, []model.ASN{1, 99, 2, 99, 1, 99}, pfx, set(99))
		assert.Equal(t, []model.Observation{
			{Member: 1, RouteServer: 99, Prefix: pfx},
			{Member: 2, RouteServer: 99, Prefix: pfx},
			{Member: 1, RouteServer: 99, Prefix: pfx},
		}, got)
	})

	t.Run("appends to dst", func(t *testing.T) {
		dst := []model.Observation{{Member: 7, RouteServer: 8}}
		got := Extract(dst, []model.ASN{10, 20, 99}, pfx, set(99))
		require.Len(t, got, 2)
		assert.Equal(t, model.Observation{Member: 20, RouteServer: 99, Prefix: pfx}, got[1])
	})
}

func TestAmbiguousPathYieldsNoObservations(t *testing.T) {
	raw := &model.ASPath{Segments: []model.PathSegment{
		{Type: model.SegmentSequence, ASNs: []model.ASN{10, 20, 99}},
		{Type: model.SegmentSet, ASNs: []model.ASN{30}},
	}}
	path, reason := Normalize(nil, raw)
	require.Equal(t, SkipAmbiguousPath, reason)
	assert.Empty(t, Extract(nil, path, netip.MustParsePrefix("10.0.0.0/24"), set(99)))
}
