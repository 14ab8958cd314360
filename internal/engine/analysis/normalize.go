package analysis

import "IXScan/internal/model"

// SkipReason explains why a record produced no normalized path.
type SkipReason uint8

const (
	NotSkipped SkipReason = iota
	// SkipMissingPath: the record carried no AS_PATH.
	SkipMissingPath
	// SkipAmbiguousPath: the path holds an AS_SET or confederation segment.
	SkipAmbiguousPath
)

func (r SkipReason) String() string {
	switch r {
	case NotSkipped:
		return "none"
	case SkipMissingPath:
		return "missing_path"
	case SkipAmbiguousPath:
		return "ambiguous_path"
	default:
		return "unknown"
	}
}

// Normalize flattens a raw AS path into a dense sequence of ASNs, collapsing
// adjacent repeats (path prepending) across segment boundaries. Paths that are
// missing or contain any non-sequence segment are rejected.
//
// The result is appended to dst[:0] so callers can reuse a buffer.
func Normalize(dst []model.ASN, raw *model.ASPath) ([]model.ASN, SkipReason) {
	dst = dst[:0]
	if raw == nil {
		return dst, SkipMissingPath
	}
	for _, seg := range raw.Segments {
		if seg.Type != model.SegmentSequence {
			return dst[:0], SkipAmbiguousPath
		}
		for _, asn := range seg.ASNs {
			if n := len(dst); n > 0 && dst[n-1] == asn {
				continue
			}
			dst = append(dst, asn)
		}
	}
	return dst, NotSkipped
}
