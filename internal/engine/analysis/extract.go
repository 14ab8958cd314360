package analysis

import (
	"net/netip"

	"IXScan/internal/model"
)

// Monitored reports whether an ASN belongs to a monitored route server.
type Monitored interface {
	Contains(asn model.ASN) bool
}

// Extract appends one observation for every non-initial position of path that
// holds a monitored ASN, pairing it with the ASN right before it. Repeated
// occurrences are all reported.
func Extract(dst []model.Observation, path []model.ASN, prefix netip.Prefix, rs Monitored) []model.Observation {
	for i := 1; i < len(path); i++ {
		if rs.Contains(path[i]) {
			dst = append(dst, model.Observation{
				Member:      path[i-1],
				RouteServer: path[i],
				Prefix:      prefix,
			})
		}
	}
	return dst
}
