package mrt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"

	"github.com/osrg/gobgp/v3/pkg/packet/bgp"
	mrtpkt "github.com/osrg/gobgp/v3/pkg/packet/mrt"
	"go4.org/netipx"

	"IXScan/internal/model"
)

// maxMessageSize caps a single MRT message. Full-table RIB entries for popular
// prefixes can run to a few hundred kilobytes.
const maxMessageSize = 16 << 20

var (
	// ErrMalformed is returned for messages that decode but cannot be interpreted.
	ErrMalformed = errors.New("malformed MRT data")
	// ErrTruncated is returned when the stream ends inside a message.
	ErrTruncated = errors.New("truncated MRT stream")
)

// Reader decodes a TABLE_DUMP_V2 stream into one record per RIB entry.
// Message types other than the peer index table and unicast RIBs are skipped.
type Reader struct {
	scanner   *bufio.Scanner
	collector string
	closer    io.Closer

	peers   []*mrtpkt.Peer
	pending []*model.Record
	err     error
}

// NewReader reads MRT messages from r. closer, if not nil, is closed by Close.
func NewReader(r io.Reader, collector string, closer io.Closer) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)
	scanner.Split(splitMessages)
	return &Reader{scanner: scanner, collector: collector, closer: closer}
}

func splitMessages(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := mrtpkt.SplitMrt(data, atEOF)
	if err == nil && token == nil && atEOF && len(data) > 0 {
		return 0, nil, ErrTruncated
	}
	return advance, token, err
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (*model.Record, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		if !r.scanner.Scan() {
			r.err = r.scanner.Err()
			if r.err == nil {
				r.err = io.EOF
			}
			return nil, r.err
		}
		if err := r.decode(r.scanner.Bytes()); err != nil {
			r.err = err
			return nil, err
		}
	}
	rec := r.pending[0]
	r.pending[0] = nil
	r.pending = r.pending[1:]
	return rec, nil
}

func (r *Reader) decode(data []byte) error {
	hdr := &mrtpkt.MRTHeader{}
	if err := hdr.DecodeFromBytes(data[:mrtpkt.MRT_COMMON_HEADER_LEN]); err != nil {
		return fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}
	if hdr.Type != mrtpkt.TABLE_DUMPv2 {
		return nil
	}
	switch mrtpkt.MRTSubTypeTableDumpv2(hdr.SubType) {
	case mrtpkt.PEER_INDEX_TABLE,
		mrtpkt.RIB_IPV4_UNICAST, mrtpkt.RIB_IPV6_UNICAST,
		mrtpkt.RIB_IPV4_UNICAST_ADDPATH, mrtpkt.RIB_IPV6_UNICAST_ADDPATH:
	default:
		return nil
	}

	msg, err := mrtpkt.ParseMRTBody(hdr, data[mrtpkt.MRT_COMMON_HEADER_LEN:])
	if err != nil {
		return fmt.Errorf("%w: body: %w", ErrMalformed, err)
	}
	switch body := msg.Body.(type) {
	case *mrtpkt.PeerIndexTable:
		r.peers = body.Peers
	case *mrtpkt.Rib:
		return r.decodeRib(body)
	}
	return nil
}

func (r *Reader) decodeRib(rib *mrtpkt.Rib) error {
	if r.peers == nil {
		return fmt.Errorf("%w: RIB entry before peer index table", ErrMalformed)
	}
	prefix, err := toPrefix(rib.Prefix)
	if err != nil {
		return err
	}
	for _, entry := range rib.Entries {
		if int(entry.PeerIndex) >= len(r.peers) {
			return fmt.Errorf("%w: peer index %d out of %d peers", ErrMalformed, entry.PeerIndex, len(r.peers))
		}
		peer := r.peers[entry.PeerIndex]
		peerIP, _ := netipx.FromStdIP(peer.IpAddress)
		r.pending = append(r.pending, &model.Record{
			Collector: r.collector,
			PeerASN:   model.ASN(peer.AS),
			PeerIP:    peerIP,
			Path:      asPath(entry.PathAttributes),
			Prefix:    prefix,
		})
	}
	return nil
}

func toPrefix(nlri bgp.AddrPrefixInterface) (netip.Prefix, error) {
	var (
		addr netip.Addr
		ok   bool
		bits uint8
	)
	switch p := nlri.(type) {
	case *bgp.IPAddrPrefix:
		addr, ok = netipx.FromStdIP(p.Prefix)
		bits = p.Length
	case *bgp.IPv6AddrPrefix:
		addr, ok = netipx.FromStdIPRaw(p.Prefix)
		bits = p.Length
	default:
		return netip.Prefix{}, fmt.Errorf("%w: unsupported NLRI %T", ErrMalformed, nlri)
	}
	if !ok {
		return netip.Prefix{}, fmt.Errorf("%w: bad prefix address %v", ErrMalformed, nlri)
	}
	prefix := netip.PrefixFrom(addr, int(bits))
	if !prefix.IsValid() {
		return netip.Prefix{}, fmt.Errorf("%w: bad prefix length %d", ErrMalformed, bits)
	}
	return prefix.Masked(), nil
}

// asPath converts the AS_PATH attribute, returning nil when the entry has none.
func asPath(attrs []bgp.PathAttributeInterface) *model.ASPath {
	for _, attr := range attrs {
		a, ok := attr.(*bgp.PathAttributeAsPath)
		if !ok {
			continue
		}
		path := &model.ASPath{Segments: make([]model.PathSegment, 0, len(a.Value))}
		for _, param := range a.Value {
			var seg model.PathSegment
			switch p := param.(type) {
			case *bgp.As4PathParam:
				seg.Type = model.SegmentType(p.Type)
				seg.ASNs = make([]model.ASN, len(p.AS))
				for i, asn := range p.AS {
					seg.ASNs[i] = model.ASN(asn)
				}
			case *bgp.AsPathParam:
				seg.Type = model.SegmentType(p.Type)
				seg.ASNs = make([]model.ASN, len(p.AS))
				for i, asn := range p.AS {
					seg.ASNs[i] = model.ASN(asn)
				}
			default:
				continue
			}
			path.Segments = append(path.Segments, seg)
		}
		return path
	}
	return nil
}

// Close releases the underlying source.
func (r *Reader) Close() error {
	r.pending = nil
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
