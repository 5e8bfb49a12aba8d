package coap

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// TID is the 16-bit transaction id used to match retransmissions and
// responses to outstanding requests within one endpoint (spec.md §4.A).
// It is distinct from the wire message id (MID).
type TID uint16

// InvalidTID is the sentinel the endpoint's send paths return when a
// transmission fails or a retransmission is given up on.
const InvalidTID TID = 0

// TransactionID derives a 16-bit key from a peer address and, if present,
// the PDU's Token option (spec.md §4.A). The hash primitive is injected in
// spirit only: this engine always uses xxhash, a real non-cryptographic
// digest already present in the wider dependency graph (ristretto,
// clickhouse-go) rather than hand-rolling one, matching "never fall back to
// the standard library where the ecosystem shows a way" for a hashing
// concern.
//
// Absorption order follows libcoap's coap_transaction_id: for IPv4 the
// complete address (IP + port) is hashed as one unit; for IPv6 the port is
// hashed first, then the 128-bit address, as two separate writes — this
// keeps flow label / scope id out of the digest even though Address itself
// never carries them into IP.
func TransactionID(peer Address, pdu *PDU) TID {
	d := xxhash.New()

	switch peer.Family {
	case FamilyIPv4:
		var buf [6]byte
		copy(buf[:4], peer.IP.To4())
		binary.BigEndian.PutUint16(buf[4:], uint16(peer.Port))
		_, _ = d.Write(buf[:])
	default:
		var portBuf [2]byte
		binary.BigEndian.PutUint16(portBuf[:], uint16(peer.Port))
		_, _ = d.Write(portBuf[:])
		_, _ = d.Write(peer.IP.To16())
	}

	if pdu != nil {
		if tok := pdu.Token(); tok != nil {
			_, _ = d.Write(tok)
		}
	}

	return digestToTID(d.Sum64())
}

// digestToTID folds a 64-bit digest down to 16 bits the way coap_hash's
// 128-bit accumulator is folded in coap_transaction_id: read the first four
// digest bytes as two big-endian 16-bit words and XOR them together. The
// remaining four bytes are not used.
func digestToTID(sum uint64) TID {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], sum)
	h0 := uint16(b[0])<<8 | uint16(b[1])
	h1 := uint16(b[2])<<8 | uint16(b[3])
	return TID(h0 ^ h1)
}

// ResourceKey identifies a registered resource by the hash of its URI path,
// standing in for libcoap's coap_key_t (a 4-byte hash of the path).
type ResourceKey uint32

// WellKnownPath is the CoRE discovery resource path.
const WellKnownPath = ".well-known/core"

// HashPath hashes a URI path string into a ResourceKey.
func HashPath(path string) ResourceKey {
	return ResourceKey(xxhash.Sum64String(path))
}

// WellKnownKey is the fixed key for the discovery resource, computed once.
var WellKnownKey = HashPath(WellKnownPath)

// HashRequestURI reassembles a request's Uri-Path options (in order, joined
// by "/") and hashes the result, mirroring coap_hash_request_uri.
func HashRequestURI(pdu *PDU) ResourceKey {
	var segments []string
	for _, opt := range pdu.Options {
		if opt.Number == OptionURIPath {
			segments = append(segments, string(opt.Value))
		}
	}
	return HashPath(strings.Join(segments, "/"))
}
