package coap

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed 4-byte CoAP header: ver:2 | type:2 | optcnt:4 | code:8 | mid:16.
const HeaderSize = 4

// MaxPDUSize bounds a single datagram this engine will admit. RFC 7252
// recommends at least 1152 bytes for a CoAP endpoint that does not
// implement blockwise transfer.
const MaxPDUSize = 1152

var (
	ErrShortDatagram  = errors.New("coap: datagram shorter than header")
	ErrBadVersion     = errors.New("coap: unsupported protocol version")
	ErrBufferTooSmall = errors.New("coap: buffer too small to marshal PDU")
	ErrTooManyOptions = errors.New("coap: option count exceeds header field width")

	// ErrUnknownCritical is logged alongside the 4.02 Bad Option response
	// the dispatcher sends when a CON carries a critical option this
	// endpoint does not recognize (spec.md §7).
	ErrUnknownCritical = errors.New("coap: unrecognized critical option")
	// ErrResourceNotFound is logged alongside the 4.04 Not Found response
	// sent when a request's URI has no registered resource (spec.md §7).
	ErrResourceNotFound = errors.New("coap: resource not found")
	// ErrMethodNotAllowed is logged alongside the 4.05 Method Not Allowed
	// response sent when a resource exists but has no handler for the
	// request's method (spec.md §7).
	ErrMethodNotAllowed = errors.New("coap: method not allowed on resource")
	// ErrClosed is returned by Read (and by Unmarshal's callers via Read)
	// once the underlying socket has been closed, so a caller can tell a
	// deliberate shutdown apart from a transient recv error with errors.Is.
	ErrClosed = errors.New("coap: endpoint closed")
	// ErrInvalidToken is returned by Unmarshal when a datagram's Token
	// option exceeds MaxTokenLength (RFC 7252 §3: a token is 0-8 bytes).
	ErrInvalidToken = errors.New("coap: token exceeds maximum length")
)

// MaxTokenLength is the largest Token option value Unmarshal accepts,
// per RFC 7252 §3.
const MaxTokenLength = 8

// PDU is one CoAP message: fixed header fields, an option list, and an
// opaque payload. PDU is a value the endpoint hands to handlers as a
// borrowed view — callers that need to retain one must deep-copy it (Clone).
type PDU struct {
	Version byte
	Type    Type
	Code    Code
	MID     uint16
	Options Options
	Payload []byte
}

// NewPDU builds an empty PDU of the given type/code/message-id, with the
// default protocol version already set.
func NewPDU(t Type, code Code, mid uint16) *PDU {
	return &PDU{Version: DefaultVersion, Type: t, Code: code, MID: mid}
}

// Token returns the PDU's Token option value, or nil if absent.
func (p *PDU) Token() []byte {
	if opt, ok := p.Options.Get(OptionToken); ok {
		return opt.Value
	}
	return nil
}

// Clone deep-copies a PDU so a handler may retain it beyond the call that
// delivered it.
func (p *PDU) Clone() *PDU {
	if p == nil {
		return nil
	}
	c := &PDU{Version: p.Version, Type: p.Type, Code: p.Code, MID: p.MID}
	if p.Payload != nil {
		c.Payload = append([]byte(nil), p.Payload...)
	}
	for _, o := range p.Options {
		c.Options = append(c.Options, Option{Number: o.Number, Value: append([]byte(nil), o.Value...)})
	}
	return c
}

// Marshal encodes the PDU into buf, returning the number of bytes written.
// Options are written in ascending-number, delta-encoded order; each option
// is one delta byte, one length byte, then its value bytes (Unmarshal reads
// the same layout). Deltas and value lengths are each stored in a single
// byte, so an option whose delta or value length exceeds 255 cannot be
// represented and is not rejected either.
func (p *PDU) Marshal(buf []byte) (int, error) {
	opts := append(Options(nil), p.Options...)
	opts.Sort()
	if len(opts) > 0x0f {
		return 0, ErrTooManyOptions
	}

	n := HeaderSize
	for _, o := range opts {
		n += 2 + len(o.Value)
	}
	n += len(p.Payload)
	if len(buf) < n {
		return 0, ErrBufferTooSmall
	}

	buf[0] = (p.Version&0x3)<<6 | (byte(p.Type)&0x3)<<4 | byte(len(opts))&0x0f
	buf[1] = byte(p.Code)
	binary.BigEndian.PutUint16(buf[2:4], p.MID)

	off := HeaderSize
	prev := OptionNumber(0)
	for _, o := range opts {
		delta := uint16(o.Number - prev)
		prev = o.Number
		buf[off] = byte(delta)
		buf[off+1] = byte(len(o.Value))
		off += 2
		copy(buf[off:], o.Value)
		off += len(o.Value)
	}
	off += copy(buf[off:], p.Payload)
	return off, nil
}

// Unmarshal decodes a complete wire-format datagram into a PDU. It rejects
// datagrams shorter than the fixed header or carrying an unsupported
// version; it does not otherwise validate option layout past the declared
// option count — malformed options are the criticality screener's concern
// (spec.md §4.D).
func Unmarshal(buf []byte) (*PDU, error) {
	if len(buf) < HeaderSize {
		return nil, ErrShortDatagram
	}
	version := buf[0] >> 6
	if version != DefaultVersion {
		return nil, ErrBadVersion
	}
	p := &PDU{
		Version: version,
		Type:    Type((buf[0] >> 4) & 0x3),
		Code:    Code(buf[1]),
		MID:     binary.BigEndian.Uint16(buf[2:4]),
	}
	optcnt := int(buf[0] & 0x0f)

	off := HeaderSize
	prev := OptionNumber(0)
	for i := 0; i < optcnt; i++ {
		if off+2 > len(buf) {
			return nil, fmt.Errorf("coap: truncated option header at option %d", i)
		}
		delta := OptionNumber(buf[off])
		length := int(buf[off+1])
		off += 2
		if off+length > len(buf) {
			return nil, fmt.Errorf("coap: truncated option value at option %d", i)
		}
		prev += delta
		if prev == OptionToken && length > MaxTokenLength {
			return nil, fmt.Errorf("coap: option %d: %w", i, ErrInvalidToken)
		}
		value := append([]byte(nil), buf[off:off+length]...)
		p.Options = append(p.Options, Option{Number: prev, Value: value})
		off += length
	}
	if off < len(buf) {
		p.Payload = append([]byte(nil), buf[off:]...)
	}
	return p, nil
}
