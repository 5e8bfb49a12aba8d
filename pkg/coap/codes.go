// Package coap implements the wire-level building blocks of a CoAP PDU:
// message types, request/response codes, options and their criticality
// rule, and the fixed header layout. It has no knowledge of transport,
// retransmission, or dispatch — those live in pkg/endpoint.
package coap

import "fmt"

// DefaultVersion is the only protocol version this engine accepts.
const DefaultVersion = 1

// Type is the CoAP message type carried in the fixed header.
type Type uint8

const (
	TypeConfirmable     Type = 0 // CON
	TypeNonConfirmable  Type = 1 // NON
	TypeAcknowledgement Type = 2 // ACK
	TypeReset           Type = 3 // RST
)

func (t Type) String() string {
	switch t {
	case TypeConfirmable:
		return "CON"
	case TypeNonConfirmable:
		return "NON"
	case TypeAcknowledgement:
		return "ACK"
	case TypeReset:
		return "RST"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Code is the CoAP request method or response code, encoded "c.dd" style:
// 0 is empty, 1-31 are request methods, 64-191 are response codes.
type Code uint8

// Request methods.
const (
	CodeEmpty Code = 0

	MethodGet    Code = 1
	MethodPost   Code = 2
	MethodPut    Code = 3
	MethodDelete Code = 4
)

// Response codes, built with the c.dd encoding: class*32 + detail.
func responseCode(class, detail uint8) Code {
	return Code(class<<5 | detail)
}

var (
	Content             = responseCode(2, 5) // 2.05
	NotFound            = responseCode(4, 4) // 4.04
	MethodNotAllowed    = responseCode(4, 5) // 4.05
	BadOption           = responseCode(4, 2) // 4.02
	InternalServerError = responseCode(5, 0) // 5.00
)

func (c Code) IsRequest() bool {
	return c >= 1 && c <= 31
}

func (c Code) IsResponse() bool {
	return c >= 64 && c <= 191
}

func (c Code) IsEmpty() bool {
	return c == CodeEmpty
}

func (c Code) Class() uint8  { return uint8(c) >> 5 }
func (c Code) Detail() uint8 { return uint8(c) & 0x1f }

func (c Code) String() string {
	switch {
	case c.IsEmpty():
		return "0.00"
	case c.IsRequest():
		switch c {
		case MethodGet:
			return "GET"
		case MethodPost:
			return "POST"
		case MethodPut:
			return "PUT"
		case MethodDelete:
			return "DELETE"
		}
		return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
	default:
		return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
	}
}

// MediaType enumerates the Content-Format values this engine sets itself.
type MediaType uint16

const (
	MediaTypeTextPlain          MediaType = 0
	MediaTypeApplicationLinkFmt MediaType = 40
)

// responsePhrase gives a short human-readable reason for a response code,
// mirroring libcoap's optional COAP_ERROR_PHRASE_LENGTH table. Returns ""
// for codes with no canned phrase, in which case no phrase is appended.
func responsePhrase(c Code) string {
	switch c {
	case BadOption:
		return "Bad Option"
	case NotFound:
		return "Not Found"
	case MethodNotAllowed:
		return "Method Not Allowed"
	case InternalServerError:
		return "Internal Server Error"
	default:
		return ""
	}
}
