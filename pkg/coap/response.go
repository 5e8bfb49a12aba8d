package coap

// NewErrorResponse builds an ACK (if req was CON) or NON error PDU carrying
// code, copying the Token plus every option selected by opts from the
// request, then (if a canned phrase exists for code) the reason phrase as
// payload. This is spec.md §4.G's new_error_response.
//
// opts is mutated: Token is force-set and Content-Type is force-cleared,
// matching libcoap's coap_new_error_response (it always needs the Token,
// and it adds Content-Type itself below so a caller-supplied one would be
// redundant and wrong).
func NewErrorResponse(req *PDU, code Code, opts *OptionFilter) *PDU {
	opts.Clear(OptionContentType)
	opts.Set(OptionToken)

	typ := TypeNonConfirmable
	if req.Type == TypeConfirmable {
		typ = TypeAcknowledgement
	}

	resp := NewPDU(typ, code, req.MID)

	phrase := responsePhrase(code)
	if phrase != "" {
		resp.Options = append(resp.Options, Option{
			Number: OptionContentType,
			Value:  encodeContentFormat(MediaTypeTextPlain),
		})
	}

	for _, opt := range req.Options.Select(opts) {
		resp.Options = append(resp.Options, opt)
	}

	if phrase != "" {
		resp.Payload = []byte(phrase)
	}

	return resp
}

// WellKnownResponse builds the 2.05 Content reply to a GET on
// .well-known/core, with payload supplied by printer (spec.md §4.G).
// Returns nil if printer fails to serialize the registry.
func WellKnownResponse(req *PDU, printer WellKnownPrinter) *PDU {
	resp := NewPDU(TypeAcknowledgement, Content, req.MID)
	resp.Options = append(resp.Options, Option{
		Number: OptionContentType,
		Value:  encodeContentFormat(MediaTypeApplicationLinkFmt),
	})
	if tok := req.Token(); tok != nil {
		resp.Options = append(resp.Options, Option{Number: OptionToken, Value: tok})
	}

	body, err := printer.PrintWellKnown()
	if err != nil {
		return nil
	}
	resp.Payload = []byte(body)
	return resp
}

// encodeContentFormat encodes a Content-Format option value using CoAP's
// variable-length uint encoding: the minimal number of bytes, none for 0.
func encodeContentFormat(mt MediaType) []byte {
	if mt == 0 {
		return nil
	}
	if mt <= 0xff {
		return []byte{byte(mt)}
	}
	return []byte{byte(mt >> 8), byte(mt)}
}
