package coap

import "sort"

// OptionNumber identifies a CoAP option. Odd numbers are critical: an
// endpoint that does not recognize them must reject the message.
type OptionNumber uint16

const (
	OptionContentType OptionNumber = 12
	OptionProxyURI    OptionNumber = 35
	OptionURIHost     OptionNumber = 3
	OptionURIPort     OptionNumber = 7
	OptionURIPath     OptionNumber = 11
	OptionToken       OptionNumber = 19
	OptionURIQuery    OptionNumber = 15
)

// IsCritical reports whether an unrecognized option of this number must
// cause the message to be rejected (CoAP: low bit of the option number set).
func (n OptionNumber) IsCritical() bool {
	return n&1 == 1
}

// Option is one option instance: a number plus its raw value bytes.
type Option struct {
	Number OptionNumber
	Value  []byte
}

// Options is an ordered list of options, as carried on a PDU. Callers that
// need option-number order (for encoding) should call Sort.
type Options []Option

func (o Options) Sort() {
	sort.SliceStable(o, func(i, j int) bool { return o[i].Number < o[j].Number })
}

// Get returns the first option with the given number, and whether found.
func (o Options) Get(n OptionNumber) (Option, bool) {
	for _, opt := range o {
		if opt.Number == n {
			return opt, true
		}
	}
	return Option{}, false
}

// Select returns every option in o whose number is set in the filter.
func (o Options) Select(f *OptionFilter) Options {
	var out Options
	for _, opt := range o {
		if f.IsSet(opt.Number) {
			out = append(out, opt)
		}
	}
	return out
}

// Size estimates the encoded footprint of an option for response-size
// estimation: libcoap's COAP_OPT_SIZE, generalized to "header slack plus
// value bytes" since exact delta-encoding size depends on neighbors.
func (o Option) Size() int {
	return 2 + len(o.Value)
}

// OptionFilter is a fixed-width bitset indexed by option number. It is used
// both to select "options of interest" during iteration and as an output
// parameter recording unknown critical options encountered by the
// criticality screener (spec.md §4.F).
//
// The width bounds which option numbers can be recorded: this mirrors
// libcoap's coap_opt_filter_t, whose bit-vector silently cannot represent
// option numbers beyond its width. optionFilterWidth comfortably covers
// every option number defined by RFC 7252 and its extensions in common use.
const optionFilterWidth = 64

type OptionFilter struct {
	bits uint64
}

// NewOptionFilter builds a filter with the given option numbers set.
func NewOptionFilter(numbers ...OptionNumber) *OptionFilter {
	f := &OptionFilter{}
	for _, n := range numbers {
		f.Set(n)
	}
	return f
}

// Set records n as present in the filter. Reports false if n exceeds the
// filter's bit width and could not be recorded — callers (the criticality
// screener) use this to know when to stop looking for more unknowns.
func (f *OptionFilter) Set(n OptionNumber) bool {
	if uint16(n) >= optionFilterWidth {
		return false
	}
	f.bits |= 1 << uint16(n)
	return true
}

func (f *OptionFilter) Clear(n OptionNumber) {
	if uint16(n) < optionFilterWidth {
		f.bits &^= 1 << uint16(n)
	}
}

// IsSet reports whether n is present in the filter. An option number beyond
// the filter's width is reported as not set.
func (f *OptionFilter) IsSet(n OptionNumber) bool {
	if uint16(n) >= optionFilterWidth {
		return false
	}
	return f.bits&(1<<uint16(n)) != 0
}

// defaultKnownOptions is the set of critical options a freshly-created
// endpoint recognizes, per spec.md §4.C.
func defaultKnownOptions() *OptionFilter {
	return NewOptionFilter(
		OptionContentType,
		OptionProxyURI,
		OptionURIHost,
		OptionURIPort,
		OptionURIPath,
		OptionToken,
		OptionURIQuery,
	)
}

// DefaultKnownOptions is exported for callers assembling a custom endpoint
// configuration that needs to start from (and extend) the default set.
func DefaultKnownOptions() *OptionFilter { return defaultKnownOptions() }

// CheckCritical walks pdu's options and flags every critical option not
// present in known. It records each unknown critical option number into
// unknown, and its result is false once one is found; like the source
// implementation, it keeps walking (to record every unknown option) unless
// recording itself fails because unknown's bit width was exceeded, in which
// case walking stops early — the fact that at least one was rejected is
// sufficient for the caller.
func CheckCritical(known *OptionFilter, opts Options, unknown *OptionFilter) bool {
	ok := true
	for _, opt := range opts {
		if !opt.Number.IsCritical() {
			continue
		}
		if known.IsSet(opt.Number) {
			continue
		}
		ok = false
		if !unknown.Set(opt.Number) {
			break
		}
	}
	return ok
}
