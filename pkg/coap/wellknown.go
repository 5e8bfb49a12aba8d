package coap

import "strings"

// WellKnownPrinter serializes a resource registry into CoRE link-format
// (RFC 6690) text, returned as a string, or an error if it cannot.
// This is the injected print_wellknown collaborator from spec.md §6; the
// Registry type below is its default implementation.
type WellKnownPrinter interface {
	PrintWellKnown() (string, error)
}

// Registry is a resource registry keyed by ResourceKey (spec.md §3), the
// default implementation of the injected "resource registry" collaborator
// and of WellKnownPrinter.
type Registry struct {
	resources map[ResourceKey]*Resource
}

// NewRegistry builds an empty resource registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[ResourceKey]*Resource)}
}

// Register adds or replaces the resource at path.
func (r *Registry) Register(res *Resource) {
	res.key = HashPath(res.Path)
	r.resources[res.key] = res
}

// Lookup returns the resource registered under key, if any.
func (r *Registry) Lookup(key ResourceKey) (*Resource, bool) {
	res, ok := r.resources[key]
	return res, ok
}

// PrintWellKnown implements WellKnownPrinter: a minimal CoRE link-format
// listing, one "</path>;..." entry per registered resource, separated by
// commas per RFC 6690 §4.
func (r *Registry) PrintWellKnown() (string, error) {
	var b strings.Builder
	first := true
	for _, res := range r.resources {
		if res.Path == WellKnownPath {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString("</")
		b.WriteString(res.Path)
		b.WriteByte('>')
		if res.ResourceType != "" {
			b.WriteString(`;rt="`)
			b.WriteString(res.ResourceType)
			b.WriteByte('"')
		}
		if res.ContentFormat != 0 {
			b.WriteString(";ct=")
			b.WriteString(formatUint(uint64(res.ContentFormat)))
		}
	}
	return b.String(), nil
}

func formatUint(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// MethodHandler handles one request method against a resource. ctx is the
// opaque engine context passed through untyped to keep this package free of
// an import cycle with pkg/endpoint; callers type-assert it back.
type MethodHandler func(ctx any, res *Resource, remote Address, req *PDU, tid TID)

// Resource is one entry in the registry: a path plus a handler table
// indexed by request code (1-based: MethodGet=1 ... MethodDelete=4).
type Resource struct {
	Path          string
	ResourceType  string
	ContentFormat MediaType
	key           ResourceKey

	handlers [5]MethodHandler
}

// Key returns the resource's computed ResourceKey (valid after Register).
func (r *Resource) Key() ResourceKey { return r.key }

// Handle installs h for method (MethodGet, MethodPost, ...).
func (r *Resource) Handle(method Code, h MethodHandler) {
	if int(method) < len(r.handlers) {
		r.handlers[method] = h
	}
}

// HandlerFor returns the handler registered for method, if any.
func (r *Resource) HandlerFor(method Code) (MethodHandler, bool) {
	if int(method) >= len(r.handlers) {
		return nil, false
	}
	h := r.handlers[method]
	return h, h != nil
}
