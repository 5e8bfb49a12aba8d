package coap

import "net"

// Family discriminates the address families an Address can carry. The
// constrained-stack profile (spec.md §5) adds no family of its own here —
// on that profile, endpoints are built with FamilyIPv4 or FamilyIPv6 the
// same as on the general profile; only the allocator and socket layer
// underneath differ.
type Family uint8

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// Address is the opaque peer endpoint the engine hashes and compares. It
// wraps a *net.UDPAddr without exposing comparison semantics that would be
// wrong for IPv6 (spec.md §3: IPv6 addresses compare port and the 128-bit
// address only, ignoring zone/scope).
type Address struct {
	Family Family
	IP     net.IP
	Port   int

	// Zone is retained for round-tripping replies to the correct scope but
	// deliberately excluded from Equal and from the transaction-id hash.
	Zone string
}

// NewAddress builds an Address from a resolved UDP address.
func NewAddress(u *net.UDPAddr) Address {
	a := Address{IP: u.IP, Port: u.Port, Zone: u.Zone}
	if ip4 := u.IP.To4(); ip4 != nil {
		a.Family = FamilyIPv4
		a.IP = ip4
	} else {
		a.Family = FamilyIPv6
	}
	return a
}

func (a Address) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.IP, Port: a.Port, Zone: a.Zone}
}

// Equal compares two addresses per the family-specific rule in spec.md §3:
// IPv4 compares the full socket address; IPv6 compares port and address
// only.
func (a Address) Equal(b Address) bool {
	if a.Family != b.Family {
		return false
	}
	if a.Port != b.Port {
		return false
	}
	return a.IP.Equal(b.IP)
}

func (a Address) String() string {
	return a.UDPAddr().String()
}
