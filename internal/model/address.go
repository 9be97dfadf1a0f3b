package model

import "strings"

// Address identifies a platform-owned object: PREFIX:namespace:id.
//
//	SERV:place:3c1e...        a place (tenant)
//	SERV:subsecurity:3c1e...  the security subsystem of a place
//	DRIV:dev:9a02...          a device
type Address string

// Address prefixes.
const (
	PrefixService = "SERV"
	PrefixDriver  = "DRIV"
	PrefixHub     = "HUB"
)

// Well-known service namespaces.
const (
	NamespacePlace          = "place"
	NamespacePerson         = "person"
	NamespaceAccount        = "account"
	NamespaceDevice         = "dev"
	NamespaceHub            = "hub"
	NamespaceProduct        = "product"
	NamespaceProductCatalog = "prodcat"
	NamespaceSession        = "sess"
)

// ServiceAddress builds SERV:namespace:id. An empty id addresses the service itself.
func ServiceAddress(namespace, id string) Address {
	return Address(PrefixService + ":" + namespace + ":" + id)
}

// PlaceAddress returns the address of a place.
func PlaceAddress(placeID string) Address { return ServiceAddress(NamespacePlace, placeID) }

// PersonAddress returns the address of a person.
func PersonAddress(personID string) Address { return ServiceAddress(NamespacePerson, personID) }

// AccountAddress returns the address of an account.
func AccountAddress(accountID string) Address { return ServiceAddress(NamespaceAccount, accountID) }

// DeviceAddress returns the address of a device.
func DeviceAddress(deviceID string) Address {
	return Address(PrefixDriver + ":" + NamespaceDevice + ":" + deviceID)
}

// SubsystemAddress returns the address of the subsystem with the given
// namespace (for example "subsecurity") for a place.
func SubsystemAddress(namespace, placeID string) Address {
	return ServiceAddress(namespace, placeID)
}

func (a Address) parts() []string {
	return strings.SplitN(string(a), ":", 3)
}

// Prefix returns the first address segment (SERV, DRIV, ...).
func (a Address) Prefix() string {
	p := a.parts()
	if len(p) < 3 {
		return ""
	}
	return p[0]
}

// Namespace returns the middle address segment.
func (a Address) Namespace() string {
	p := a.parts()
	if len(p) < 3 {
		return ""
	}
	return p[1]
}

// ID returns the trailing address segment.
func (a Address) ID() string {
	p := a.parts()
	if len(p) < 3 {
		return ""
	}
	return p[2]
}

// Valid reports whether the address has all three segments and a prefix.
func (a Address) Valid() bool {
	p := a.parts()
	return len(p) == 3 && p[0] != "" && p[1] != ""
}

func (a Address) String() string { return string(a) }

// Addresses converts a list of strings to addresses, skipping empty entries.
func Addresses(values []string) []Address {
	out := make([]Address, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, Address(v))
		}
	}
	return out
}
