// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

// Package dns implements the wire-format codec and type model for DNS
// messages (RFC 1035 and later additions): parsing, serialization, domain
// name compression, and the small set of enumerations (OpCode, ResCode,
// RecordType, RecordClass) a message's fields are drawn from.
package dns

import "strings"

// Domain is an ordered sequence of ASCII labels, stored decoded (no wire
// length prefixes) and case-preserved. The empty slice is the root ".".
type Domain []string

// String renders the domain in the usual dotted form with a trailing dot,
// e.g. Domain{"www", "hackclub", "com"}.String() == "www.hackclub.com.".
// The root domain renders as ".".
func (d Domain) String() string {
	if len(d) == 0 {
		return "."
	}
	var b strings.Builder
	for _, label := range d {
		b.WriteString(label)
		b.WriteByte('.')
	}
	return b.String()
}

// Equal reports whether two domains have the same labels in the same
// order. Label comparison is case-sensitive, matching the byte-exact
// round-trip this codec preserves end to end.
func (d Domain) Equal(other Domain) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

// ParseDomainString splits a textual domain ("www.hackclub.com" or
// "www.hackclub.com.") into its labels. It does no validation; Domain
// validates on Serialize.
func ParseDomainString(s string) Domain {
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return Domain{}
	}
	return Domain(strings.Split(s, "."))
}

// Header is the fixed 12-octet DNS message header (RFC 1035 §4.1.1).
type Header struct {
	ID                 uint16
	IsResponse         bool
	OpCode             OpCode
	IsAuthoritative    bool
	IsTruncated        bool
	ShouldRecurse      bool
	RecursionAvailable bool
	// Z is the 3-bit reserved field. RFC 1035 says it must be zero, but
	// this codec preserves whatever bits it read so that replies to
	// misbehaving peers remain bit-exact.
	Z       uint8
	RCode   ResCode
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Question is one entry of a message's question section.
type Question struct {
	Name   Domain
	QType  RecordType
	QClass RecordClass
}

// ResourceRecord is one entry of a message's answer, authority, or
// additional section. Data is the uninterpreted RDATA slice; DomainData
// and AfterPtr are populated by the parser only for record types whose
// RDATA embeds compression-pointer-bearing names (RFC 1035 §4.1.3,
// §4.1.4).
type ResourceRecord struct {
	Name  Domain
	Type  RecordType
	Class RecordClass
	TTL   uint32
	Data  []byte

	// DomainData holds names re-parsed out of Data for NS/CNAME/PTR (one
	// name), MX (one name, after the 2-byte preference), and SOA (mname,
	// rname). nil for any other record type.
	DomainData []Domain
	// AfterPtr is set only for SOA: the number of bytes DomainData's two
	// names consumed from the start of Data, so a caller can read the
	// five trailing u32 fields (serial, refresh, retry, expire, minimum)
	// starting at Data[*AfterPtr]. nil otherwise.
	AfterPtr *int
}

// Message is a full DNS message: header plus its four sections.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authorities []ResourceRecord
	Additional  []ResourceRecord
}
