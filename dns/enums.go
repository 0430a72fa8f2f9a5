// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package dns

import "fmt"

// OpCode is the 4-bit opcode carried in a message header. Values outside
// the named set round-trip losslessly as Reserved(n) — OpCode is a plain
// numeric type, so no decode/encode step can lose information, it only
// changes how the value prints.
type OpCode uint16

const (
	OpCodeQuery  OpCode = 0
	OpCodeIQuery OpCode = 1
	OpCodeStatus OpCode = 2
)

func (c OpCode) String() string {
	switch c {
	case OpCodeQuery:
		return "Query"
	case OpCodeIQuery:
		return "IQuery"
	case OpCodeStatus:
		return "Status"
	default:
		return fmt.Sprintf("Reserved(%d)", uint16(c))
	}
}

// ResCode is the 4-bit response code carried in a message header.
type ResCode uint16

const (
	ResCodeNoError        ResCode = 0
	ResCodeFormatError    ResCode = 1
	ResCodeServerFailure  ResCode = 2
	ResCodeNameError      ResCode = 3
	ResCodeNotImplemented ResCode = 4
	ResCodeRefused        ResCode = 5
)

func (c ResCode) String() string {
	switch c {
	case ResCodeNoError:
		return "NoError"
	case ResCodeFormatError:
		return "FormatError"
	case ResCodeServerFailure:
		return "ServerFailure"
	case ResCodeNameError:
		return "NameError"
	case ResCodeNotImplemented:
		return "NotImplemented"
	case ResCodeRefused:
		return "Refused"
	default:
		return fmt.Sprintf("Reserved(%d)", uint16(c))
	}
}

// RecordType is the 16-bit TYPE/QTYPE field of a question or resource
// record. See https://datatracker.ietf.org/doc/html/rfc1035#autoid-14 for
// the base set; SVCB/HTTPS/CAA are later additions (RFC 9460, RFC 8659)
// this toolkit also recognizes.
type RecordType uint16

const (
	TypeA     RecordType = 1  // a host address
	TypeNS    RecordType = 2  // an authoritative name server
	TypeMD    RecordType = 3  // a mail destination (Obsolete - use MX)
	TypeMF    RecordType = 4  // a mail forwarder (Obsolete - use MX)
	TypeCNAME RecordType = 5  // the canonical name for an alias
	TypeSOA   RecordType = 6  // marks the start of a zone of authority
	TypeMB    RecordType = 7  // a mailbox domain name (EXPERIMENTAL)
	TypeMG    RecordType = 8  // a mail group member (EXPERIMENTAL)
	TypeMR    RecordType = 9  // a mail rename domain name (EXPERIMENTAL)
	TypeNULL  RecordType = 10 // a null RR (EXPERIMENTAL)
	TypeWKS   RecordType = 11 // a well known service description
	TypePTR   RecordType = 12 // a domain name pointer
	TypeHINFO RecordType = 13 // host information
	TypeMINFO RecordType = 14 // mailbox or mail list information
	TypeMX    RecordType = 15 // mail exchange
	TypeTXT   RecordType = 16 // text strings
	TypeAAAA  RecordType = 28 // ipv6 host address

	TypeSVCB  RecordType = 64  // service binding
	TypeHTTPS RecordType = 65  // HTTPS service binding
	TypeCAA   RecordType = 257 // certification authority authorization

	// QTYPE-only pseudo-values, valid in a question but never a record.
	TypeAXFR  RecordType = 252 // a request for a transfer of an entire zone
	TypeMAILB RecordType = 253 // a request for mailbox-related records (MB, MG or MR)
	TypeMAILA RecordType = 254 // a request for mail agent RRs (Obsolete - see MX)
	TypeANY   RecordType = 255 // a request for all records
)

func (t RecordType) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeMD:
		return "MD"
	case TypeMF:
		return "MF"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	case TypeMB:
		return "MB"
	case TypeMG:
		return "MG"
	case TypeMR:
		return "MR"
	case TypeNULL:
		return "NULL"
	case TypeWKS:
		return "WKS"
	case TypePTR:
		return "PTR"
	case TypeHINFO:
		return "HINFO"
	case TypeMINFO:
		return "MINFO"
	case TypeMX:
		return "MX"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	case TypeSVCB:
		return "SVCB"
	case TypeHTTPS:
		return "HTTPS"
	case TypeCAA:
		return "CAA"
	case TypeAXFR:
		return "AXFR"
	case TypeMAILB:
		return "MAILB"
	case TypeMAILA:
		return "MAILA"
	case TypeANY:
		return "ANY"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(t))
	}
}

// HasEmbeddedDomain reports whether the codec populates domain_data when
// parsing a record of this type: NS, CNAME, PTR, MX and SOA, whose
// RFC 1035 RDATA holds domain names. Newer types such as SVCB/HTTPS are
// not included.
func (t RecordType) HasEmbeddedDomain() bool {
	switch t {
	case TypeNS, TypeCNAME, TypePTR, TypeMX, TypeSOA:
		return true
	default:
		return false
	}
}

// RecordClass is the 16-bit CLASS/QCLASS field of a question or resource
// record.
type RecordClass uint16

const (
	ClassIN RecordClass = 1 // the Internet
	ClassCS RecordClass = 2 // the CSNET class (Obsolete)
	ClassCH RecordClass = 3 // the CHAOS class
	ClassHS RecordClass = 4 // Hesiod [Dyer 87]

	// QCLASS-only pseudo-value.
	ClassANY RecordClass = 255
)

func (c RecordClass) String() string {
	switch c {
	case ClassIN:
		return "IN"
	case ClassCS:
		return "CS"
	case ClassCH:
		return "CH"
	case ClassHS:
		return "HS"
	case ClassANY:
		return "ANY"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(c))
	}
}
