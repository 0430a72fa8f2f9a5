// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package dns

// NewQuery builds a single-question outbound query message, mirroring the
// request shape the original resolver sends upstream (should_recurse is
// the caller's choice: a client wants recursion, an iterative resolver
// walking the hierarchy itself does not, per RFC 1035 §7.2).
func NewQuery(id uint16, name Domain, qtype RecordType, qclass RecordClass, shouldRecurse bool) Message {
	return Message{
		Header: Header{
			ID:            id,
			OpCode:        OpCodeQuery,
			ShouldRecurse: shouldRecurse,
			RCode:         ResCodeNoError,
		},
		Questions: []Question{{Name: name, QType: qtype, QClass: qclass}},
	}
}

// NewReply starts a response message carrying the given id and rcode, with
// every section empty. Callers append sections and set IsAuthoritative/
// RecursionAvailable as needed before serializing.
func NewReply(id uint16, rcode ResCode) Message {
	return Message{
		Header: Header{
			ID:         id,
			IsResponse: true,
			OpCode:     OpCodeQuery,
			RCode:      rcode,
		},
	}
}
