// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package dns

import (
	"fmt"
	"unicode/utf8"
)

// ParseMessage parses a complete DNS message from wire format
// (RFC 1035 §4.1).
func ParseMessage(data []byte) (Message, error) {
	r := newReader(data)

	header, err := parseHeader(r)
	if err != nil {
		return Message{}, err
	}

	questions := make([]Question, 0, header.QDCount)
	for i := uint16(0); i < header.QDCount; i++ {
		q, err := parseQuestion(r)
		if err != nil {
			return Message{}, err
		}
		questions = append(questions, q)
	}

	answers, err := parseRecords(r, header.ANCount)
	if err != nil {
		return Message{}, err
	}
	authorities, err := parseRecords(r, header.NSCount)
	if err != nil {
		return Message{}, err
	}
	additional, err := parseRecords(r, header.ARCount)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Header:      header,
		Questions:   questions,
		Answers:     answers,
		Authorities: authorities,
		Additional:  additional,
	}, nil
}

func parseRecords(r *reader, count uint16) ([]ResourceRecord, error) {
	records := make([]ResourceRecord, 0, count)
	for i := uint16(0); i < count; i++ {
		rr, err := parseResourceRecord(r)
		if err != nil {
			return nil, err
		}
		records = append(records, rr)
	}
	return records, nil
}

// ParseDomain parses a single domain name, following compression pointers
// per the bounded-hop policy in reader.go.
func ParseDomain(data []byte) (Domain, error) {
	return parseDomain(newReader(data))
}

func parseDomain(r *reader) (Domain, error) {
	return parseDomainHops(r, maxPointerHops)
}

func parseDomainHops(r *reader, hopsLeft int) (Domain, error) {
	var labels []string

	for {
		if r.remaining() == 0 {
			return nil, &NotEnoughBytesError{Expected: 1, Received: 0}
		}

		length, err := r.readByte()
		if err != nil {
			return nil, err
		}

		if length == 0 {
			break
		}

		if length>>6 == 0b11 {
			pointerStart := r.pos - 1

			next, err := r.readByte()
			if err != nil {
				return nil, err
			}

			ptr := (int(length&0x3F) << 8) | int(next)

			if hopsLeft <= 0 {
				return nil, &TooManyPointersError{MaxHops: maxPointerHops}
			}

			if ptr >= pointerStart {
				return nil, &BadPointerError{PointerOffset: pointerStart, Target: ptr}
			}

			sub := r.at(ptr)
			compressed, err := parseDomainHops(sub, hopsLeft-1)
			if err != nil {
				return nil, err
			}

			labels = append(labels, compressed...)
			break
		}

		label, err := readLabel(r, int(length))
		if err != nil {
			return nil, err
		}

		labels = append(labels, label)
	}

	return Domain(labels), nil
}

func readLabel(r *reader, length int) (string, error) {
	data, err := r.readBytes(length)
	if err != nil {
		return "", err
	}

	if !utf8.Valid(data) {
		return "", &InvalidAsciiError{Kind: InvalidUtf8, Underlying: fmt.Errorf("invalid UTF-8 byte sequence in label")}
	}

	for _, b := range data {
		if b >= 0x80 {
			return "", &InvalidAsciiError{Kind: NotAscii}
		}
	}

	return string(data), nil
}

func parseHeader(r *reader) (Header, error) {
	if r.remaining() < 12 {
		return Header{}, &NotEnoughBytesError{Expected: 12, Received: r.remaining()}
	}

	id, _ := r.readUint16()
	chunk, _ := r.readUint16()

	isResponse := chunk>>15 == 1
	opcode := OpCode((chunk >> 11) & 0x0F)
	isAuthoritative := (chunk>>10)&0b1 == 1
	isTruncated := (chunk>>9)&0b1 == 1
	shouldRecurse := (chunk>>8)&0b1 == 1
	recursionAvailable := (chunk>>7)&0b1 == 1
	z := uint8((chunk >> 4) & 0b111)
	rcode := ResCode(chunk & 0x0F)

	qdcount, _ := r.readUint16()
	ancount, _ := r.readUint16()
	nscount, _ := r.readUint16()
	arcount, _ := r.readUint16()

	return Header{
		ID:                 id,
		IsResponse:         isResponse,
		OpCode:             opcode,
		IsAuthoritative:    isAuthoritative,
		IsTruncated:        isTruncated,
		ShouldRecurse:      shouldRecurse,
		RecursionAvailable: recursionAvailable,
		Z:                  z,
		RCode:              rcode,
		QDCount:            qdcount,
		ANCount:            ancount,
		NSCount:            nscount,
		ARCount:            arcount,
	}, nil
}

func parseQuestion(r *reader) (Question, error) {
	name, err := parseDomain(r)
	if err != nil {
		return Question{}, err
	}

	if r.remaining() < 4 {
		return Question{}, &NotEnoughBytesError{Expected: 4, Received: r.remaining()}
	}

	qtype, _ := r.readUint16()
	qclass, _ := r.readUint16()

	return Question{
		Name:   name,
		QType:  RecordType(qtype),
		QClass: RecordClass(qclass),
	}, nil
}

func parseResourceRecord(r *reader) (ResourceRecord, error) {
	name, err := parseDomain(r)
	if err != nil {
		return ResourceRecord{}, err
	}

	if r.remaining() < 10 {
		return ResourceRecord{}, &NotEnoughBytesError{Expected: 10, Received: r.remaining()}
	}

	rtype, _ := r.readUint16()
	rclass, _ := r.readUint16()
	ttl, _ := r.readUint32()
	dataLen, _ := r.readUint16()

	if r.remaining() < int(dataLen) {
		return ResourceRecord{}, &NotEnoughBytesError{Expected: int(dataLen), Received: r.remaining()}
	}

	dataStart := r.pos
	data, _ := r.readBytes(int(dataLen))

	rr := ResourceRecord{
		Name:  name,
		Type:  RecordType(rtype),
		Class: RecordClass(rclass),
		TTL:   ttl,
		Data:  data,
	}

	// The embedded names are re-parsed from a reader positioned at the
	// start of the RDATA slice, walking independently of the outer
	// cursor; the outer cursor has already advanced past the whole
	// slice above regardless of what that inner parse consumes
	// (RFC 1035 §4.1.3).
	switch rr.Type {
	case TypeNS, TypeCNAME, TypePTR:
		inner := r.at(dataStart)
		domain, err := parseDomain(inner)
		if err != nil {
			return ResourceRecord{}, err
		}
		rr.DomainData = []Domain{domain}

	case TypeMX:
		inner := r.at(dataStart)
		if _, err := inner.readUint16(); err != nil {
			return ResourceRecord{}, err
		}
		domain, err := parseDomain(inner)
		if err != nil {
			return ResourceRecord{}, err
		}
		rr.DomainData = []Domain{domain}

	case TypeSOA:
		inner := r.at(dataStart)
		mname, err := parseDomain(inner)
		if err != nil {
			return ResourceRecord{}, err
		}
		rname, err := parseDomain(inner)
		if err != nil {
			return ResourceRecord{}, err
		}
		consumed := inner.pos - dataStart
		rr.DomainData = []Domain{mname, rname}
		rr.AfterPtr = &consumed
	}

	return rr, nil
}
