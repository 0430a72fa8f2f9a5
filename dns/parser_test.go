// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package dns

import (
	"errors"
	"testing"
)

func TestDomainDisplaySinglePart(t *testing.T) {
	if got := (Domain{"com"}).String(); got != "com." {
		t.Errorf("expected \"com.\", got %q", got)
	}
}

func TestDomainDisplayMultiPart(t *testing.T) {
	d := Domain{"www", "google", "com"}
	if got := d.String(); got != "www.google.com." {
		t.Errorf("expected \"www.google.com.\", got %q", got)
	}
}

func TestDomainDisplayRoot(t *testing.T) {
	if got := (Domain{}).String(); got != "." {
		t.Errorf("expected \".\", got %q", got)
	}
}

func TestParseDomainNoData(t *testing.T) {
	_, err := ParseDomain(nil)

	var nb *NotEnoughBytesError
	if !errors.As(err, &nb) {
		t.Fatalf("expected NotEnoughBytesError, got %v", err)
	}
	if nb.Expected != 1 || nb.Received != 0 {
		t.Errorf("expected {1,0}, got {%d,%d}", nb.Expected, nb.Received)
	}
}

func TestParseDomainNotEnoughData(t *testing.T) {
	// Claims a 6-byte label but only 5 bytes follow ("hello").
	_, err := ParseDomain([]byte{6, 104, 101, 108, 108, 111})

	var nb *NotEnoughBytesError
	if !errors.As(err, &nb) {
		t.Fatalf("expected NotEnoughBytesError, got %v", err)
	}
	if nb.Expected != 6 || nb.Received != 5 {
		t.Errorf("expected {6,5}, got {%d,%d}", nb.Expected, nb.Received)
	}
}

func TestParseDomainNonAscii(t *testing.T) {
	// 😀 is valid UTF-8 but not ASCII.
	_, err := ParseDomain([]byte{4, 240, 159, 152, 128})

	var ia *InvalidAsciiError
	if !errors.As(err, &ia) || ia.Kind != NotAscii {
		t.Fatalf("expected InvalidAsciiError{NotAscii}, got %v", err)
	}
}

func TestParseDomainNonUtf8(t *testing.T) {
	// Invalid UTF-8 byte sequence.
	_, err := ParseDomain([]byte{2, 0xc3, 0x28})

	var ia *InvalidAsciiError
	if !errors.As(err, &ia) || ia.Kind != InvalidUtf8 {
		t.Fatalf("expected InvalidAsciiError{InvalidUtf8}, got %v", err)
	}
}

func TestParseDomainHackclub(t *testing.T) {
	data := []byte{3, 119, 119, 119, 8, 104, 97, 99, 107, 99, 108, 117, 98, 3, 99, 111, 109, 0}

	got, err := ParseDomain(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Domain{"www", "hackclub", "com"}
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseDomainCompressionPointer(t *testing.T) {
	// First question's name, "www.hackclub.com", is at offset 12
	// (after the 12-byte header). The second name is a 2-byte pointer
	// C0 0C -> offset 12, so both names must decode identically.
	msg := []byte{
		0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, // header: 2 questions
		3, 119, 119, 119, 8, 104, 97, 99, 107, 99, 108, 117, 98, 3, 99, 111, 109, 0,
		0xC0, 0x0C, // pointer to offset 12
	}

	first, err := ParseDomain(msg[12:])
	if err != nil {
		t.Fatalf("unexpected error parsing first name: %v", err)
	}

	second, err := parseDomain(newReader(msg).at(30))
	if err != nil {
		t.Fatalf("unexpected error parsing compressed name: %v", err)
	}

	if !first.Equal(second) {
		t.Errorf("expected compressed name %v to equal %v", second, first)
	}
}

func TestParseDomainRejectsForwardPointer(t *testing.T) {
	// A pointer at offset 0 targeting offset 2 (forward) must be rejected.
	data := []byte{0xC0, 0x02, 0, 0}

	_, err := ParseDomain(data)

	var bp *BadPointerError
	if !errors.As(err, &bp) {
		t.Fatalf("expected BadPointerError, got %v", err)
	}
}

func TestParseDomainRejectsSelfPointer(t *testing.T) {
	// A pointer at offset 0 targeting offset 0 (itself) must be rejected.
	data := []byte{0xC0, 0x00}

	_, err := ParseDomain(data)

	var bp *BadPointerError
	if !errors.As(err, &bp) {
		t.Fatalf("expected BadPointerError, got %v", err)
	}
}

func TestParseDomainRejectsLongBackwardPointerChain(t *testing.T) {
	// A cycle is already rejected by the backward-only rule (see the
	// forward and self pointer tests above). This builds a chain that
	// rule allows, a long run of backward-chained pointers, so that
	// only the hop cap can reject it.
	data := make([]byte, 0, 2*(maxPointerHops+2))
	// Build offsets 0,2,4,...,2*(maxPointerHops+1) each pointing to the
	// previous pointer (backward, so the backward-only rule allows it),
	// terminated by a real root label at the very end.
	n := maxPointerHops + 2
	for i := 0; i < n; i++ {
		target := (i - 1) * 2
		if i == 0 {
			// first entry: a normal zero-length (root) label so offset 0
			// is valid on its own if ever reached directly.
			data = append(data, 0, 0)
			continue
		}
		data = append(data, 0xC0|byte(target>>8), byte(target))
	}

	_, err := parseDomain(newReader(data).at((n - 1) * 2))

	var tp *TooManyPointersError
	if !errors.As(err, &tp) {
		t.Fatalf("expected TooManyPointersError, got %v", err)
	}
}

func TestParseHeaderNoData(t *testing.T) {
	_, err := parseHeader(newReader(nil))

	var nb *NotEnoughBytesError
	if !errors.As(err, &nb) {
		t.Fatalf("expected NotEnoughBytesError, got %v", err)
	}
	if nb.Expected != 12 || nb.Received != 0 {
		t.Errorf("expected {12,0}, got {%d,%d}", nb.Expected, nb.Received)
	}
}

func TestParseHeaderID(t *testing.T) {
	data := []byte{0x13, 0x37, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	h, err := parseHeader(newReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Header{ID: 0x1337, OpCode: OpCodeQuery, RCode: ResCodeNoError}
	if h != want {
		t.Errorf("expected %+v, got %+v", want, h)
	}
}

func TestParseHeaderIsResponse(t *testing.T) {
	data := []byte{0, 0, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	h, err := parseHeader(newReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !h.IsResponse {
		t.Error("expected IsResponse=true")
	}
}

func TestParseHeaderReservedOpcode(t *testing.T) {
	data := []byte{0, 0, 0x70, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	h, err := parseHeader(newReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.OpCode != OpCode(0xE) {
		t.Errorf("expected OpCode(0xE), got %v", h.OpCode)
	}
	if h.OpCode.String() != "Reserved(14)" {
		t.Errorf("expected Reserved(14), got %s", h.OpCode.String())
	}
}

func TestParseHeaderZPreservedVerbatim(t *testing.T) {
	// bits 6-4 are _z; set them to 0b101.
	data := []byte{0, 0, 0x00, 0x50, 0, 0, 0, 0, 0, 0, 0, 0}

	h, err := parseHeader(newReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.Z != 0b101 {
		t.Errorf("expected Z=0b101, got %b", h.Z)
	}
}

func TestParseQuestionSample(t *testing.T) {
	data := []byte{
		3, 119, 119, 119, 8, 104, 97, 99, 107, 99, 108, 117, 98, 3, 99, 111, 109, 0,
		0x00, 0xFF, 0x00, 0x01,
	}

	q, err := parseQuestion(newReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !q.Name.Equal(Domain{"www", "hackclub", "com"}) {
		t.Errorf("unexpected name: %v", q.Name)
	}
	if q.QType != TypeANY {
		t.Errorf("expected QType=ANY(255), got %v", q.QType)
	}
	if q.QClass != ClassIN {
		t.Errorf("expected QClass=IN(1), got %v", q.QClass)
	}
}

func TestParseResourceRecordNSEmbeddedDomain(t *testing.T) {
	// NS record for "com." -> ns.example.com. ("ns", "example", "com"),
	// followed by one trailing byte to confirm the outer cursor advances
	// by exactly RDLENGTH regardless of what the inner parse consumed.
	rdata := []byte{2, 'n', 's', 7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 3, 'c', 'o', 'm', 0}
	data := []byte{0} // root name
	data = append(data, byte(TypeNS>>8), byte(TypeNS))
	data = append(data, byte(ClassIN>>8), byte(ClassIN))
	data = append(data, 0, 0, 0, 60) // TTL
	data = append(data, byte(len(rdata)>>8), byte(len(rdata)))
	data = append(data, rdata...)
	data = append(data, 0xAA) // trailing marker byte

	r := newReader(data)
	rr, err := parseResourceRecord(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rr.DomainData) != 1 || !rr.DomainData[0].Equal(Domain{"ns", "example", "com"}) {
		t.Fatalf("unexpected domain_data: %v", rr.DomainData)
	}

	next, err := r.readByte()
	if err != nil || next != 0xAA {
		t.Errorf("outer cursor did not land exactly after RDLENGTH bytes: next=%v err=%v", next, err)
	}
}

func TestParseResourceRecordSOAAfterPtr(t *testing.T) {
	mname := []byte{2, 'n', 's', 0}
	rname := []byte{4, 'r', 'o', 'o', 't', 0}
	tail := []byte{
		0, 0, 0, 1, // serial
		0, 0, 0x0E, 0x10, // refresh 3600
		0, 0, 0x02, 0x58, // retry 600
		0, 1, 0x51, 0x80, // expire 86400
		0, 0, 0x0E, 0x10, // minimum 3600
	}
	rdata := append(append([]byte{}, mname...), rname...)
	rdata = append(rdata, tail...)

	data := []byte{0}
	data = append(data, byte(TypeSOA>>8), byte(TypeSOA))
	data = append(data, byte(ClassIN>>8), byte(ClassIN))
	data = append(data, 0, 0, 0, 60)
	data = append(data, byte(len(rdata)>>8), byte(len(rdata)))
	data = append(data, rdata...)

	rr, err := parseResourceRecord(newReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rr.AfterPtr == nil {
		t.Fatal("expected AfterPtr to be set for SOA")
	}
	if *rr.AfterPtr != len(mname)+len(rname) {
		t.Errorf("expected AfterPtr=%d, got %d", len(mname)+len(rname), *rr.AfterPtr)
	}

	fields, ok := DecodeSOATail(rr.Data, *rr.AfterPtr)
	if !ok {
		t.Fatal("DecodeSOATail failed")
	}
	if fields.Serial != 1 || fields.Refresh != 3600 || fields.Retry != 600 || fields.Expire != 86400 || fields.Minimum != 3600 {
		t.Errorf("unexpected SOA fields: %+v", fields)
	}
}

func TestParseMessageSectionCounts(t *testing.T) {
	msg := Message{
		Header:    Header{ID: 1, ShouldRecurse: true},
		Questions: []Question{{Name: Domain{"a"}, QType: TypeA, QClass: ClassIN}},
	}

	raw, err := msg.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if parsed.Header.QDCount != 1 || len(parsed.Questions) != 1 {
		t.Errorf("expected 1 question on the wire, got header=%d slice=%d", parsed.Header.QDCount, len(parsed.Questions))
	}
}
