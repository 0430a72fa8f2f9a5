// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package dns

import (
	"bytes"
	"errors"
	"testing"
)

func TestDomainSerializeExactBytes(t *testing.T) {
	d := Domain{"www", "hackclub", "com"}
	got, err := d.Serialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []byte{
		3, 'w', 'w', 'w',
		8, 'h', 'a', 'c', 'k', 'c', 'l', 'u', 'b',
		3, 'c', 'o', 'm',
		0,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestDomainSerializeRootExactBytes(t *testing.T) {
	got, err := Domain{}.Serialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte{0}) {
		t.Errorf("got % x, want a lone zero byte", got)
	}
}

func TestHeaderSerializeExactBytes(t *testing.T) {
	msg := Message{
		Header: Header{
			ID:                 0x1234,
			IsResponse:         true,
			OpCode:             OpCodeQuery,
			IsAuthoritative:    true,
			ShouldRecurse:      true,
			RecursionAvailable: true,
			RCode:              ResCodeNoError,
		},
	}

	got, err := msg.Serialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []byte{
		0x12, 0x34, // ID
		0x85, 0x80, // QR=1 OpCode=0000 AA=1 TC=0 RD=1 RA=1 Z=000 RCode=0000
		0x00, 0x00, // QDCount
		0x00, 0x00, // ANCount
		0x00, 0x00, // NSCount
		0x00, 0x00, // ARCount
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestHeaderSerializePreservesZBits(t *testing.T) {
	msg := Message{Header: Header{ID: 1, Z: 0x05}}

	got, err := msg.Serialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// byte 3 (0-indexed) holds RCode in the low nibble, Z in the next 3 bits.
	if got[3]&0x70 != 0x50 {
		t.Errorf("expected Z bits 0x05 preserved in flags byte, got %#x", got[3])
	}
}

func TestMessageSerializeTooManyQuestions(t *testing.T) {
	questions := make([]Question, maxU16+1)
	for i := range questions {
		questions[i] = Question{Name: Domain{"example", "com"}, QType: TypeA, QClass: ClassIN}
	}
	msg := Message{Header: Header{ID: 1}, Questions: questions}

	_, err := msg.Serialize()
	if err == nil {
		t.Fatal("expected an error for 65536 questions")
	}

	var tooMany *TooManyRecordsError
	if !errors.As(err, &tooMany) {
		t.Fatalf("expected a *TooManyRecordsError, got %T: %v", err, err)
	}
	if tooMany.Received != maxU16+1 {
		t.Errorf("expected Received=%d, got %d", maxU16+1, tooMany.Received)
	}
}
