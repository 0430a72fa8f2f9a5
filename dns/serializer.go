// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package dns

import "encoding/binary"

// maxLabelLen is the largest length a single label's leading byte can hold
// without being misread as a compression pointer (its top two bits must
// be 00).
const maxLabelLen = 0x3F

// maxU16 is the largest value a 16-bit wire field (RDLENGTH, a section
// count) can hold.
const maxU16 = 0xFFFF

// Serialize encodes m to wire format. Header section counts are always
// recomputed from the length of the four section slices — the Header
// fields on m are never trusted (RFC 1035 §4.1.1). This codec never
// emits compression pointers (RFC 1035 §4.1.4): every name is written
// uncompressed, even if it parsed from a compressed message.
func (m Message) Serialize() ([]byte, error) {
	header := m.Header

	qd, err := sectionCount(len(m.Questions))
	if err != nil {
		return nil, err
	}
	an, err := sectionCount(len(m.Answers))
	if err != nil {
		return nil, err
	}
	ns, err := sectionCount(len(m.Authorities))
	if err != nil {
		return nil, err
	}
	ar, err := sectionCount(len(m.Additional))
	if err != nil {
		return nil, err
	}

	header.QDCount = qd
	header.ANCount = an
	header.NSCount = ns
	header.ARCount = ar

	buf := make([]byte, 0, 512)
	buf = header.serialize(buf)

	for _, q := range m.Questions {
		buf, err = q.serialize(buf)
		if err != nil {
			return nil, err
		}
	}
	for _, rr := range m.Answers {
		buf, err = rr.serialize(buf)
		if err != nil {
			return nil, err
		}
	}
	for _, rr := range m.Authorities {
		buf, err = rr.serialize(buf)
		if err != nil {
			return nil, err
		}
	}
	for _, rr := range m.Additional {
		buf, err = rr.serialize(buf)
		if err != nil {
			return nil, err
		}
	}

	return buf, nil
}

func sectionCount(n int) (uint16, error) {
	if n > maxU16 {
		return 0, &TooManyRecordsError{ExpectedMax: maxU16, Received: n}
	}
	return uint16(n), nil
}

// serialize appends the packed 12-octet header to buf.
func (h Header) serialize(buf []byte) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], h.ID)
	buf = append(buf, tmp[:]...)

	var chunk uint16
	chunk |= uint16(h.RCode) & 0x0F
	chunk |= uint16(h.Z&0x07) << 4
	if h.RecursionAvailable {
		chunk |= 0x80
	}
	if h.ShouldRecurse {
		chunk |= 0x0100
	}
	if h.IsTruncated {
		chunk |= 0x0200
	}
	if h.IsAuthoritative {
		chunk |= 0x0400
	}
	chunk |= (uint16(h.OpCode) & 0x0F) << 11
	if h.IsResponse {
		chunk |= 0x8000
	}

	binary.BigEndian.PutUint16(tmp[:], chunk)
	buf = append(buf, tmp[:]...)

	for _, count := range []uint16{h.QDCount, h.ANCount, h.NSCount, h.ARCount} {
		binary.BigEndian.PutUint16(tmp[:], count)
		buf = append(buf, tmp[:]...)
	}

	return buf
}

// Serialize encodes d to wire format: length-prefixed labels terminated by
// a zero byte. It never emits a compression pointer (RFC 1035 §4.1.4).
func (d Domain) Serialize() ([]byte, error) {
	return d.serialize(nil)
}

func (d Domain) serialize(buf []byte) ([]byte, error) {
	for _, label := range d {
		for i := 0; i < len(label); i++ {
			if label[i] >= 0x80 {
				return nil, &InvalidAsciiError{Kind: NotAscii, Label: label}
			}
		}

		if len(label) > maxLabelLen {
			return nil, &TooManyBytesError{ExpectedMax: maxLabelLen, Received: len(label)}
		}

		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}

	return append(buf, 0), nil
}

func (q Question) serialize(buf []byte) ([]byte, error) {
	buf, err := q.Name.serialize(buf)
	if err != nil {
		return nil, err
	}

	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(q.QType))
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint16(tmp[:], uint16(q.QClass))
	buf = append(buf, tmp[:]...)

	return buf, nil
}

func (rr ResourceRecord) serialize(buf []byte) ([]byte, error) {
	buf, err := rr.Name.serialize(buf)
	if err != nil {
		return nil, err
	}

	var tmp16 [2]byte
	binary.BigEndian.PutUint16(tmp16[:], uint16(rr.Type))
	buf = append(buf, tmp16[:]...)
	binary.BigEndian.PutUint16(tmp16[:], uint16(rr.Class))
	buf = append(buf, tmp16[:]...)

	var tmp32 [4]byte
	binary.BigEndian.PutUint32(tmp32[:], rr.TTL)
	buf = append(buf, tmp32[:]...)

	if len(rr.Data) > maxU16 {
		return nil, &TooManyBytesError{ExpectedMax: maxU16, Received: len(rr.Data)}
	}

	binary.BigEndian.PutUint16(tmp16[:], uint16(len(rr.Data)))
	buf = append(buf, tmp16[:]...)
	buf = append(buf, rr.Data...)

	return buf, nil
}
