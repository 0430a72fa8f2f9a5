// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package dns

import (
	"encoding/binary"
	"net"
)

// EncodeA builds the RDATA for an A record from an IPv4 address.
func EncodeA(ip net.IP) []byte {
	if ip4 := ip.To4(); ip4 != nil {
		return append([]byte(nil), ip4...)
	}
	return nil
}

// EncodeAAAA builds the RDATA for an AAAA record from an IPv6 address.
func EncodeAAAA(ip net.IP) []byte {
	if ip.To4() != nil {
		return nil
	}
	if ip16 := ip.To16(); ip16 != nil {
		return append([]byte(nil), ip16...)
	}
	return nil
}

// EncodeTXT builds the RDATA for a TXT record: a single character-string
// (length byte plus up to 255 bytes of text).
func EncodeTXT(text string) []byte {
	if len(text) > 255 {
		text = text[:255]
	}
	buf := make([]byte, len(text)+1)
	buf[0] = byte(len(text))
	copy(buf[1:], text)
	return buf
}

// EncodeNS builds the RDATA for an NS record: the nameserver's name,
// uncompressed.
func EncodeNS(nameserver Domain) ([]byte, error) {
	return nameserver.Serialize()
}

// EncodeCNAME builds the RDATA for a CNAME record.
func EncodeCNAME(target Domain) ([]byte, error) {
	return target.Serialize()
}

// EncodePTR builds the RDATA for a PTR record.
func EncodePTR(target Domain) ([]byte, error) {
	return target.Serialize()
}

// EncodeMX builds the RDATA for an MX record: a 2-byte preference followed
// by the exchange's name.
func EncodeMX(preference uint16, exchange Domain) ([]byte, error) {
	encoded, err := exchange.Serialize()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 2+len(encoded))
	binary.BigEndian.PutUint16(buf, preference)
	copy(buf[2:], encoded)

	return buf, nil
}

// EncodeSOA builds the RDATA for an SOA record: mname, rname, then five
// trailing u32 fields (serial, refresh, retry, expire, minimum).
func EncodeSOA(mname, rname Domain, serial, refresh, retry, expire, minimum uint32) ([]byte, error) {
	mnameEnc, err := mname.Serialize()
	if err != nil {
		return nil, err
	}
	rnameEnc, err := rname.Serialize()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, len(mnameEnc)+len(rnameEnc)+20)
	pos := copy(buf, mnameEnc)
	pos += copy(buf[pos:], rnameEnc)

	for _, v := range []uint32{serial, refresh, retry, expire, minimum} {
		binary.BigEndian.PutUint32(buf[pos:], v)
		pos += 4
	}

	return buf, nil
}

// DecodeA reads an A record's RDATA back into a net.IP.
func DecodeA(data []byte) (net.IP, bool) {
	if len(data) != 4 {
		return nil, false
	}
	return net.IP(append([]byte(nil), data...)), true
}

// DecodeAAAA reads an AAAA record's RDATA back into a net.IP.
func DecodeAAAA(data []byte) (net.IP, bool) {
	if len(data) != 16 {
		return nil, false
	}
	return net.IP(append([]byte(nil), data...)), true
}

// SOAFields are the five trailing u32 values of an SOA record's RDATA,
// found at ResourceRecord.Data[*ResourceRecord.AfterPtr:].
type SOAFields struct {
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// DecodeSOATail reads the five trailing u32 fields of an SOA record given
// the byte offset AfterPtr reported at parse time.
func DecodeSOATail(data []byte, afterPtr int) (SOAFields, bool) {
	if len(data) < afterPtr+20 {
		return SOAFields{}, false
	}
	tail := data[afterPtr:]
	return SOAFields{
		Serial:  binary.BigEndian.Uint32(tail[0:4]),
		Refresh: binary.BigEndian.Uint32(tail[4:8]),
		Retry:   binary.BigEndian.Uint32(tail[8:12]),
		Expire:  binary.BigEndian.Uint32(tail[12:16]),
		Minimum: binary.BigEndian.Uint32(tail[16:20]),
	}, true
}
