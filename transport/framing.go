// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameSize is the largest payload a 2-byte length prefix can describe.
const maxFrameSize = 0xFFFF

// writeFramed writes payload to w preceded by its 2-byte big-endian
// length, the framing every TCP/TLS exchange in this toolkit uses
// (RFC 1035 §4.2.2).
func writeFramed(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("transport: payload of %d bytes exceeds frame limit %d", len(payload), maxFrameSize)
	}

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFramed reads a 2-byte big-endian length prefix from r, then reads
// exactly that many bytes. Peers must be tolerant of partial reads, so
// this always uses io.ReadFull rather than a single Read.
func readFramed(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint16(lenBuf[:])
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return data, nil
}
