// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package config

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/user00265/dnstk/dns"
)

// LoadRootHints reads a BIND-style root-hints file — one
// "name ttl class A address" line per trusted root — and returns the
// first root's IPv4 address. The resolver is configured with a single
// IPv4 address; this file is just where that address lives on disk,
// parsed with the same A-record decoder the wire codec uses.
func LoadRootHints(path string) (net.IP, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open root hints file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, fmt.Errorf("root hints line %d: expected 5 fields (name ttl class A address), got %d", lineNum, len(fields))
		}

		if _, err := strconv.Atoi(fields[1]); err != nil {
			return nil, fmt.Errorf("root hints line %d: invalid ttl %q", lineNum, fields[1])
		}
		if !strings.EqualFold(fields[2], "IN") {
			return nil, fmt.Errorf("root hints line %d: unsupported class %q", lineNum, fields[2])
		}
		if !strings.EqualFold(fields[3], "A") {
			return nil, fmt.Errorf("root hints line %d: unsupported type %q (only A is supported)", lineNum, fields[3])
		}

		ip := net.ParseIP(fields[4]).To4()
		if ip == nil {
			return nil, fmt.Errorf("root hints line %d: invalid IPv4 address %q", lineNum, fields[4])
		}

		// Touch the codec's own A-record encoder/decoder round-trip so a
		// malformed address that net.ParseIP happens to accept but the
		// wire codec wouldn't is caught at load time, not mid-resolution.
		if decoded, ok := dns.DecodeA(dns.EncodeA(ip)); !ok || !decoded.Equal(ip) {
			return nil, fmt.Errorf("root hints line %d: address %q failed codec round-trip", lineNum, fields[4])
		}

		return ip, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("root hints file %s: no A record found", path)
}
