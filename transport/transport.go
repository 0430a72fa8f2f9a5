// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

// Package transport implements the per-query send/receive strategies a DNS
// client or resolver can use to reach a nameserver: UDP, TCP, TLS (DoT),
// and a reserved DoH stub, plus the Unspecified/UnspecifiedEncrypted/
// TryEncrypted fallback variants that chain them together.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/user00265/dnstk/dns"
)

// Selector names a transport strategy.
type Selector int

const (
	UDP Selector = iota
	TCP
	TLSTransport
	DoH
	Unspecified
	UnspecifiedEncrypted
	TryEncrypted
)

func (s Selector) String() string {
	switch s {
	case UDP:
		return "udp"
	case TCP:
		return "tcp"
	case TLSTransport:
		return "tls"
	case DoH:
		return "doh"
	case Unspecified:
		return "unspecified"
	case UnspecifiedEncrypted:
		return "unspecified-encrypted"
	case TryEncrypted:
		return "try-encrypted"
	default:
		return fmt.Sprintf("Selector(%d)", int(s))
	}
}

// defaultPort returns the conventional port for a selector (RFC 1035
// §4.2): 53 for UDP/TCP/Unspecified, 853 for TLS/UnspecifiedEncrypted/
// TryEncrypted (RFC 7858, TLS today stands in for both), 443 for DoH
// (RFC 8484).
func defaultPort(s Selector) int {
	switch s {
	case TLSTransport, UnspecifiedEncrypted, TryEncrypted:
		return 853
	case DoH:
		return 443
	default:
		return 53
	}
}

// Endpoint is a destination nameserver. Port 0 means "use the selector's
// default port" (callers may always override).
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) addr(s Selector) string {
	port := e.Port
	if port == 0 {
		port = defaultPort(s)
	}
	return net.JoinHostPort(e.Host, fmt.Sprintf("%d", port))
}

// Options carries transport-wide settings not tied to a single query.
type Options struct {
	// RootCAs is the trust store for DoT connections. A nil value uses
	// the host's default trust store.
	RootCAs *x509.CertPool

	// ConnectTimeout bounds how long dialing (TCP connect, TLS
	// handshake) may take. Zero uses the default of 5 seconds.
	ConnectTimeout time.Duration
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return 5 * time.Second
}

// ErrTruncated signals that a UDP response had the truncated bit set; it
// is a control signal for the Unspecified fallback, not a user-visible
// failure (RFC 1035 §4.2.1: "it is up to the client to decide ... to
// retry using TCP").
var ErrTruncated = errors.New("transport: response truncated, retry over tcp")

// ErrNotImplemented is returned by the DoH selector, reserved for
// RFC 8484 support.
var ErrNotImplemented = errors.New("transport: DoH is not implemented")

const udpMaxSize = 512

// Query sends req to dest using the given selector and returns the parsed
// response. Selector-specific behavior is documented on the cases below
// and on the query helpers they call (RFC 1035 §4.2).
func Query(ctx context.Context, selector Selector, dest Endpoint, req dns.Message, opts Options) (dns.Message, error) {
	switch selector {
	case UDP:
		return queryUDP(ctx, dest, req, opts)
	case TCP:
		return queryStream(ctx, "tcp", dest.addr(TCP), req, nil, opts)
	case TLSTransport:
		return queryTLS(ctx, dest, req, opts)
	case DoH:
		return dns.Message{}, ErrNotImplemented
	case Unspecified:
		return queryUnspecified(ctx, dest, req, opts)
	case UnspecifiedEncrypted:
		// Reserved to fall back to HTTPS once DoH is implemented; for
		// now it behaves exactly like TLS.
		return queryTLS(ctx, dest, req, opts)
	case TryEncrypted:
		msg, err := queryTLS(ctx, dest, req, opts)
		if err == nil {
			return msg, nil
		}
		return queryUnspecified(ctx, dest, req, opts)
	default:
		return dns.Message{}, fmt.Errorf("transport: unknown selector %v", selector)
	}
}

// queryUnspecified tries UDP first and falls back to TCP on any failure
// or truncation (RFC 1035 §4.2.1), not just a network-level error: a
// malformed or truncated UDP response is exactly the case TCP exists to
// recover from.
func queryUnspecified(ctx context.Context, dest Endpoint, req dns.Message, opts Options) (dns.Message, error) {
	msg, err := queryUDP(ctx, dest, req, opts)
	if err == nil {
		return msg, nil
	}
	return queryStream(ctx, "tcp", dest.addr(TCP), req, nil, opts)
}

func queryUDP(ctx context.Context, dest Endpoint, req dns.Message, opts Options) (dns.Message, error) {
	raw, err := req.Serialize()
	if err != nil {
		return dns.Message{}, err
	}

	dialer := &net.Dialer{Timeout: opts.connectTimeout()}
	conn, err := dialer.DialContext(ctx, "udp", dest.addr(UDP))
	if err != nil {
		return dns.Message{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(opts.connectTimeout()))
	}

	if _, err := conn.Write(raw); err != nil {
		return dns.Message{}, err
	}

	buf := make([]byte, udpMaxSize)
	n, err := conn.Read(buf)
	if err != nil {
		return dns.Message{}, err
	}

	msg, err := dns.ParseMessage(buf[:n])
	if err != nil {
		return dns.Message{}, err
	}

	if msg.Header.IsTruncated {
		return dns.Message{}, ErrTruncated
	}

	return msg, nil
}

func queryTLS(ctx context.Context, dest Endpoint, req dns.Message, opts Options) (dns.Message, error) {
	tlsConfig := &tls.Config{
		RootCAs:    opts.RootCAs,
		ServerName: dest.Host,
	}
	return queryStream(ctx, "tcp", dest.addr(TLSTransport), req, tlsConfig, opts)
}

// queryStream implements the shared 2-byte length-framed request/response
// exchange used by TCP and TLS (RFC 1035 §4.2.2): dial (plain or TLS),
// write the framed request, read the framed response, parse, and close
// the connection bidirectionally.
func queryStream(ctx context.Context, network, addr string, req dns.Message, tlsConfig *tls.Config, opts Options) (dns.Message, error) {
	raw, err := req.Serialize()
	if err != nil {
		return dns.Message{}, err
	}

	dialer := &net.Dialer{Timeout: opts.connectTimeout()}

	var conn net.Conn
	if tlsConfig != nil {
		conn, err = tls.DialWithDialer(dialer, network, addr, tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, network, addr)
	}
	if err != nil {
		return dns.Message{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := writeFramed(conn, raw); err != nil {
		return dns.Message{}, err
	}

	data, err := readFramed(conn)
	if err != nil {
		return dns.Message{}, err
	}

	return dns.ParseMessage(data)
}
