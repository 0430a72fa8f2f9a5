// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

// Package resolver implements iterative recursive DNS resolution starting
// from a configured root nameserver, chasing referrals via glue A records
// (RFC 1035 §7.3, §7.4).
package resolver

import (
	"context"
	"log"
	"net"

	"github.com/google/uuid"

	"github.com/user00265/dnstk/dns"
	"github.com/user00265/dnstk/transport"
)

// maxDepth bounds how many referral hops a single client request may
// chase before giving up. The source this resolver is modeled on has no
// cap at all; unbounded recursion lets a malicious or misconfigured
// authority hand back an endless chain of referrals.
const maxDepth = 16

// Resolver walks the authority hierarchy on behalf of inbound client
// requests.
type Resolver struct {
	// Root is the configured root nameserver's address: a single IPv4
	// address.
	Root transport.Endpoint

	// Transport is the selector used for upstream hops. The original
	// always speaks plain TCP to authorities; this is kept configurable
	// so a deployment can point at an upstream that requires DoT.
	Transport transport.Selector

	// NextHopPort is the port referrals are followed on. The source
	// this resolver is modeled on hard-codes 53; kept as a field rather
	// than a literal so tests can stand up stub authorities on ephemeral
	// ports. Zero means 53.
	NextHopPort int

	Options transport.Options
}

// New builds a Resolver pointed at root, issuing upstream queries over
// plain TCP by default — the same transport
// `original_source/server/src/main.rs`'s `make_request` uses against
// ROOT_SOURCE.
func New(root transport.Endpoint) *Resolver {
	return &Resolver{Root: root, Transport: transport.TCP, NextHopPort: 53}
}

func (r *Resolver) nextHopPort() int {
	if r.NextHopPort != 0 {
		return r.NextHopPort
	}
	return 53
}

// Resolve answers a single inbound client request, synthesizing whatever
// reply the request-acceptance policy and resolution algorithm call for.
// req is already parsed, so a reply can always be built: ok is true on
// every path, and a request that cannot be parsed at all is handled by
// the caller before Resolve is reached. hops reports how many
// nameservers the walk queried (0 for Refused, 1 for an answer straight
// from the root), for callers that want to record it as a metric.
func (r *Resolver) Resolve(ctx context.Context, req dns.Message) (resp dns.Message, hops int, ok bool) {
	// The request-acceptance policy keys off the actual question count,
	// not the header's QDCount field — a header count is never
	// trustworthy input, only a value recomputed from a vector (here, at
	// parse time).
	if len(req.Questions) != 1 || !req.Header.ShouldRecurse {
		return refused(req.Header.ID), 0, true
	}

	walkID := uuid.NewString()
	q := req.Questions[0]
	log.Printf("resolve[%s]: new lookup for %s (qtype=%s)", walkID, q.Name, q.QType)

	answer, hopsUsed, err := r.resolveDomain(ctx, walkID, q.Name, q.QType, q.QClass, r.Root, maxDepth)
	if err != nil {
		log.Printf("resolve[%s]: upstream error, replying ServerFailure: %v", walkID, err)
		return serverFailure(req.Header.ID), hopsUsed, true
	}

	if answer == nil {
		return nameError(req.Header.ID), hopsUsed, true
	}

	log.Printf("resolve[%s]: answered in %d hop(s)", walkID, hopsUsed)

	return dns.Message{
		Header: dns.Header{
			ID:                 req.Header.ID,
			IsResponse:         true,
			OpCode:             dns.OpCodeQuery,
			RecursionAvailable: true,
			RCode:              dns.ResCodeNoError,
		},
		Answers: answer,
	}, hopsUsed, true
}

// resolveDomain sends (name, qtype, qclass) to the current nameserver
// with recursion-desired=false and either returns the answer records, a
// nil slice meaning NXDOMAIN, or an error meaning the walk failed to
// reach an answer at all. hops is the number of referral hops taken so
// far, including this one. Grounded directly on
// `original_source/server/src/main.rs`'s `resolve_domain`.
func (r *Resolver) resolveDomain(ctx context.Context, walkID string, name dns.Domain, qtype dns.RecordType, qclass dns.RecordClass, nameserver transport.Endpoint, depthLeft int) (records []dns.ResourceRecord, hops int, err error) {
	hops = maxDepth - depthLeft + 1

	if depthLeft <= 0 {
		return nil, hops, errDepthExceeded
	}

	req := dns.NewQuery(0, name, qtype, qclass, false)

	res, err := transport.Query(ctx, r.Transport, nameserver, req, r.Options)
	if err != nil {
		return nil, hops, err
	}

	if len(res.Answers) > 0 {
		return res.Answers, hops, nil
	}

	if len(res.Authorities) > 0 && len(res.Additional) > 0 {
		next := nextHops(res.Authorities, res.Additional)
		if len(next) == 0 {
			return nil, hops, nil
		}

		log.Printf("resolve[%s]: referred to %s for %s", walkID, next[0], name)

		return r.resolveDomain(ctx, walkID, name, qtype, qclass, transport.Endpoint{Host: next[0].String(), Port: r.nextHopPort()}, depthLeft-1)
	}

	return nil, hops, nil
}

// nextHops builds the list of next-hop IPv4 addresses by joining
// authority NS names against additional A records whose owner name
// matches, in iteration order of the authority/additional cross product
// (the glue-record join of RFC 1035 §6.2.1).
func nextHops(authorities, additional []dns.ResourceRecord) []net.IP {
	var hops []net.IP

	for _, authority := range authorities {
		if len(authority.DomainData) == 0 {
			continue
		}
		nsName := authority.DomainData[0]

		for _, rr := range additional {
			if rr.Type != dns.TypeA || !rr.Name.Equal(nsName) {
				continue
			}
			if ip, ok := dns.DecodeA(rr.Data); ok {
				hops = append(hops, ip)
			}
		}
	}

	return hops
}

func refused(id uint16) dns.Message {
	reply := dns.NewReply(id, dns.ResCodeRefused)
	reply.Header.RecursionAvailable = true
	return reply
}

func nameError(id uint16) dns.Message {
	reply := dns.NewReply(id, dns.ResCodeNameError)
	reply.Header.RecursionAvailable = true
	return reply
}

func serverFailure(id uint16) dns.Message {
	reply := dns.NewReply(id, dns.ResCodeServerFailure)
	reply.Header.RecursionAvailable = true
	return reply
}

var errDepthExceeded = depthExceededError{}

type depthExceededError struct{}

func (depthExceededError) Error() string { return "resolver: referral chain exceeded max depth" }
