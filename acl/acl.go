// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

// Package acl implements client-source access control for the resolver:
// which IPs may send it queries at all. Distinct from the recursion
// policy in package resolver, which decides whether an accepted query
// gets answered iteratively.
package acl

import (
	"bufio"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ACL represents an access control list with allow and deny rules.
type ACL struct {
	Allow []net.IPNet
	Deny  []net.IPNet
}

// LoadACL loads an ACL from a file. Lines are CIDRs or bare IPs, one per
// line, grouped under "allow:"/"deny:" directives (default: allow).
func LoadACL(filename string) (*ACL, error) {
	acl := &ACL{
		Allow: make([]net.IPNet, 0),
		Deny:  make([]net.IPNet, 0),
	}

	if filename == "" {
		return acl, nil
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	mode := "allow"

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "allow:") {
			mode = "allow"
			continue
		}
		if strings.HasPrefix(line, "deny:") {
			mode = "deny"
			continue
		}

		ipnet, ok := parseRule(line)
		if !ok {
			slog.Warn("acl: invalid IP/CIDR", "line", lineNum, "value", line)
			continue
		}

		if mode == "allow" {
			acl.Allow = append(acl.Allow, ipnet)
		} else {
			acl.Deny = append(acl.Deny, ipnet)
		}
	}

	return acl, scanner.Err()
}

// FromRules builds an ACL from inline allow/deny rule lists, as loaded
// from a config's acl_rules section.
func FromRules(allow, deny []string) (*ACL, error) {
	acl := &ACL{
		Allow: make([]net.IPNet, 0),
		Deny:  make([]net.IPNet, 0),
	}

	for i, rule := range allow {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		ipnet, ok := parseRule(rule)
		if !ok {
			slog.Warn("allow rule: invalid IP/CIDR", "index", i, "value", rule)
			continue
		}
		acl.Allow = append(acl.Allow, ipnet)
	}

	for i, rule := range deny {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		ipnet, ok := parseRule(rule)
		if !ok {
			slog.Warn("deny rule: invalid IP/CIDR", "index", i, "value", rule)
			continue
		}
		acl.Deny = append(acl.Deny, ipnet)
	}

	return acl, nil
}

// parseRule accepts either a CIDR or a bare IP, treating a bare IP as a
// /32 (v4) or /128 (v6) host route.
func parseRule(rule string) (net.IPNet, bool) {
	if _, ipnet, err := net.ParseCIDR(rule); err == nil {
		return *ipnet, true
	}

	ip := net.ParseIP(rule)
	if ip == nil {
		return net.IPNet{}, false
	}
	if ip4 := ip.To4(); ip4 != nil {
		return net.IPNet{IP: ip4, Mask: net.CIDRMask(32, 32)}, true
	}
	return net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, true
}

// AllowQuery decides whether a client at ip may query this resolver.
// Deny rules win over allow rules; an empty ACL allows everything; a
// non-empty allow list makes the ACL default-deny for anything not
// matched.
func (a *ACL) AllowQuery(ip net.IP) bool {
	if len(a.Allow) == 0 && len(a.Deny) == 0 {
		return true
	}

	for _, deny := range a.Deny {
		if deny.Contains(ip) {
			return false
		}
	}

	if len(a.Allow) > 0 {
		for _, allow := range a.Allow {
			if allow.Contains(ip) {
				return true
			}
		}
		return false
	}

	return true
}
