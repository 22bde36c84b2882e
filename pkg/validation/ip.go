// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for security-critical operations.
//
// User-supplied addresses end up in outbound API paths and cache keys, so
// they are parsed and range-checked before the pipeline ever sees them.
package validation

import (
	"fmt"
	"net/netip"
	"strings"
)

// bogonPrefixes are ranges that netip's built-in predicates do not cover but
// that must never reach the threat-intelligence providers: documentation
// ranges, benchmarking, and the reserved class E block.
var bogonPrefixes = []netip.Prefix{
	netip.MustParsePrefix("192.0.2.0/24"),    // TEST-NET-1
	netip.MustParsePrefix("198.51.100.0/24"), // TEST-NET-2
	netip.MustParsePrefix("203.0.113.0/24"),  // TEST-NET-3
	netip.MustParsePrefix("198.18.0.0/15"),   // benchmarking
	netip.MustParsePrefix("240.0.0.0/4"),     // reserved
	netip.MustParsePrefix("2001:db8::/32"),   // IPv6 documentation
}

// ValidatePublicIP checks that ip is a syntactically valid, publicly
// routable IPv4 or IPv6 address.
//
// Rejected: malformed input, private networks, loopback, link-local,
// multicast, the unspecified address, and bogon ranges often abused in
// spoofed traffic. Returns an error describing the first failed check.
//
// Example:
//
//	if err := validation.ValidatePublicIP(addr); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid IP address"})
//	    return
//	}
func ValidatePublicIP(ip string) error {
	if ip == "" {
		return fmt.Errorf("ip address cannot be empty")
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("invalid ip address %q: %w", ip, err)
	}

	switch {
	case addr.IsPrivate():
		return fmt.Errorf("ip address %q is in a private range", ip)
	case addr.IsLoopback():
		return fmt.Errorf("ip address %q is a loopback address", ip)
	case addr.IsUnspecified():
		return fmt.Errorf("ip address %q is the unspecified address", ip)
	case addr.IsMulticast(), addr.IsLinkLocalMulticast():
		return fmt.Errorf("ip address %q is a multicast address", ip)
	case addr.IsLinkLocalUnicast():
		return fmt.Errorf("ip address %q is a link-local address", ip)
	}

	for _, prefix := range bogonPrefixes {
		if prefix.Contains(addr) {
			return fmt.Errorf("ip address %q is in reserved range %s", ip, prefix)
		}
	}

	return nil
}

// SanitizeIP trims whitespace and validates the address, returning the
// canonical form ready for outbound lookups and cache keys.
func SanitizeIP(ip string) (string, error) {
	trimmed := strings.TrimSpace(ip)
	if err := ValidatePublicIP(trimmed); err != nil {
		return "", err
	}
	addr, _ := netip.ParseAddr(trimmed)
	return addr.String(), nil
}
