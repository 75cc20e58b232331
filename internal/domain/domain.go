// Package domain normalizes host names used as cache and registry keys.
package domain

import (
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// compoundTLDs lists multi-label public suffixes where the base domain keeps
// three labels instead of two (foo.example.co.uk -> example.co.uk).
var compoundTLDs = map[string]bool{
	"co.uk":  true,
	"com.au": true,
	"co.jp":  true,
	"co.in":  true,
	"com.br": true,
}

// Normalize canonicalizes a host name for use as a cache key: lowercase,
// port and leading "www." stripped, trailing dot removed, and
// internationalized names converted to their ASCII (punycode) form. Invalid
// IDN input falls back to the lowercased string rather than failing the
// lookup.
func Normalize(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if hp, _, err := net.SplitHostPort(h); err == nil {
		h = hp
	}
	h = strings.TrimSuffix(h, ".")
	h = strings.TrimPrefix(h, "www.")

	if ascii, err := idna.Lookup.ToASCII(h); err == nil && ascii != "" {
		h = ascii
	}
	return h
}

// Base derives the registrable base domain from a normalized host:
// the last two labels, or the last three when the suffix is a known
// compound TLD (mobile.twitter.com -> twitter.com, blog.example.co.uk ->
// example.co.uk). Hosts with fewer labels are returned unchanged.
func Base(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	suffix := strings.Join(labels[len(labels)-2:], ".")
	keep := 2
	if compoundTLDs[suffix] {
		keep = 3
	}
	if len(labels) <= keep {
		return host
	}
	return strings.Join(labels[len(labels)-keep:], ".")
}
