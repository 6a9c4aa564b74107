// Package classify decides whether a list token is an IPv4 literal, an
// IPv6 literal, a domain name, or none of these.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// Type is the kind of a list token.
type Type int

const (
	Unknown Type = iota // not an address or domain
	IPv4                // dotted quad, optional /0-32
	IPv6                // colon-hextet, optional %zone and /0-128
	Domain              // hostname or localhost
)

func (t Type) String() string {
	switch t {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	case Domain:
		return "domain"
	default:
		return "unknown"
	}
}

const (
	octet = `(?:25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])`
	quad  = octet + `(?:\.` + octet + `){3}`
	h16   = `[0-9a-fA-F]{1,4}`
)

var (
	ipv4Re = regexp.MustCompile(`^` + quad + `(?:/(?:3[0-2]|[12]?[0-9]))?$`)

	ipv6Re = regexp.MustCompile(`^(?:` +
		`(?:` + h16 + `:){7}` + h16 + `|` +
		`(?:` + h16 + `:){1,7}:|` +
		`(?:` + h16 + `:){1,6}:` + h16 + `|` +
		`(?:` + h16 + `:){1,5}(?::` + h16 + `){1,2}|` +
		`(?:` + h16 + `:){1,4}(?::` + h16 + `){1,3}|` +
		`(?:` + h16 + `:){1,3}(?::` + h16 + `){1,4}|` +
		`(?:` + h16 + `:){1,2}(?::` + h16 + `){1,5}|` +
		h16 + `:(?::` + h16 + `){1,6}|` +
		`:(?:(?::` + h16 + `){1,7}|:)|` +
		`(?:` + h16 + `:){6}` + quad + `|` +
		`::(?:[fF]{4}(?::0{1,4})?:)?` + quad + `|` +
		`(?:` + h16 + `:){1,5}:` + quad +
		`)(?:%[0-9A-Za-z._~-]+)?(?:/(?:12[0-8]|1[01][0-9]|[1-9]?[0-9]))?$`)

	domainRe = regexp.MustCompile(`^(?i:(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:[a-z]{2,63}|xn--[a-z0-9-]{1,59}))\.?$`)
)

// Classify returns the type of token. Checks run in a fixed order: IPv4,
// IPv6, then domain (or the literal localhost). Surrounding whitespace is
// ignored and internationalized names are checked in their ASCII form.
func Classify(token string) Type {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return Unknown
	case ipv4Re.MatchString(token):
		return IPv4
	case ipv6Re.MatchString(token):
		return IPv6
	}
	if _, ok := NormalizeDomain(token); ok {
		return Domain
	}
	return Unknown
}

// NormalizeDomain lowercases name, strips a trailing dot and converts
// Unicode labels to punycode. ok is false when the result is not a valid
// domain.
func NormalizeDomain(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !utf8.ValidString(name) {
		return "", false
	}
	if !isASCII(name) {
		ascii, err := idna.Lookup.ToASCII(name)
		if err != nil {
			return "", false
		}
		name = ascii
	}
	name = strings.TrimSuffix(name, ".")
	if name == "localhost" {
		return name, true
	}
	if len(name) > 253 || !domainRe.MatchString(name) {
		return "", false
	}
	return name, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
