package allowlist

import "strings"

// DomainSet matches names against exact domains and "*.suffix" wildcards.
// A wildcard matches any subdomain but not the base name itself.
type DomainSet struct {
	exact     map[string]struct{}
	wildcards []string // ".example.com"
}

// NewDomainSet builds a set from normalized exact names and wildcard suffixes.
func NewDomainSet(exact []string, wildcards []string) *DomainSet {
	d := &DomainSet{exact: make(map[string]struct{}, len(exact))}
	for _, name := range exact {
		d.exact[name] = struct{}{}
	}
	d.wildcards = append(d.wildcards, wildcards...)
	return d
}

// Match returns the rule that matches name, or false.
func (d *DomainSet) Match(name string) (string, bool) {
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	if name == "" {
		return "", false
	}
	if _, ok := d.exact[name]; ok {
		return name, true
	}
	for _, suffix := range d.wildcards {
		if strings.HasSuffix(name, suffix) {
			return "*" + suffix, true
		}
	}
	return "", false
}

// Len returns the number of exact names and wildcards.
func (d *DomainSet) Len() int { return len(d.exact) + len(d.wildcards) }
