// Package logging provides output formatting and event aggregation for gatelist.
package logging

import "time"

// EventType identifies the outcome recorded for a list entry.
type EventType int

const (
	// EventIPMatched is an address entry contained in the reference set.
	EventIPMatched EventType = iota
	// EventDomainMatched is a domain whose name or resolved address is in the reference set.
	EventDomainMatched
	// EventSkipped is an entry that could not be checked (unknown token, bad mask).
	EventSkipped
	// EventUnresolved is a domain that resolved to no addresses.
	EventUnresolved
)

// Skip reasons carried in Event.Reason.
const (
	ReasonUnknown   = "unknown"
	ReasonParse     = "parse"
	ReasonNoMask    = "no-mask"
	ReasonNoAddress = "no-address"
)

// Event is a single list entry outcome during a filtering run.
type Event struct {
	Timestamp time.Time
	Type      EventType
	File      string
	Line      int
	Token     string
	Family    string   // "ipv4", "ipv6", "domain"
	Via       string   // reference subnet or domain that matched
	Reason    string   // skip reason
	Addrs     []string // resolved addresses of a domain entry
}

// IsMatch returns true if the event removed an entry.
func (e *Event) IsMatch() bool {
	return e.Type == EventIPMatched || e.Type == EventDomainMatched
}
