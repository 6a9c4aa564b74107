package dns

import (
	"net/netip"
	"sync"
	"time"
)

// ResultOK is the result of a query answered with NOERROR.
const ResultOK = "ok"

// Resolution records a single DNS query and its result.
type Resolution struct {
	Timestamp time.Time
	Domain    string       // normalized (lowercase, no trailing dot)
	QueryType string       // "A" or "AAAA"
	Addrs     []netip.Addr // terminal A/AAAA records
	CNAMEs    []string     // CNAME targets in the answer (for logging only)
	Result    string       // "ok", "nxdomain", "servfail", "timeout", ...
}

// Tracker maintains an in-memory record of all resolutions during a run.
// It is safe for concurrent use.
type Tracker struct {
	mu          sync.RWMutex
	resolutions []Resolution
}

// NewTracker creates a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{resolutions: make([]Resolution, 0)}
}

// RecordResolution appends a resolution to the log.
func (t *Tracker) RecordResolution(domain, queryType string, addrs []netip.Addr, cnames []string, result string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resolutions = append(t.resolutions, Resolution{
		Timestamp: time.Now(),
		Domain:    domain,
		QueryType: queryType,
		Addrs:     addrs,
		CNAMEs:    cnames,
		Result:    result,
	})
}

// GetAllResolutions returns a copy of the full resolution log.
func (t *Tracker) GetAllResolutions() []Resolution {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Resolution, len(t.resolutions))
	copy(result, t.resolutions)
	return result
}

// GetStats returns summary statistics for the run.
func (t *Tracker) GetStats() (totalQueries, failedQueries, uniqueDomains int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	totalQueries = len(t.resolutions)
	domains := make(map[string]struct{})
	for _, r := range t.resolutions {
		if r.Result != ResultOK {
			failedQueries++
		}
		domains[r.Domain] = struct{}{}
	}
	uniqueDomains = len(domains)
	return
}
