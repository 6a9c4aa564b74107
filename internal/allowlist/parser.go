package allowlist

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/p4th0r/gatelist/internal/classify"
	"github.com/p4th0r/gatelist/internal/logging"
	"github.com/p4th0r/gatelist/internal/netaddr"
)

// ErrInvalidEntry is returned for text that is neither a domain, a
// wildcard, an address nor a subnet.
var ErrInvalidEntry = errors.New("invalid reference entry")

// Parse processes an inline comma-separated list and a reference file and
// returns a unified list of entries. Either or both can be provided.
// Inline entries are typed by hand, so a bad one is an error. File lines
// that cannot be parsed are reported through logger and skipped.
func Parse(inline, path string, logger *logging.StderrLogger) ([]Entry, error) {
	var entries []Entry

	if inline != "" {
		for _, raw := range strings.Split(inline, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			entry, err := parseEntry(raw)
			if err != nil {
				return nil, fmt.Errorf("parsing reference entry %q: %w", raw, err)
			}
			entries = append(entries, entry)
		}
	}

	if path != "" {
		fileEntries, err := parseFile(path, logger)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	return entries, nil
}

// parseFile reads a reference file and parses each line.
func parseFile(path string, logger *logging.StderrLogger) ([]Entry, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference file %q: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseEntry(line)
		if err != nil {
			logger.Warn("%s line %d: skipping %q: %v", path, lineNum, line, err)
			continue
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading reference file %q: %w", path, err)
	}

	return entries, nil
}

// parseEntry classifies and parses a single reference entry. Bare
// addresses are host entries; reference masks are never inferred.
func parseEntry(raw string) (Entry, error) {
	raw = strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(raw, "*."); ok {
		domain, ok := classify.NormalizeDomain(rest)
		if !ok {
			return Entry{}, fmt.Errorf("%w: bad wildcard domain %q", ErrInvalidEntry, rest)
		}
		return Entry{
			Type:     EntryWildcard,
			Raw:      raw,
			Domain:   domain,
			Wildcard: "." + domain,
		}, nil
	}

	switch classify.Classify(raw) {
	case classify.IPv4:
		s, err := netaddr.ParseIPv4(raw)
		if err != nil {
			return Entry{}, err
		}
		e := Entry{Type: EntryIPv4, Raw: raw, Subnet4: s}
		if strings.Contains(raw, "/") {
			e.Type = EntryCIDR
		}
		return e, nil
	case classify.IPv6:
		s, err := netaddr.ParseIPv6(raw)
		if err != nil {
			return Entry{}, err
		}
		e := Entry{Type: EntryIPv6, Raw: raw, V6: true, Subnet6: s}
		if strings.Contains(raw, "/") {
			e.Type = EntryCIDR
		}
		return e, nil
	case classify.Domain:
		domain, _ := classify.NormalizeDomain(raw)
		return Entry{Type: EntryDomain, Raw: raw, Domain: domain}, nil
	}
	if raw == "" {
		return Entry{}, fmt.Errorf("%w: empty entry", ErrInvalidEntry)
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrInvalidEntry, raw)
}
