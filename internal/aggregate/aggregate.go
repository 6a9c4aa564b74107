// Package aggregate merges list files into one, collapsing prefixes that a
// broader prefix of the merged set already covers.
package aggregate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/gaissmai/bart"
	"golang.org/x/sync/errgroup"

	"github.com/p4th0r/gatelist/internal/classify"
	"github.com/p4th0r/gatelist/internal/logging"
	"github.com/p4th0r/gatelist/internal/netaddr"
)

// List is the parsed content of a list file, in order of appearance.
type List struct {
	Path     string
	Prefixes []netip.Prefix // masked; bare addresses are host prefixes
	Domains  []string       // normalized
	Skipped  int
}

// ReadList parses the list at path. Comments and blank lines are ignored;
// unrecognized lines are counted and reported through logger.
func ReadList(path string, logger *logging.StderrLogger) (List, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	f, err := os.Open(path)
	if err != nil {
		return List{}, fmt.Errorf("opening list %q: %w", path, err)
	}
	defer f.Close()

	l := List{Path: path}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		token := strings.TrimSpace(scanner.Text())
		if token == "" || strings.HasPrefix(token, "#") {
			continue
		}
		if err := l.add(token); err != nil {
			l.Skipped++
			logger.Debug("%s:%d: skipping %q: %v", path, lineNum, token, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return List{}, fmt.Errorf("reading list %q: %w", path, err)
	}
	return l, nil
}

func (l *List) add(token string) error {
	switch classify.Classify(token) {
	case classify.IPv4:
		s, err := netaddr.ParseIPv4(token)
		if err != nil {
			return err
		}
		l.Prefixes = append(l.Prefixes, s.Prefix())
	case classify.IPv6:
		s, err := netaddr.ParseIPv6(token)
		if err != nil {
			return err
		}
		l.Prefixes = append(l.Prefixes, s.Prefix())
	case classify.Domain:
		name, _ := classify.NormalizeDomain(token)
		l.Domains = append(l.Domains, name)
	default:
		return fmt.Errorf("unrecognized entry")
	}
	return nil
}

// ReadAll reads every path concurrently. Results keep the order of paths.
func ReadAll(ctx context.Context, paths []string, logger *logging.StderrLogger) ([]List, error) {
	lists := make([]List, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := ReadList(path, logger)
			if err != nil {
				return err
			}
			lists[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

// Merge combines lists. Duplicates and prefixes covered by a shorter
// prefix of any input are dropped; the rest keep the order in which they
// first appear.
func Merge(lists ...List) List {
	var table bart.Table[struct{}]
	for _, l := range lists {
		for _, p := range l.Prefixes {
			table.Insert(p, struct{}{})
		}
	}

	out := List{}
	seenPfx := make(map[netip.Prefix]struct{})
	seenName := make(map[string]struct{})
	for _, l := range lists {
		out.Skipped += l.Skipped
		for _, p := range l.Prefixes {
			if _, dup := seenPfx[p]; dup || covered(&table, p) {
				continue
			}
			seenPfx[p] = struct{}{}
			out.Prefixes = append(out.Prefixes, p)
		}
		for _, name := range l.Domains {
			if _, dup := seenName[name]; dup {
				continue
			}
			seenName[name] = struct{}{}
			out.Domains = append(out.Domains, name)
		}
	}
	return out
}

// covered reports whether a strictly shorter prefix of table contains p.
func covered(table *bart.Table[struct{}], p netip.Prefix) bool {
	if p.Bits() == 0 {
		return false
	}
	parent := netip.PrefixFrom(p.Addr(), p.Bits()-1).Masked()
	_, ok := table.LookupPrefix(parent)
	return ok
}

// WriteTo writes one entry per line: prefixes first, host prefixes as bare
// addresses, then domains.
func (l List) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, p := range l.Prefixes {
		text := p.String()
		if p.IsSingleIP() {
			text = p.Addr().String()
		}
		c, err := bw.WriteString(text + "\n")
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	for _, name := range l.Domains {
		c, err := bw.WriteString(name + "\n")
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Summary returns "N prefixes, N domains".
func (l List) Summary() string {
	return fmt.Sprintf("%d prefixes, %d domains", len(l.Prefixes), len(l.Domains))
}
