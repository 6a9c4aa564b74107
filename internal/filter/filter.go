// Package filter checks list files against a reference set and optionally
// rewrites them without the entries the reference covers.
package filter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/p4th0r/gatelist/internal/classify"
	"github.com/p4th0r/gatelist/internal/logging"
	"github.com/p4th0r/gatelist/internal/metrics"
	"github.com/p4th0r/gatelist/internal/netaddr"
)

// ErrIO wraps every file system failure of a filtering pass.
var ErrIO = errors.New("file I/O failed")

// DefaultBatchSize is the number of distinct domains resolved per flush.
const DefaultBatchSize = 500

// pendingFactor times the batch size bounds the lines queued behind an
// open domain batch.
const pendingFactor = 4

// maxLine bounds a single list line.
const maxLine = 1024 * 1024

// Reference is the set entries are checked against. *allowlist.Set
// satisfies it.
type Reference interface {
	Match4(s netaddr.Subnet4) (netaddr.Subnet4, bool)
	Match6(s netaddr.Subnet6) (netaddr.Subnet6, bool)
	MatchDomain(name string) (string, bool)
}

// Resolver resolves a batch of names. Every input name is a key of the
// result. *dns.Resolver satisfies it.
type Resolver interface {
	ResolveEach(ctx context.Context, names []string) (map[string][]string, error)
}

// Options configures a Filter.
type Options struct {
	BatchSize int
	Parser    *netaddr.Parser // mask policy for bare list addresses; nil means host masks
	Resolver  Resolver        // nil leaves domains matched by name only
	Logger    *logging.StderrLogger
	Metrics   *metrics.Metrics
	Events    chan<- logging.Event // nil logs outcomes directly
	Progress  func(path string, fraction float64)
}

// Filter runs filtering passes. A Filter may be reused for several files
// but runs one pass at a time.
type Filter struct {
	opts Options
}

// New returns a Filter with defaults applied.
func New(opts Options) *Filter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Parser == nil {
		opts.Parser = &netaddr.Parser{}
	}
	return &Filter{opts: opts}
}

// line is a list line waiting for the domain batch it sits behind.
type line struct {
	text string
	num  int
	keep bool
}

// pass is the state of one CheckFileByAddressLists call.
type pass struct {
	*Filter
	ctx   context.Context
	path  string
	ref   Reference
	out   *bufio.Writer // nil when not rewriting
	total int
	done  int

	matched bool
	pending []line
	queued  int // domain lines in pending
	domains map[string][]int // name -> indexes into pending
	order   []string
}

// CheckFileByAddressLists reports whether any entry of the list at path is
// covered by ref. Addresses are checked by subnet containment, domains by
// name and by every address they resolve to. With applyFix, a file that had
// matches is replaced atomically by a copy without the matching lines; all
// other lines, including comments and unrecognized ones, are kept verbatim
// and in order. The original is never modified when nothing matched.
func (f *Filter) CheckFileByAddressLists(ctx context.Context, path string, ref Reference, applyFix bool) (bool, error) {
	start := time.Now()
	matched, err := f.check(ctx, path, ref, applyFix)
	switch {
	case err != nil:
		f.opts.Metrics.File("error")
	case matched:
		f.opts.Metrics.File("matched")
	default:
		f.opts.Metrics.File("clean")
	}
	if err == nil {
		f.opts.Logger.FilterDone(path, matched, matched && applyFix, time.Since(start))
	}
	return matched, err
}

func (f *Filter) check(ctx context.Context, path string, ref Reference, applyFix bool) (matched bool, err error) {
	total, err := countLines(path)
	if err != nil {
		return false, err
	}

	in, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	defer in.Close()

	p := &pass{
		Filter:  f,
		ctx:     ctx,
		path:    path,
		ref:     ref,
		total:   total,
		domains: make(map[string][]int),
	}

	var tmp *os.File
	if applyFix {
		tmp, err = createTemp(path)
		if err != nil {
			return false, err
		}
		defer func() {
			if tmp != nil {
				tmp.Close()
				os.Remove(tmp.Name())
			}
		}()
		p.out = bufio.NewWriter(tmp)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	num := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		num++
		if err := p.line(scanner.Text(), num); err != nil {
			return false, err
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
	}
	if err := p.flush(); err != nil {
		return false, err
	}

	if !applyFix || !p.matched {
		return p.matched, nil
	}
	if err := replace(tmp, p.out, path, in); err != nil {
		return true, err
	}
	tmp = nil
	return true, nil
}

// line handles one input line. While a domain batch is open every line is
// queued behind it so the output keeps the input order.
func (p *pass) line(text string, num int) error {
	token := strings.TrimSpace(text)
	if token == "" || strings.HasPrefix(token, "#") {
		return p.emit(line{text: text, num: num, keep: true})
	}

	kind := classify.Classify(token)
	p.opts.Metrics.Line(kind.String())

	switch kind {
	case classify.IPv4:
		return p.emit(line{text: text, num: num, keep: !p.checkIPv4(token, num)})
	case classify.IPv6:
		return p.emit(line{text: text, num: num, keep: !p.checkIPv6(token, num)})
	case classify.Domain:
		name, _ := classify.NormalizeDomain(token)
		if via, ok := p.ref.MatchDomain(name); ok {
			p.match(logging.EventDomainMatched, num, token, "domain", via, nil)
			return p.emit(line{text: text, num: num, keep: false})
		}
		if _, seen := p.domains[name]; !seen {
			p.order = append(p.order, name)
		}
		p.domains[name] = append(p.domains[name], len(p.pending))
		p.pending = append(p.pending, line{text: text, num: num, keep: true})
		p.queued++
		if len(p.order) >= p.opts.BatchSize || p.full() {
			return p.flush()
		}
		return nil
	default:
		p.skip(num, token, logging.ReasonUnknown)
		return p.emit(line{text: text, num: num, keep: true})
	}
}

func (p *pass) checkIPv4(token string, num int) bool {
	s, err := p.opts.Parser.ParseIPv4(token)
	if err != nil {
		p.skip(num, token, skipReason(err))
		return false
	}
	via, ok := p.ref.Match4(s)
	if ok {
		p.match(logging.EventIPMatched, num, token, "ipv4", via.String(), nil)
	}
	return ok
}

func (p *pass) checkIPv6(token string, num int) bool {
	s, err := p.opts.Parser.ParseIPv6(token)
	if err != nil {
		p.skip(num, token, skipReason(err))
		return false
	}
	via, ok := p.ref.Match6(s)
	if ok {
		p.match(logging.EventIPMatched, num, token, "ipv6", via.String(), nil)
	}
	return ok
}

func skipReason(err error) string {
	if errors.Is(err, netaddr.ErrMaskUndeterminable) {
		return logging.ReasonNoMask
	}
	return logging.ReasonParse
}

// emit writes a decided line, or queues it behind an open domain batch.
// Either way the line counts as processed.
func (p *pass) emit(l line) error {
	p.done++
	p.progress()
	if len(p.pending) > 0 {
		p.pending = append(p.pending, l)
		if p.full() {
			return p.flush()
		}
		return nil
	}
	if !l.keep || p.out == nil {
		return nil
	}
	return p.write(l.text)
}

// full reports whether the open batch holds as many lines as it may.
func (p *pass) full() bool {
	return len(p.pending) >= p.opts.BatchSize*pendingFactor
}

// flush resolves the open batch, clears the keep bit of every line whose
// domain matched and writes the surviving queued lines.
func (p *pass) flush() error {
	if len(p.pending) == 0 {
		return nil
	}

	if len(p.order) > 0 && p.opts.Resolver != nil {
		answers, err := p.opts.Resolver.ResolveEach(p.ctx, p.order)
		if err != nil {
			return fmt.Errorf("resolving domains of %s: %w", p.path, err)
		}
		for _, name := range p.order {
			idx := p.domains[name]
			addrs := answers[name]
			if len(addrs) == 0 {
				p.event(logging.Event{Type: logging.EventUnresolved, Line: p.pending[idx[0]].num, Token: name, Family: "domain"})
				continue
			}
			via, ok := p.matchAddrs(addrs)
			if !ok {
				continue
			}
			for _, i := range idx {
				p.pending[i].keep = false
			}
			p.match(logging.EventDomainMatched, p.pending[idx[0]].num, name, "domain", via, addrs)
		}
	}

	for _, l := range p.pending {
		if l.keep && p.out != nil {
			if err := p.write(l.text); err != nil {
				return err
			}
		}
	}
	p.done += p.queued
	p.queued = 0
	p.progress()

	p.pending = p.pending[:0]
	p.order = p.order[:0]
	clear(p.domains)
	return nil
}

// matchAddrs checks resolved addresses as host entries. IPv4-mapped
// answers are checked as IPv4, as on the reference side.
func (p *pass) matchAddrs(addrs []string) (string, bool) {
	for _, a := range addrs {
		addr, err := netip.ParseAddr(a)
		if err != nil {
			continue
		}
		addr = addr.Unmap()
		if v4, ok := netaddr.V4FromAddr(addr); ok {
			if via, ok := p.ref.Match4(netaddr.New(v4, 32)); ok {
				return a + " in " + via.String(), true
			}
			continue
		}
		if v6, ok := netaddr.V6FromAddr(addr); ok {
			if via, ok := p.ref.Match6(netaddr.New(v6, 128)); ok {
				return a + " in " + via.String(), true
			}
		}
	}
	return "", false
}

func (p *pass) write(text string) error {
	if _, err := p.out.WriteString(text); err != nil {
		return fmt.Errorf("%w: writing temp file for %s: %v", ErrIO, p.path, err)
	}
	if err := p.out.WriteByte('\n'); err != nil {
		return fmt.Errorf("%w: writing temp file for %s: %v", ErrIO, p.path, err)
	}
	return nil
}

func (p *pass) progress() {
	if p.opts.Progress == nil {
		return
	}
	frac := 1.0
	if p.total > 0 {
		frac = float64(p.done) / float64(p.total)
	}
	p.opts.Progress(p.path, min(max(frac, 0), 1))
}

func (p *pass) match(typ logging.EventType, num int, token, family, via string, addrs []string) {
	p.matched = true
	p.opts.Metrics.Match(family)
	p.event(logging.Event{Type: typ, Line: num, Token: token, Family: family, Via: via, Addrs: addrs})
}

func (p *pass) skip(num int, token, reason string) {
	p.opts.Metrics.Skip(reason)
	p.event(logging.Event{Type: logging.EventSkipped, Line: num, Token: token, Reason: reason})
}

func (p *pass) event(ev logging.Event) {
	ev.Timestamp = time.Now()
	ev.File = p.path
	if p.opts.Events != nil {
		p.opts.Events <- ev
		return
	}
	switch ev.Type {
	case logging.EventSkipped:
		p.opts.Logger.Warn("%s:%d: skipping %q (%s)", ev.File, ev.Line, ev.Token, ev.Reason)
	case logging.EventIPMatched, logging.EventDomainMatched:
		p.opts.Logger.Debug("%s:%d: %s matched %s", ev.File, ev.Line, ev.Token, ev.Via)
	}
}

// countLines returns the number of lines in path, counting a final
// unterminated line.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	n, last := 0, byte('\n')
	for {
		c, err := f.Read(buf)
		for _, b := range buf[:c] {
			if b == '\n' {
				n++
			}
		}
		if c > 0 {
			last = buf[c-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
		}
	}
	if last != '\n' {
		n++
	}
	return n, nil
}

// TempPattern is the glob matching rewrite files next to their list.
const TempPattern = ".*.gatelist-*.tmp"

func createTemp(path string) (*os.File, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".gatelist-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp file for %s: %v", ErrIO, path, err)
	}
	return tmp, nil
}

// replace flushes and closes tmp, gives it the mode of the original and
// renames it over path.
func replace(tmp *os.File, out *bufio.Writer, path string, orig *os.File) error {
	name := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("%w: %s %s: %v", ErrIO, op, path, err)
	}
	if err := out.Flush(); err != nil {
		return fail("writing temp file for", err)
	}
	if fi, err := orig.Stat(); err == nil {
		if err := tmp.Chmod(fi.Mode().Perm()); err != nil {
			return fail("setting mode of temp file for", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file for", err)
	}
	if err := tmp.Close(); err != nil {
		return fail("closing temp file for", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("%w: replacing %s: %v", ErrIO, path, err)
	}
	return nil
}

// StaleTemps lists rewrite files left in dir by interrupted passes.
func StaleTemps(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, TempPattern))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
