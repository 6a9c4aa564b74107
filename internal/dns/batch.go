package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// query is one question of a batch. Its result fields are written once,
// by the batch loop, when done flips to true.
type query struct {
	name     string
	qtype    uint16
	msg      *dns.Msg
	wire     []byte
	sent     int
	deadline time.Time
	started  bool
	viaTCP   bool
	done     bool
	addrs    []netip.Addr
	cnames   []string
	result   string
}

// queryKey identifies the response to a query, as in a UDP forwarder:
// transaction ID plus question.
type queryKey struct {
	id    uint16
	name  string
	qtype uint16
}

type inbound struct {
	from netip.AddrPort
	msg  *dns.Msg
}

type tcpResult struct {
	q    *query
	resp *dns.Msg
	err  error
}

// batch multiplexes every query of one ResolveEach call over one socket.
// A reader goroutine decodes datagrams into inbox; run owns all query
// state and is the only writer to it.
type batch struct {
	r       *Resolver
	conn    *net.UDPConn
	local   netip.AddrPort
	g       *errgroup.Group
	servers map[netip.AddrPort]struct{}

	queries []*query
	index   map[queryKey]*query
	active  []*query // started and possibly done; pruned lazily
	next    int      // next query to start
	pending int      // queries not done
	flight  int      // started and not done

	inbox   chan inbound
	tcpDone chan tcpResult
	done    chan struct{}
}

func (r *Resolver) exchange(ctx context.Context, names []string) (map[string][]string, error) {
	pc, err := net.ListenPacket("udp", r.bind)
	if err != nil {
		return nil, fmt.Errorf("%w: opening query socket: %v", ErrResolverInit, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("%w: unexpected socket type %T", ErrResolverInit, pc)
	}

	g, gctx := errgroup.WithContext(ctx)
	b := &batch{
		r:       r,
		conn:    conn,
		local:   udpAddrPort(conn.LocalAddr()),
		g:       g,
		servers: make(map[netip.AddrPort]struct{}, len(r.servers)),
		index:   make(map[queryKey]*query, 2*len(names)),
		inbox:   make(chan inbound, 64),
		done:    make(chan struct{}),
	}
	for _, s := range r.servers {
		b.servers[s] = struct{}{}
	}
	b.build(names)
	b.tcpDone = make(chan tcpResult, len(b.queries))

	g.Go(b.read)
	g.Go(func() error {
		defer conn.Close()
		return b.run(gctx)
	})
	if err := g.Wait(); err != nil {
		r.logger.Debug("DNS batch ended early: %v", err)
	}

	r.logger.Debug("DNS batch: %d names, %d queries", len(names), len(b.queries))
	return collect(b.queries), nil
}

func (b *batch) build(names []string) {
	for _, name := range names {
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			m := new(dns.Msg)
			m.SetQuestion(dns.Fqdn(name), qtype)
			m.SetEdns0(ednsBufferSize, false)
			wire, err := m.Pack()
			if err != nil {
				b.r.logger.Debug("skipping %s: %v", name, err)
				continue
			}
			q := &query{name: name, qtype: qtype, msg: m, wire: wire}
			b.queries = append(b.queries, q)
			b.index[queryKey{id: m.Id, name: strings.ToLower(m.Question[0].Name), qtype: qtype}] = q
		}
	}
	b.pending = len(b.queries)
}

func (b *batch) run(ctx context.Context) error {
	defer close(b.done)

	timer := time.NewTimer(b.r.timeout)
	defer timer.Stop()

	b.fill(time.Now())
	for b.pending > 0 {
		now := time.Now()
		b.expire(now)
		b.fill(now)
		if b.pending == 0 {
			break
		}
		timer.Reset(time.Until(b.nextDeadline(now)))

		select {
		case <-ctx.Done():
			b.abort("cancelled")
			return nil
		case in := <-b.inbox:
			b.handle(ctx, in)
		case res := <-b.tcpDone:
			b.finishTCP(res)
		case <-timer.C:
		}
	}
	return nil
}

// fill starts queued queries while the window has room.
func (b *batch) fill(now time.Time) {
	for b.next < len(b.queries) && b.flight < b.r.window {
		q := b.queries[b.next]
		b.next++
		q.started = true
		b.flight++
		b.active = append(b.active, q)
		b.send(q, now)
	}
}

func (b *batch) send(q *query, now time.Time) {
	srv := b.r.servers[q.sent%len(b.r.servers)]
	q.sent++
	q.deadline = now.Add(b.r.timeout)

	if _, err := b.conn.WriteToUDPAddrPort(q.wire, srv); err != nil {
		b.r.logger.Debug("sending %s %s to %s: %v", q.name, dns.TypeToString[q.qtype], srv, err)
		return
	}
	if b.r.tap != nil {
		b.r.tap.Packet(b.local, srv, q.wire)
	}
}

// expire retransmits overdue queries, or gives up on them once their
// attempts are spent.
func (b *batch) expire(now time.Time) {
	for _, q := range b.active {
		if q.done || now.Before(q.deadline) {
			continue
		}
		if q.viaTCP || q.sent >= b.r.attempts {
			b.complete(q, nil, "timeout")
			continue
		}
		b.send(q, now)
	}
}

// nextDeadline returns the earliest deadline among in-flight queries and
// drops finished queries from the active list.
func (b *batch) nextDeadline(now time.Time) time.Time {
	next := now.Add(b.r.timeout)
	live := b.active[:0]
	for _, q := range b.active {
		if q.done {
			continue
		}
		live = append(live, q)
		if q.deadline.Before(next) {
			next = q.deadline
		}
	}
	for i := len(live); i < len(b.active); i++ {
		b.active[i] = nil
	}
	b.active = live
	return next
}

func (b *batch) handle(ctx context.Context, in inbound) {
	if _, ok := b.servers[in.from]; !ok {
		b.r.logger.Debug("ignoring DNS response from unexpected source %s", in.from)
		return
	}
	if len(in.msg.Question) != 1 {
		return
	}
	qn := in.msg.Question[0]
	q := b.index[queryKey{id: in.msg.Id, name: strings.ToLower(qn.Name), qtype: qn.Qtype}]
	if q == nil || q.done || q.viaTCP {
		return // late retransmission answer or stray packet
	}

	if in.msg.Truncated {
		q.viaTCP = true
		q.deadline = time.Now().Add(b.r.timeout)
		msg := q.msg.Copy()
		server := in.from.String()
		b.g.Go(func() error {
			resp, _, err := b.r.tcp.ExchangeContext(ctx, msg, server)
			b.tcpDone <- tcpResult{q: q, resp: resp, err: err}
			return nil
		})
		return
	}

	b.complete(q, in.msg, rcodeResult(in.msg.Rcode))
}

func (b *batch) finishTCP(res tcpResult) {
	if res.q.done {
		return
	}
	if res.err != nil {
		b.r.logger.Debug("TCP retry for %s: %v", res.q.name, res.err)
		b.complete(res.q, nil, "error")
		return
	}
	b.complete(res.q, res.resp, rcodeResult(res.resp.Rcode))
}

func (b *batch) complete(q *query, resp *dns.Msg, result string) {
	q.done = true
	q.result = result
	b.pending--
	if q.started {
		b.flight--
	}
	if resp != nil && resp.Rcode == dns.RcodeSuccess {
		q.addrs, q.cnames = extract(resp)
	}

	qtype := dns.TypeToString[q.qtype]
	b.r.metrics.Query(qtype, result)
	if b.r.tracker != nil {
		b.r.tracker.RecordResolution(q.name, qtype, q.addrs, q.cnames, result)
	}
}

func (b *batch) abort(result string) {
	for _, q := range b.queries {
		if !q.done {
			b.complete(q, nil, result)
		}
	}
}

// read decodes datagrams until the socket is closed.
func (b *batch) read() error {
	buf := make([]byte, dns.MaxMsgSize)
	for {
		n, from, err := b.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-b.done:
				return nil
			default:
			}
			return fmt.Errorf("reading DNS responses: %w", err)
		}
		from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
		if b.r.tap != nil {
			b.r.tap.Packet(from, b.local, buf[:n])
		}

		msg := new(dns.Msg)
		if err := msg.Unpack(buf[:n]); err != nil {
			continue
		}
		select {
		case b.inbox <- inbound{from: from, msg: msg}:
		case <-b.done:
			return nil
		}
	}
}

func rcodeResult(rcode int) string {
	switch rcode {
	case dns.RcodeSuccess:
		return ResultOK
	case dns.RcodeNameError:
		return "nxdomain"
	case dns.RcodeServerFailure:
		return "servfail"
	case dns.RcodeRefused:
		return "refused"
	}
	return strings.ToLower(dns.RcodeToString[rcode])
}
