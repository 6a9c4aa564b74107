package routes

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/osrg/gobgp/v3/pkg/packet/mrt"
)

// maxRecord bounds the body of a single MRT record; full-table RIB entries
// with many peers run to a few hundred kilobytes. Larger records are skipped.
const maxRecord = 4 << 20

// MRTDump reads TABLE_DUMP_V2 RIB records from an MRT file. Files ending
// in .gz or .bz2 are decompressed on the fly.
type MRTDump struct {
	Path string
}

func (d MRTDump) Name() string { return "mrt:" + d.Path }

func (d MRTDump) Routes(ctx context.Context, fn func(netip.Prefix) error) error {
	f, err := os.Open(d.Path)
	if err != nil {
		return fmt.Errorf("opening routing dump: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(d.Path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(d.Path, ".bz2"):
		r = bzip2.NewReader(f)
	}

	br := bufio.NewReaderSize(r, 64*1024)
	hdr := make([]byte, mrt.MRT_COMMON_HEADER_LEN)
	var body []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(br, hdr); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("reading routing dump: %w", err)
		}
		size := int64(binary.BigEndian.Uint32(hdr[8:12]))
		if size > maxRecord {
			if _, err := io.CopyN(io.Discard, br, size); err != nil {
				if err == io.EOF {
					return nil
				}
				return fmt.Errorf("reading routing dump: %w", err)
			}
			continue
		}
		if int64(cap(body)) < size {
			body = make([]byte, size)
		}
		body = body[:size]
		if _, err := io.ReadFull(br, body); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("reading routing dump: %w", err)
		}

		prefix, ok := decodeRib(hdr, body)
		if !ok {
			continue
		}
		if err := fn(prefix); err != nil {
			return err
		}
	}
}

// decodeRib extracts the prefix of a RIB record. Any other record, or one
// that fails to decode, yields false.
func decodeRib(header, body []byte) (netip.Prefix, bool) {
	hdr := &mrt.MRTHeader{}
	if err := hdr.DecodeFromBytes(header); err != nil {
		return netip.Prefix{}, false
	}
	if hdr.Type != mrt.TABLE_DUMPv2 {
		return netip.Prefix{}, false
	}
	msg, err := mrt.ParseMRTBody(hdr, body)
	if err != nil {
		return netip.Prefix{}, false
	}
	rib, ok := msg.Body.(*mrt.Rib)
	if !ok || rib.Prefix == nil {
		return netip.Prefix{}, false
	}
	prefix, err := netip.ParsePrefix(rib.Prefix.String())
	if err != nil {
		return netip.Prefix{}, false
	}
	return prefix, true
}
