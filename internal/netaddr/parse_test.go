package netaddr

import (
	"errors"
	"testing"
)

func TestParseIPv4(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"1.2.3.4", "1.2.3.4/32", nil},
		{"10.0.0.0/8", "10.0.0.0/8", nil},
		{"0.0.0.0/0", "0.0.0.0/0", nil},
		{" 8.8.8.8 ", "8.8.8.8/32", nil},
		{"256.1.1.1", "", ErrInvalidAddress},
		{"1.2.3", "", ErrInvalidAddress},
		{"1.2.3.4/33", "", ErrInvalidPrefix},
		{"1.2.3.4/", "", ErrInvalidPrefix},
		{"1.2.3.4/-1", "", ErrInvalidPrefix},
		{"::1", "", ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIPv4(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseIPv4(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIPv4(%q): %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseIPv4(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseIPv6(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"::", "::/128", nil},
		{"2001:db8::1", "2001:db8::1/128", nil},
		{"2001:0db8:0000:0000:0000:0000:0000:0001/64", "2001:db8::1/64", nil},
		{"::ffff:192.0.2.1", "::ffff:192.0.2.1/128", nil},
		{"fe80::1%eth0", "fe80::1/128", nil},
		{"fe80::1%eth0/10", "fe80::1/10", nil},
		{"2001:db8::/129", "", ErrInvalidPrefix},
		{"2001:db8:::1", "", ErrInvalidAddress},
		{"192.0.2.1", "", ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIPv6(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseIPv6(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIPv6(%q): %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseIPv6(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

type fixedRoutes struct {
	v4 map[V4]Subnet4
	v6 map[V6]Subnet6
}

func (f fixedRoutes) LookupV4(a V4) (Subnet4, bool) { s, ok := f.v4[a]; return s, ok }
func (f fixedRoutes) LookupV6(a V6) (Subnet6, bool) { s, ok := f.v6[a]; return s, ok }

func TestParserInference(t *testing.T) {
	host := mustParse4(t, "203.0.113.9")
	wide := mustParse4(t, "198.51.0.0/12")
	wideHost := mustParse4(t, "198.51.100.1")
	routes := fixedRoutes{
		v4: map[V4]Subnet4{
			host.Address:     mustParse4(t, "203.0.113.0/24"),
			wideHost.Address: wide,
		},
		v6: map[V6]Subnet6{
			mustParse6(t, "2001:db8::5").Address: mustParse6(t, "2001:db8::/48"),
		},
	}
	p := &Parser{Routes: routes, AutoFix: true, MinPrefix4: 16, MinPrefix6: 32}

	got, err := p.ParseIPv4("203.0.113.9")
	if err != nil {
		t.Fatalf("ParseIPv4: %v", err)
	}
	if got.String() != "203.0.113.9/24" {
		t.Errorf("inferred = %s, want 203.0.113.9/24", got)
	}

	if _, err := p.ParseIPv4("198.51.100.1"); !errors.Is(err, ErrMaskUndeterminable) {
		t.Errorf("route shorter than minimum: err = %v, want ErrMaskUndeterminable", err)
	}
	if _, err := p.ParseIPv4("192.0.2.1"); !errors.Is(err, ErrMaskUndeterminable) {
		t.Errorf("no route: err = %v, want ErrMaskUndeterminable", err)
	}

	// An explicit mask never consults the routes.
	got, err = p.ParseIPv4("192.0.2.1/30")
	if err != nil || got.PrefixLen() != 30 {
		t.Errorf("explicit mask = %v, %v", got, err)
	}

	got6, err := p.ParseIPv6("2001:db8::5")
	if err != nil || got6.PrefixLen() != 48 {
		t.Errorf("ParseIPv6 inferred = %v, %v", got6, err)
	}
}

func TestParserWithoutAutoFix(t *testing.T) {
	p := &Parser{AutoFix: false}
	got, err := p.ParseIPv4("192.0.2.1")
	if err != nil || got.PrefixLen() != 32 {
		t.Errorf("ParseIPv4 = %v, %v; want /32", got, err)
	}

	p = &Parser{AutoFix: true}
	if _, err := p.ParseIPv6("2001:db8::1"); !errors.Is(err, ErrMaskUndeterminable) {
		t.Errorf("nil routes: err = %v, want ErrMaskUndeterminable", err)
	}
}
