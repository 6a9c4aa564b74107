package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		token string
		want  Type
	}{
		// IPv4
		{"1.2.3.4", IPv4},
		{"10.0.0.0/8", IPv4},
		{"255.255.255.255/32", IPv4},
		{"0.0.0.0/0", IPv4},
		{"  192.0.2.1  ", IPv4},
		{"999.999.999.999", Unknown},
		{"1.2.3.4/33", Unknown},
		{"1.2.3", Unknown},
		{"01.2.3.4", Unknown},

		// IPv6
		{"::", IPv6},
		{"::1", IPv6},
		{"2001:db8::1", IPv6},
		{"2001:0db8:0000:0000:0000:ff00:0042:8329", IPv6},
		{"2001:db8::/32", IPv6},
		{"::ffff:192.0.2.1", IPv6},
		{"64:ff9b::192.0.2.33", IPv6},
		{"fe80::1%eth0", IPv6},
		{"fe80::1%eth0/64", IPv6},
		{"2001:db8::/129", Unknown},
		{"2001:db8:::1", Unknown},
		{"1:2:3:4:5:6:7:8:9", Unknown},

		// Domains
		{"example.com", Domain},
		{"Example.COM.", Domain},
		{"sub-1.example.co.uk", Domain},
		{"xn--80ak6aa92e.com", Domain},
		{"пример.рф", Domain},
		{"localhost", Domain},
		{"example", Unknown},
		{"-bad.example.com", Unknown},
		{"bad-.example.com", Unknown},
		{"example.c", Unknown},
		{"example.123", Unknown},
		{"under_score.example.com", Unknown},

		// Everything else
		{"", Unknown},
		{"# comment", Unknown},
		{"http://example.com", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			if got := Classify(tt.token); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.token, got, tt.want)
			}
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Example.COM.", "example.com", true},
		{"пример.рф", "xn--e1afmkfd.xn--p1ai", true},
		{"LOCALHOST", "localhost", true},
		{"not a domain", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeDomain(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeDomain(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	if IPv4.String() != "ipv4" || Unknown.String() != "unknown" {
		t.Error("unexpected Type.String output")
	}
}
