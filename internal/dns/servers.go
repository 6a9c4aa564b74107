package dns

import (
	"net"

	"github.com/miekg/dns"
)

// DefaultServer is used when no upstream is configured and the system
// resolver configuration is unreadable.
const DefaultServer = "1.1.1.1:53"

// SystemServers returns the nameservers of a resolv.conf file as
// "ip:port" strings, or nil if the file cannot be read.
func SystemServers(path string) []string {
	cfg, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers
}
