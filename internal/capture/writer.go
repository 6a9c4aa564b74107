// Package capture records resolver traffic to pcapng files.
package capture

import (
	"fmt"
	"strings"
)

// BuildSectionComment returns a comment string for the pcapng section header.
func BuildSectionComment(version, reference string, servers []string) string {
	var sb strings.Builder

	if version != "" {
		fmt.Fprintf(&sb, "gatelist %s | resolver capture\n", version)
	} else {
		fmt.Fprintf(&sb, "gatelist | resolver capture\n")
	}
	if reference != "" {
		fmt.Fprintf(&sb, "reference: %s\n", reference)
	}
	if len(servers) > 0 {
		fmt.Fprintf(&sb, "upstreams: %s\n", strings.Join(servers, ", "))
	}

	return sb.String()
}
