package transport

import (
	"os"
	"regexp"
	"sort"
	"strconv"
)

// Endpoint is one discovered, not-yet-opened board endpoint.
type Endpoint struct {
	// Description is the raw textual serial/description the device
	// reported, used for both ordering and diagnostics.
	Description string
	// DevPath is the usbfs node to open, or empty for a TCP endpoint.
	DevPath string
	// Addr is the "host:port" to dial, or empty for a USB endpoint.
	Addr string
}

// Open opens the transport this Endpoint describes.
func (e Endpoint) Open() (Transport, error) {
	if e.Addr != "" {
		return DialTCP(e.Addr)
	}
	return OpenUSB(e.DevPath)
}

var trailingSuffix = regexp.MustCompile(`_([0-9]+)$`)

// OrderResult is the outcome of applying spec §4.1's ordering rule to a
// batch of discovered endpoints.
type OrderResult struct {
	Endpoints        []Endpoint
	UnstableOrdering bool
}

// Order sorts endpoints per spec §4.1: parse a trailing "_N" integer
// suffix from each Description and sort ascending by N. If the suffix
// is absent from any endpoint, or two endpoints share the same N, the
// whole batch falls back to lexicographic description order and the
// result is flagged unstable.
func Order(endpoints []Endpoint) OrderResult {
	type keyed struct {
		ep  Endpoint
		n   int
		has bool
	}
	keys := make([]keyed, len(endpoints))
	seen := make(map[int]int)
	stable := true

	for i, ep := range endpoints {
		m := trailingSuffix.FindStringSubmatch(ep.Description)
		if m == nil {
			stable = false
			keys[i] = keyed{ep: ep}
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			stable = false
			keys[i] = keyed{ep: ep}
			continue
		}
		seen[n]++
		keys[i] = keyed{ep: ep, n: n, has: true}
	}
	for _, count := range seen {
		if count > 1 {
			stable = false
		}
	}

	out := make([]Endpoint, len(endpoints))
	if stable {
		sort.SliceStable(keys, func(i, j int) bool { return keys[i].n < keys[j].n })
	} else {
		sort.SliceStable(keys, func(i, j int) bool { return keys[i].ep.Description < keys[j].ep.Description })
	}
	for i, k := range keys {
		out[i] = k.ep
	}
	return OrderResult{Endpoints: out, UnstableOrdering: !stable}
}

// DefaultSocketEnvVar names the environment variable carrying the
// fallback socket when no USB device appears (spec §6).
const DefaultSocketEnvVar = "HAASOSCOPE_DEFAULT_SOCKET"

// DefaultFallbackSocket is used when DefaultSocketEnvVar is unset.
const DefaultFallbackSocket = "localhost:9998"

// FallbackSocket returns the configured or default fallback TCP socket.
func FallbackSocket() string {
	if v := os.Getenv(DefaultSocketEnvVar); v != "" {
		return v
	}
	return DefaultFallbackSocket
}
