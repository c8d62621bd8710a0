package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/brutella/dnssd"
)

// ServiceType is the mDNS/Bonjour service boards bridged onto the lab
// network advertise themselves as, for the case where a bridge exposes
// several boards over TCP instead of direct USB attachment (spec §6).
const ServiceType = "_haasoscope._tcp.local."

// DiscoverDNSSD browses for ServiceType for the given duration and
// returns a TCP Endpoint per instance found, in the order the browse
// reported them. The result is not sorted by any "_N" suffix of the
// advertised names; Order does that separately.
func DiscoverDNSSD(ctx context.Context, browseFor time.Duration) ([]Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, browseFor)
	defer cancel()

	var found []Endpoint
	add := func(e dnssd.BrowseEntry) {
		if len(e.IPs) == 0 {
			return
		}
		addr := net.JoinHostPort(e.IPs[0].String(), strconv.Itoa(e.Port))
		found = append(found, Endpoint{Description: e.Name, Addr: addr})
	}
	remove := func(dnssd.BrowseEntry) {}

	if err := dnssd.LookupType(ctx, ServiceType, add, remove); err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("dnssd browse %s: %w", ServiceType, err)
	}
	return found, nil
}
