// Package announce advertises the optional remote-control TCP port
// over mDNS/DNS-SD, so a companion app on the same network can find a
// running instance without the player typing in an IP address
// (SPEC_FULL.md §12). It is adapted directly from the teacher's
// src/dns_sd.go, which does the same thing for Dire Wolf's KISS TCP
// port using the same library.
package announce

import (
	"context"
	"os"
	"strings"

	"github.com/brutella/dnssd"
)

// ServiceType is the DNS-SD service type this instance registers as.
const ServiceType = "_scratchd-rc._tcp"

// DefaultName returns "scratchd on <hostname>", or just "scratchd" if
// the hostname can't be read, mirroring dns_sd_default_service_name's
// fallback.
func DefaultName() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "scratchd"
	}
	return nameForHostname(hostname)
}

// nameForHostname strips any FQDN domain suffix, since some systems
// report os.Hostname() as "box.lan" rather than "box".
func nameForHostname(hostname string) string {
	hostname, _, _ = strings.Cut(hostname, ".")
	return "scratchd on " + hostname
}

// Announcer holds the running mDNS responder so it can be shut down
// alongside the rest of the rig.
type Announcer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start registers name (or DefaultName() if empty) advertising port and
// begins responding to mDNS queries in the background. The returned
// Announcer's Stop should be called on shutdown.
func Start(name string, port int) (*Announcer, error) {
	if name == "" {
		name = DefaultName()
	}

	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}
	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, err
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return nil, err
	}
	if _, err := rp.Add(sv); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Announcer{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(a.done)
		_ = rp.Respond(ctx)
	}()
	return a, nil
}

// Stop cancels the responder and waits for its goroutine to exit.
func (a *Announcer) Stop() {
	a.cancel()
	<-a.done
}
