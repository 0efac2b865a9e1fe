package resolve

import (
	"context"
	"errors"
	"net"

	"github.com/miekg/dns"
)

// NameserverLookup resolves A records against one specific nameserver,
// bypassing the system resolver configuration. Printers that register
// themselves with a router's DHCP server are often only known to that router.
type NameserverLookup struct {
	Server string
	Client *dns.Client
}

func NewNameserverLookup(server string) *NameserverLookup {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &NameserverLookup{
		Server: server,
		Client: &dns.Client{Net: "udp"},
	}
}

// LookupHost returns the A records for host. Errors are *net.DNSError so they
// classify the same way as the system resolver's.
func (n *NameserverLookup) LookupHost(ctx context.Context, host string) ([]string, error) {

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	in, _, err := n.Client.ExchangeContext(ctx, msg, n.Server)
	if err != nil {
		var netErr net.Error
		timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
		return nil, &net.DNSError{
			Err:       err.Error(),
			Name:      host,
			Server:    n.Server,
			IsTimeout: timeout,
		}
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, &net.DNSError{Err: "no such host", Name: host, Server: n.Server, IsNotFound: true}
	default:
		return nil, &net.DNSError{Err: dns.RcodeToString[in.Rcode], Name: host, Server: n.Server}
	}

	addrs := []string{}
	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}

	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no A records", Name: host, Server: n.Server, IsNotFound: true}
	}

	return addrs, nil
}
