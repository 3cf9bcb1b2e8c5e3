package probe

import (
	"context"
	"log/slog"
	"net"
	"os"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// icmpFallbackPort is the TCP port used when ICMP sockets are unavailable.
const icmpFallbackPort = 80

// probeICMP sends one ICMP echo over an unprivileged datagram socket and
// waits for the reply. ICMP reports round-trip only — no phase breakdown.
// When the socket cannot be opened (no privileges, no ping_group_range),
// the probe falls back to a TCP connect, matching the address's port 80.
func (p *Prober) probeICMP(ctx context.Context, host string) attempt {
	start := p.now()

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		if err == nil {
			err = &net.DNSError{Err: "no IPv4 address", Name: host}
		}
		return attempt{kind: classify(err)}
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		slog.Debug("probe: icmp socket unavailable, falling back to tcp",
			"host", host, "err", err)
		return p.probeTCP(ctx, host, icmpFallbackPort)
	}
	defer conn.Close()

	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  seq,
			Data: []byte("netwatch-probe"),
		},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return attempt{kind: ErrNetwork}
	}

	deadline, ok := ctx.Deadline()
	if ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.WriteTo(wb, &net.UDPAddr{IP: ips[0]}); err != nil {
		return attempt{kind: classify(err)}
	}

	rb := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			return attempt{kind: classify(err)}
		}
		m, err := icmp.ParseMessage(ipv4.ICMPTypeEchoReply.Protocol(), rb[:n])
		if err != nil {
			continue
		}
		echo, isEcho := m.Body.(*icmp.Echo)
		if m.Type != ipv4.ICMPTypeEchoReply || !isEcho || echo.Seq != seq {
			// Reply for a different probe on the shared socket; keep reading.
			continue
		}
		return attempt{ok: true, rtt: p.now().Sub(start)}
	}
}
