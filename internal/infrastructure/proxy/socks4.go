package proxy

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const (
	socks4Version   = 0x04
	socks4Connect   = 0x01
	socks4Granted   = 0x5a
	socks4ReplySize = 8
)

// socks4Dialer speaks SOCKS4a, sending hostnames to the proxy for resolution
func (p *Proxy) socks4Dialer(timeout time.Duration) ContextDialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", portStr)
		}

		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", p.Addr())
		if err != nil {
			return nil, err
		}

		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		} else if timeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(timeout))
		}

		if err := socks4Handshake(conn, host, port, p.Username); err != nil {
			conn.Close()
			return nil, err
		}

		_ = conn.SetDeadline(time.Time{})
		return conn, nil
	}
}

func socks4Handshake(conn net.Conn, host string, port int, userID string) error {
	req := []byte{socks4Version, socks4Connect, 0, 0}
	binary.BigEndian.PutUint16(req[2:], uint16(port))

	ip := net.ParseIP(host).To4()
	if ip != nil {
		req = append(req, ip...)
	} else {
		req = append(req, 0, 0, 0, 1)
	}

	req = append(req, userID...)
	req = append(req, 0)
	if ip == nil {
		req = append(req, host...)
		req = append(req, 0)
	}

	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("socks4 request: %w", err)
	}

	reply := make([]byte, socks4ReplySize)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return fmt.Errorf("socks4 reply: %w", err)
	}
	if reply[1] != socks4Granted {
		return fmt.Errorf("socks4 request rejected with code 0x%02x", reply[1])
	}

	return nil
}
