package proxy

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"
	xproxy "golang.org/x/net/proxy"

	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

// Scheme is a supported proxy protocol
type Scheme string

const (
	SchemeHTTP   Scheme = "http"
	SchemeHTTPS  Scheme = "https"
	SchemeSOCKS4 Scheme = "socks4"
	SchemeSOCKS5 Scheme = "socks5"
)

// ContextDialFunc dials addr honouring ctx
type ContextDialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Proxy is a parsed proxy URI
type Proxy struct {
	Scheme   Scheme
	Host     string
	Port     int
	Username string
	Password string
}

// Parse validates the format of a proxy URI: scheme://[user:pass@]host:port.
// It performs no network access.
func Parse(raw string) (*Proxy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, pkgerrors.NewValidationError("proxy is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, pkgerrors.NewValidationErrorf("invalid proxy URI: %v", err)
	}

	scheme := Scheme(strings.ToLower(u.Scheme))
	switch scheme {
	case SchemeHTTP, SchemeHTTPS, SchemeSOCKS4, SchemeSOCKS5:
	default:
		return nil, pkgerrors.NewValidationErrorf("unsupported proxy scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, pkgerrors.NewValidationError("proxy host is required")
	}

	portStr := u.Port()
	if portStr == "" {
		return nil, pkgerrors.NewValidationError("proxy port is required")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, pkgerrors.NewValidationErrorf("invalid proxy port %q", portStr)
	}

	if u.Path != "" && u.Path != "/" {
		return nil, pkgerrors.NewValidationError("proxy URI must not contain a path")
	}

	p := &Proxy{Scheme: scheme, Host: host, Port: port}
	if u.User != nil {
		p.Username = u.User.Username()
		p.Password, _ = u.User.Password()
		if p.Username == "" {
			return nil, pkgerrors.NewValidationError("proxy username is empty")
		}
	}

	return p, nil
}

// Validate reports whether raw is a well formed proxy URI
func Validate(raw string) error {
	_, err := Parse(raw)
	return err
}

// Addr returns host:port
func (p *Proxy) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// String returns the URI with the password masked
func (p *Proxy) String() string {
	if p.Username == "" {
		return fmt.Sprintf("%s://%s", p.Scheme, p.Addr())
	}
	return fmt.Sprintf("%s://%s:****@%s", p.Scheme, p.Username, p.Addr())
}

func (p *Proxy) userinfo() string {
	if p.Username == "" {
		return ""
	}
	if p.Password == "" {
		return p.Username + "@"
	}
	return p.Username + ":" + p.Password + "@"
}

// DialFunc returns a fasthttp dialer tunnelling through the proxy
func (p *Proxy) DialFunc(timeout time.Duration) fasthttp.DialFunc {
	switch p.Scheme {
	case SchemeSOCKS5:
		return fasthttpproxy.FasthttpSocksDialer("socks5://" + p.userinfo() + p.Addr())
	case SchemeSOCKS4:
		dial := p.socks4Dialer(timeout)
		return func(addr string) (net.Conn, error) {
			return dial(context.Background(), "tcp", addr)
		}
	default:
		return fasthttpproxy.FasthttpHTTPDialerTimeout(p.userinfo()+p.Addr(), timeout)
	}
}

// ContextDialer returns a context aware dialer for raw TCP protocols such as MTProto
func (p *Proxy) ContextDialer(timeout time.Duration) (ContextDialFunc, error) {
	switch p.Scheme {
	case SchemeSOCKS5:
		var auth *xproxy.Auth
		if p.Username != "" {
			auth = &xproxy.Auth{User: p.Username, Password: p.Password}
		}
		d, err := xproxy.SOCKS5("tcp", p.Addr(), auth, &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, pkgerrors.NewValidationErrorf("invalid socks5 proxy: %v", err)
		}
		if cd, ok := d.(xproxy.ContextDialer); ok {
			return cd.DialContext, nil
		}
		return func(ctx context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(network, addr)
		}, nil

	case SchemeSOCKS4:
		return p.socks4Dialer(timeout), nil

	default:
		dial := fasthttpproxy.FasthttpHTTPDialerTimeout(p.userinfo()+p.Addr(), timeout)
		return func(ctx context.Context, network, addr string) (net.Conn, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return dial(addr)
		}, nil
	}
}
