package jm

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// newTransport builds the HTTP transport according to the proxy
// setting: "system" follows the environment, "none" disables proxying,
// anything else is parsed as a proxy URL (http, https or socks5).
func newTransport(proxySetting string) (http.RoundTripper, error) {
	base := &http.Transport{
		MaxIdleConns:        32,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
	}

	switch strings.TrimSpace(proxySetting) {
	case "", "system":
		base.Proxy = http.ProxyFromEnvironment
		return base, nil
	case "none":
		base.Proxy = nil
		return base, nil
	}

	u, err := url.Parse(proxySetting)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url %q: %w", proxySetting, err)
	}
	switch u.Scheme {
	case "http", "https":
		base.Proxy = http.ProxyURL(u)
		return base, nil
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			pw, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pw}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: 15 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy %q: %w", u.Host, err)
		}
		base.Dial = dialer.Dial
		return base, nil
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
}
