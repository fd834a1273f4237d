// Package httpx provides the HTTP GET capability shared by playlist
// resolution, segment download and the channel adapters.
package httpx

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"

	"github.com/famomatic/vodfetch/internal/cookies"
	"github.com/famomatic/vodfetch/internal/types"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

// Fetcher performs a GET and returns the full response body.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error)
}

// Options configures a Client.
type Options struct {
	// HTTPVersion selects the protocol: 1 forces HTTP/1.1, anything else
	// negotiates HTTP/2.
	HTTPVersion int
	UserAgent   string
	// Proxy accepts http, https, socks5 and socks5h URLs.
	Proxy   string
	Timeout time.Duration
	Header  http.Header
	// CookieFile, when set, names a cookies.txt file loaded into the
	// client's jar.
	CookieFile string
}

// Client is the default Fetcher.
type Client struct {
	hc        *http.Client
	userAgent string
	header    http.Header
}

// New builds a Client with its own transport.
func New(opts Options) (*Client, error) {
	transport, err := newTransport(opts)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{Transport: transport, Timeout: opts.Timeout}
	if opts.CookieFile != "" {
		jar, err := cookies.LoadJar(opts.CookieFile)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}
	return &Client{
		hc:        hc,
		userAgent: userAgentOrDefault(opts.UserAgent),
		header:    cloneHeader(opts.Header),
	}, nil
}

// Wrap adapts an existing *http.Client.
func Wrap(hc *http.Client, userAgent string) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{hc: hc, userAgent: userAgentOrDefault(userAgent)}
}

// HTTPClient returns the underlying client.
func (c *Client) HTTPClient() *http.Client {
	return c.hc
}

// Get fetches rawURL. Non-2xx responses and transport failures are returned
// as *types.NetworkError.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	applyRequestHeaders(req, c.header)
	applyRequestHeaders(req, header)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &types.NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &types.NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.NetworkError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func userAgentOrDefault(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return DefaultUserAgent
	}
	return ua
}

func newTransport(opts Options) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if p := strings.TrimSpace(opts.Proxy); p != "" {
		parsed, err := url.Parse(p)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", p)
		}
		switch parsed.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(parsed)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(parsed, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("proxy %q: %w", p, err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("proxy %q does not support dialing with context", p)
			}
			transport.Proxy = nil
			transport.DialContext = cd.DialContext
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", parsed.Scheme)
		}
	}

	if opts.HTTPVersion == 1 {
		// A non-nil empty map disables the h2 upgrade.
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
		return transport, nil
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	return transport, nil
}
